package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	httpSwagger "github.com/swaggo/http-swagger"

	"crm-sync/config"
	"crm-sync/internal/changefeed"
	"crm-sync/internal/followup"
	"crm-sync/internal/handlers"
	"crm-sync/internal/localstate"
	"crm-sync/internal/repositories"
	"crm-sync/internal/selection"
	"crm-sync/internal/services"
	"crm-sync/internal/store"
	"crm-sync/internal/unread"
	"crm-sync/internal/utils"
	"crm-sync/internal/wsnotify"
)

// @title CRM Sync API
// @version 1.0
// @description Cliente de sincronização de leads e conversas do CRM sobre WhatsApp
// @host localhost:8081
// @BasePath /api/v1
func main() {
	cfg := config.NewConfig()

	db, err := config.ConnectDatabase()
	if err != nil {
		log.Fatalf("Erro ao conectar no banco: %v", err)
	}
	defer db.Close()

	state, err := localstate.Open(cfg.StateDir)
	if err != nil {
		log.Fatalf("Erro ao abrir estado local: %v", err)
	}
	defer state.Close()

	hub := changefeed.NewHub()
	leadRepo := repositories.NewLeadRepository(db, hub)
	messageRepo := repositories.NewMessageRepository(db, hub)
	followupRepo := repositories.NewFollowupConfigRepository(db)
	userRepo := repositories.NewUserRepository(db)

	entityStore := store.NewEntityStore()
	tracker := unread.NewTracker(state)
	selector := selection.NewController(state, entityStore)
	notifyManager := wsnotify.NewManager()

	poller := changefeed.NewPoller(hub, leadRepo, cfg.CompanyID, changefeed.DefaultPollInterval)
	engine := services.NewSyncEngine(cfg.CompanyID, hub, poller, leadRepo, messageRepo,
		entityStore, tracker, selector, notifyManager)
	if err := engine.Start(context.Background()); err != nil {
		log.Fatalf("Erro ao iniciar sincronização: %v", err)
	}

	s3Service, err := services.NewS3Service(cfg.S3Config)
	if err != nil {
		utils.LogError("Erro ao criar serviço S3: %v", err)
	}

	evolution := services.NewEvolutionClient(cfg.Evolution)
	sendService := services.NewSendService(evolution, messageRepo, userRepo, s3Service, cfg.CompanyID)
	stateMachine := followup.NewStateMachine(leadRepo, messageRepo, followupRepo, entityStore)

	httpHandler := handlers.NewHTTPHandler(engine, sendService, s3Service, stateMachine,
		leadRepo, messageRepo, userRepo, cfg.CompanyID)
	router := mux.NewRouter().PathPrefix("/api/v1").Subrouter()

	router.HandleFunc("/leads", httpHandler.GetLeads).Methods("GET", "OPTIONS")
	router.HandleFunc("/messages", httpHandler.GetMessages).Methods("GET", "OPTIONS")
	router.HandleFunc("/unread", httpHandler.GetUnread).Methods("GET", "OPTIONS")
	router.HandleFunc("/open-conversation", httpHandler.OpenConversation).Methods("POST", "OPTIONS")

	router.HandleFunc("/send-message", httpHandler.SendMessage).Methods("POST", "OPTIONS")
	router.HandleFunc("/send-audio", httpHandler.SendAudio).Methods("POST", "OPTIONS")
	router.HandleFunc("/send-image", httpHandler.SendImage).Methods("POST", "OPTIONS")
	router.HandleFunc("/upload", httpHandler.HandleUpload).Methods("POST", "OPTIONS")

	// Rotas de follow-up e kanban
	router.HandleFunc("/toggle-ia", httpHandler.ToggleIA).Methods("POST", "OPTIONS")
	router.HandleFunc("/toggle-followup", httpHandler.ToggleFollowup).Methods("POST", "OPTIONS")
	router.HandleFunc("/followup-stage", httpHandler.SetFollowupStage).Methods("POST", "OPTIONS")
	router.HandleFunc("/move-stage", httpHandler.MoveStage).Methods("POST", "OPTIONS")
	router.HandleFunc("/observacoes", httpHandler.SaveObservacoes).Methods("POST", "OPTIONS")
	router.HandleFunc("/tasks", httpHandler.SaveTasks).Methods("POST", "OPTIONS")
	router.HandleFunc("/custom-fields", httpHandler.SaveCustomFields).Methods("POST", "OPTIONS")

	// Entrada do pipeline externo e status
	router.HandleFunc("/webhook/message", httpHandler.WebhookMessage).Methods("POST", "OPTIONS")
	router.HandleFunc("/status", httpHandler.GetStatus).Methods("GET", "OPTIONS")

	// Rota WebSocket
	router.HandleFunc("/ws", handlers.WebSocketHandler(notifyManager))

	// Serve os arquivos estáticos do Swagger
	fs := http.FileServer(http.Dir("./docs"))
	router.PathPrefix("/swagger/").Handler(http.StripPrefix("/api/v1/swagger/", fs))

	router.PathPrefix("/swagger-ui/").Handler(httpSwagger.Handler(
		httpSwagger.URL("http://localhost:8081/api/v1/swagger/swagger.json"),
		httpSwagger.DeepLinking(true),
	))

	mainRouter := mux.NewRouter()
	mainRouter.PathPrefix("/api/v1").Handler(router)

	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	})
	handler := c.Handler(mainRouter)

	server := &http.Server{
		Addr:    ":8081",
		Handler: handler,
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	go func() {
		fmt.Println("Server is running on http://localhost:8081")
		fmt.Println("Swagger UI available at: http://localhost:8081/api/v1/swagger-ui/")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Erro ao iniciar servidor: %v", err)
		}
	}()

	<-stop
	fmt.Println("\nShutting down gracefully...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Printf("Erro ao desligar servidor: %v", err)
	}

	engine.Close()
	notifyManager.CloseAll()

	fmt.Println("Server stopped successfully")
}
