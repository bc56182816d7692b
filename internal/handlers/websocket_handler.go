package handlers

import (
	"net/http"

	"github.com/gorilla/websocket"

	"crm-sync/internal/wsnotify"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// WebSocketHandler pendura a conexão do front-end no gerenciador de
// notificações. A conexão é só de saída; leituras servem apenas para detectar
// o fechamento.
func WebSocketHandler(manager *wsnotify.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		manager.Register(conn)
		defer manager.Unregister(conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}
	}
}
