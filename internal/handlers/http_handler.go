package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"crm-sync/internal/followup"
	"crm-sync/internal/models"
	"crm-sync/internal/services"
	"crm-sync/internal/utils"
)

type HTTPHandler struct {
	engine       *services.SyncEngine
	sendService  *services.SendService
	s3Service    *services.S3Service
	stateMachine *followup.StateMachine
	leads        models.LeadRepository
	messages     models.MessageRepository
	users        models.UserRepository
	companyID    string
}

func NewHTTPHandler(
	engine *services.SyncEngine,
	sendService *services.SendService,
	s3Service *services.S3Service,
	stateMachine *followup.StateMachine,
	leads models.LeadRepository,
	messages models.MessageRepository,
	users models.UserRepository,
	companyID string,
) *HTTPHandler {
	return &HTTPHandler{
		engine:       engine,
		sendService:  sendService,
		s3Service:    s3Service,
		stateMachine: stateMachine,
		leads:        leads,
		messages:     messages,
		users:        users,
		companyID:    companyID,
	}
}

// @Summary Lista os leads
// @Description Lista os leads do tenant ordenados por interação mais recente
// @Tags leads
// @Produce json
// @Success 200 {object} models.APIResponse
// @Router /leads [get]
func (h *HTTPHandler) GetLeads(w http.ResponseWriter, r *http.Request) {
	data := map[string]interface{}{
		"leads":    h.engine.Leads(),
		"selected": h.engine.CurrentConversation(),
	}
	models.RespondWithJSON(w, http.StatusOK, models.NewSuccessResponse("Leads carregados com sucesso", data))
}

// @Summary Histórico da conversa
// @Description Retorna as mensagens projetadas da conversa informada
// @Tags messages
// @Produce json
// @Param telefone query string true "Telefone canônico da conversa"
// @Success 200 {object} models.APIResponse
// @Failure 400 {object} models.APIResponse
// @Router /messages [get]
func (h *HTTPHandler) GetMessages(w http.ResponseWriter, r *http.Request) {
	telefone := utils.CanonicalPhone(r.URL.Query().Get("telefone"))
	if telefone == "" {
		models.RespondWithJSON(w, http.StatusBadRequest, models.NewErrorResponse("Por favor, informe o telefone da conversa"))
		return
	}
	models.RespondWithJSON(w, http.StatusOK,
		models.NewSuccessResponse("Mensagens carregadas com sucesso", h.engine.Messages(telefone)))
}

// @Summary Contadores de não lidas
// @Tags messages
// @Produce json
// @Success 200 {object} models.APIResponse
// @Router /unread [get]
func (h *HTTPHandler) GetUnread(w http.ResponseWriter, r *http.Request) {
	models.RespondWithJSON(w, http.StatusOK,
		models.NewSuccessResponse("Contadores carregados com sucesso", h.engine.UnreadCounts()))
}

// @Summary Abre uma conversa
// @Description Torna a conversa corrente, zera não lidas e carrega o histórico. Telefone vazio resolve a última seleção.
// @Tags messages
// @Accept json
// @Produce json
// @Param request body models.OpenConversationRequest true "Conversa a abrir"
// @Success 200 {object} models.APIResponse
// @Failure 400 {object} models.APIResponse
// @Router /open-conversation [post]
func (h *HTTPHandler) OpenConversation(w http.ResponseWriter, r *http.Request) {
	var req models.OpenConversationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.LogError("Erro ao decodificar requisição /open-conversation: %v", err)
		models.RespondWithJSON(w, http.StatusBadRequest, models.NewErrorResponse("Erro ao decodificar requisição: "+err.Error()))
		return
	}

	key := ""
	if req.Telefone != "" {
		key = utils.CanonicalPhone(req.Telefone)
	}
	msgs, err := h.engine.OpenConversation(key)
	if err != nil {
		utils.LogError("Erro ao abrir conversa em /open-conversation: %v", err)
		models.RespondWithJSON(w, http.StatusBadRequest, models.NewErrorResponse(err.Error()))
		return
	}

	data := map[string]interface{}{
		"telefone": h.engine.CurrentConversation(),
		"messages": msgs,
	}
	models.RespondWithJSON(w, http.StatusOK, models.NewSuccessResponse("Conversa aberta com sucesso", data))
}

// @Summary Envia mensagem de texto
// @Tags messages
// @Accept json
// @Produce json
// @Param request body models.SendMessageRequest true "Dados da mensagem"
// @Success 200 {object} models.APIResponse
// @Failure 400 {object} models.APIResponse
// @Router /send-message [post]
func (h *HTTPHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	var req models.SendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.LogError("Erro ao decodificar requisição /send-message: %v", err)
		models.RespondWithJSON(w, http.StatusBadRequest, models.NewErrorResponse("Erro ao decodificar requisição: "+err.Error()))
		return
	}

	if err := h.sendService.SendText(req.Telefone, req.Message, req.UserID); err != nil {
		utils.LogError("Erro ao enviar mensagem no /send-message: %v", err)
		models.RespondWithJSON(w, http.StatusInternalServerError, models.NewErrorResponse("Erro ao enviar mensagem: "+err.Error()))
		return
	}

	data := map[string]interface{}{
		"telefone": utils.CanonicalPhone(req.Telefone),
		"message":  req.Message,
	}
	models.RespondWithJSON(w, http.StatusOK, models.NewSuccessResponse("Mensagem enviada com sucesso", data))
}

// @Summary Envia áudio
// @Description Envia uma nota de voz em base64 para o lead
// @Tags messages
// @Accept json
// @Produce json
// @Param request body models.SendAudioRequest true "Dados do áudio"
// @Success 200 {object} models.APIResponse
// @Failure 400 {object} models.APIResponse
// @Router /send-audio [post]
func (h *HTTPHandler) SendAudio(w http.ResponseWriter, r *http.Request) {
	var req models.SendAudioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.LogError("Erro ao decodificar requisição /send-audio: %v", err)
		models.RespondWithJSON(w, http.StatusBadRequest, models.NewErrorResponse("Erro ao decodificar requisição: "+err.Error()))
		return
	}

	base64Data := req.Base64File
	if i := strings.Index(base64Data, ";base64,"); i > -1 {
		base64Data = base64Data[i+8:]
	}

	if err := h.sendService.SendAudio(req.Telefone, base64Data, req.UserID); err != nil {
		utils.LogError("Erro ao enviar áudio em /send-audio: %v", err)
		models.RespondWithJSON(w, http.StatusInternalServerError, models.NewErrorResponse("Erro ao enviar áudio: "+err.Error()))
		return
	}

	data := map[string]interface{}{
		"telefone": utils.CanonicalPhone(req.Telefone),
	}
	models.RespondWithJSON(w, http.StatusOK, models.NewSuccessResponse("Áudio enviado com sucesso", data))
}

// @Summary Envia imagem
// @Description Sobe a imagem para o S3 e envia a URL para o lead
// @Tags messages
// @Accept json
// @Produce json
// @Param request body models.SendImageRequest true "Dados da imagem"
// @Success 200 {object} models.APIResponse
// @Failure 400 {object} models.APIResponse
// @Router /send-image [post]
func (h *HTTPHandler) SendImage(w http.ResponseWriter, r *http.Request) {
	var req models.SendImageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.LogError("Erro ao decodificar requisição /send-image: %v", err)
		models.RespondWithJSON(w, http.StatusBadRequest, models.NewErrorResponse("Erro ao decodificar requisição: "+err.Error()))
		return
	}

	if i := strings.Index(req.Base64File, ";base64,"); i > -1 {
		req.Base64File = req.Base64File[i+8:]
	}

	if err := h.sendService.SendImage(req.Telefone, &req); err != nil {
		utils.LogError("Erro ao enviar imagem em /send-image: %v", err)
		models.RespondWithJSON(w, http.StatusInternalServerError, models.NewErrorResponse("Erro ao enviar imagem: "+err.Error()))
		return
	}

	data := map[string]interface{}{
		"telefone": utils.CanonicalPhone(req.Telefone),
		"fileName": req.FileName,
	}
	models.RespondWithJSON(w, http.StatusOK, models.NewSuccessResponse("Imagem enviada com sucesso", data))
}

// @Summary Upload de arquivo
// @Description Sobe um arquivo para o S3 e devolve a URL pública
// @Tags upload
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "Arquivo"
// @Success 200 {object} models.APIResponse
// @Failure 400 {object} models.APIResponse
// @Router /upload [post]
func (h *HTTPHandler) HandleUpload(w http.ResponseWriter, r *http.Request) {
	if h.s3Service == nil {
		utils.LogError("Serviço S3 não está disponível em /upload")
		models.RespondWithJSON(w, http.StatusInternalServerError,
			models.NewErrorResponse("Serviço S3 não está disponível"))
		return
	}

	if err := r.ParseMultipartForm(10 << 20); err != nil {
		utils.LogError("Arquivo muito grande em /upload: %v", err)
		models.RespondWithJSON(w, http.StatusBadRequest,
			models.NewErrorResponse("Arquivo muito grande. Limite de 10MB"))
		return
	}

	file, handler, err := r.FormFile("file")
	if err != nil {
		utils.LogError("Erro ao processar arquivo em /upload: %v", err)
		models.RespondWithJSON(w, http.StatusBadRequest,
			models.NewErrorResponse("Erro ao processar arquivo"))
		return
	}
	defer file.Close()

	fileUrl, err := h.s3Service.UploadFile(file, handler)
	if err != nil {
		utils.LogError("Erro ao fazer upload em /upload: %v", err)
		models.RespondWithJSON(w, http.StatusInternalServerError,
			models.NewErrorResponse(fmt.Sprintf("Erro ao fazer upload: %v", err)))
		return
	}

	response := map[string]string{
		"path": fileUrl,
	}
	models.RespondWithJSON(w, http.StatusOK,
		models.NewSuccessResponse("Arquivo enviado com sucesso", response))
}

// @Summary Liga/desliga a IA do lead
// @Tags followup
// @Accept json
// @Produce json
// @Param request body models.LeadActionRequest true "Lead e operador"
// @Success 200 {object} models.APIResponse
// @Failure 400 {object} models.APIResponse
// @Router /toggle-ia [post]
func (h *HTTPHandler) ToggleIA(w http.ResponseWriter, r *http.Request) {
	var req models.LeadActionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.LogError("Erro ao decodificar requisição /toggle-ia: %v", err)
		models.RespondWithJSON(w, http.StatusBadRequest, models.NewErrorResponse("Erro ao decodificar requisição: "+err.Error()))
		return
	}

	lead, actor, err := h.resolveLeadAndActor(req.LeadID, req.UserID)
	if err != nil {
		models.RespondWithJSON(w, http.StatusBadRequest, models.NewErrorResponse(err.Error()))
		return
	}

	updated, err := h.stateMachine.ToggleAutomation(lead, actor)
	if err != nil {
		utils.LogError("Erro em /toggle-ia: %v", err)
		models.RespondWithJSON(w, http.StatusInternalServerError, models.NewErrorResponse(err.Error()))
		return
	}
	models.RespondWithJSON(w, http.StatusOK, models.NewSuccessResponse("Automação alterada com sucesso", updated))
}

// @Summary Trava/destrava o follow-up do lead
// @Tags followup
// @Accept json
// @Produce json
// @Param request body models.LeadActionRequest true "Lead e operador"
// @Success 200 {object} models.APIResponse
// @Failure 400 {object} models.APIResponse
// @Router /toggle-followup [post]
func (h *HTTPHandler) ToggleFollowup(w http.ResponseWriter, r *http.Request) {
	var req models.LeadActionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.LogError("Erro ao decodificar requisição /toggle-followup: %v", err)
		models.RespondWithJSON(w, http.StatusBadRequest, models.NewErrorResponse("Erro ao decodificar requisição: "+err.Error()))
		return
	}

	lead, actor, err := h.resolveLeadAndActor(req.LeadID, req.UserID)
	if err != nil {
		models.RespondWithJSON(w, http.StatusBadRequest, models.NewErrorResponse(err.Error()))
		return
	}

	updated, err := h.stateMachine.ToggleFollowupLock(lead, actor)
	if err != nil {
		utils.LogError("Erro em /toggle-followup: %v", err)
		models.RespondWithJSON(w, http.StatusInternalServerError, models.NewErrorResponse(err.Error()))
		return
	}
	models.RespondWithJSON(w, http.StatusOK, models.NewSuccessResponse("Trava de follow-up alterada com sucesso", updated))
}

// @Summary Posiciona o lead numa etapa do follow-up
// @Description Etapa 0 remove o lead da sequência; qualquer etapa destrava o follow-up
// @Tags followup
// @Accept json
// @Produce json
// @Param request body models.FollowupStageRequest true "Lead, etapa e operador"
// @Success 200 {object} models.APIResponse
// @Failure 400 {object} models.APIResponse
// @Router /followup-stage [post]
func (h *HTTPHandler) SetFollowupStage(w http.ResponseWriter, r *http.Request) {
	var req models.FollowupStageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.LogError("Erro ao decodificar requisição /followup-stage: %v", err)
		models.RespondWithJSON(w, http.StatusBadRequest, models.NewErrorResponse("Erro ao decodificar requisição: "+err.Error()))
		return
	}

	lead, actor, err := h.resolveLeadAndActor(req.LeadID, req.UserID)
	if err != nil {
		models.RespondWithJSON(w, http.StatusBadRequest, models.NewErrorResponse(err.Error()))
		return
	}

	updated, err := h.stateMachine.SetFollowupStage(lead, req.Stage, actor)
	if err != nil {
		utils.LogError("Erro em /followup-stage: %v", err)
		models.RespondWithJSON(w, http.StatusBadRequest, models.NewErrorResponse(err.Error()))
		return
	}
	models.RespondWithJSON(w, http.StatusOK, models.NewSuccessResponse("Etapa de follow-up definida com sucesso", updated))
}

// @Summary Move o lead de coluna no kanban
// @Description Stage vazio remove o lead do kanban; algumas colunas atualizam status de reunião/proposta
// @Tags leads
// @Accept json
// @Produce json
// @Param request body models.MoveStageRequest true "Lead e coluna"
// @Success 200 {object} models.APIResponse
// @Failure 400 {object} models.APIResponse
// @Router /move-stage [post]
func (h *HTTPHandler) MoveStage(w http.ResponseWriter, r *http.Request) {
	var req models.MoveStageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.LogError("Erro ao decodificar requisição /move-stage: %v", err)
		models.RespondWithJSON(w, http.StatusBadRequest, models.NewErrorResponse("Erro ao decodificar requisição: "+err.Error()))
		return
	}

	var err error
	if req.Stage == "" {
		err = h.leads.ClearStage(req.LeadID)
	} else {
		err = h.leads.MoveStage(req.LeadID, req.Stage)
	}
	if err != nil {
		utils.LogError("Erro em /move-stage: %v", err)
		models.RespondWithJSON(w, http.StatusInternalServerError, models.NewErrorResponse(err.Error()))
		return
	}

	data := map[string]interface{}{
		"lead_id": req.LeadID,
		"stage":   req.Stage,
	}
	models.RespondWithJSON(w, http.StatusOK, models.NewSuccessResponse("Lead movido com sucesso", data))
}

// @Summary Salva observações do lead
// @Tags leads
// @Accept json
// @Produce json
// @Param request body models.ObservacoesRequest true "Lead e observações"
// @Success 200 {object} models.APIResponse
// @Failure 400 {object} models.APIResponse
// @Router /observacoes [post]
func (h *HTTPHandler) SaveObservacoes(w http.ResponseWriter, r *http.Request) {
	var req models.ObservacoesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.LogError("Erro ao decodificar requisição /observacoes: %v", err)
		models.RespondWithJSON(w, http.StatusBadRequest, models.NewErrorResponse("Erro ao decodificar requisição: "+err.Error()))
		return
	}

	if err := h.leads.SaveObservacoes(req.LeadID, req.Observacoes); err != nil {
		utils.LogError("Erro em /observacoes: %v", err)
		models.RespondWithJSON(w, http.StatusInternalServerError, models.NewErrorResponse(err.Error()))
		return
	}
	models.RespondWithJSON(w, http.StatusOK, models.NewSuccessResponse("Observações salvas com sucesso", nil))
}

// @Summary Salva a lista de tarefas do lead
// @Tags leads
// @Accept json
// @Produce json
// @Param request body models.TasksRequest true "Lead e tarefas"
// @Success 200 {object} models.APIResponse
// @Failure 400 {object} models.APIResponse
// @Router /tasks [post]
func (h *HTTPHandler) SaveTasks(w http.ResponseWriter, r *http.Request) {
	var req models.TasksRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.LogError("Erro ao decodificar requisição /tasks: %v", err)
		models.RespondWithJSON(w, http.StatusBadRequest, models.NewErrorResponse("Erro ao decodificar requisição: "+err.Error()))
		return
	}

	if err := h.leads.SaveTasks(req.LeadID, req.Tasks); err != nil {
		utils.LogError("Erro em /tasks: %v", err)
		models.RespondWithJSON(w, http.StatusInternalServerError, models.NewErrorResponse(err.Error()))
		return
	}
	models.RespondWithJSON(w, http.StatusOK, models.NewSuccessResponse("Tarefas salvas com sucesso", nil))
}

// @Summary Salva os campos customizados do lead
// @Tags leads
// @Accept json
// @Produce json
// @Param request body models.CustomFieldsRequest true "Lead e campos"
// @Success 200 {object} models.APIResponse
// @Failure 400 {object} models.APIResponse
// @Router /custom-fields [post]
func (h *HTTPHandler) SaveCustomFields(w http.ResponseWriter, r *http.Request) {
	var req models.CustomFieldsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.LogError("Erro ao decodificar requisição /custom-fields: %v", err)
		models.RespondWithJSON(w, http.StatusBadRequest, models.NewErrorResponse("Erro ao decodificar requisição: "+err.Error()))
		return
	}

	if err := h.leads.SaveCustomFields(req.LeadID, req.Fields); err != nil {
		utils.LogError("Erro em /custom-fields: %v", err)
		models.RespondWithJSON(w, http.StatusInternalServerError, models.NewErrorResponse(err.Error()))
		return
	}
	models.RespondWithJSON(w, http.StatusOK, models.NewSuccessResponse("Campos customizados salvos com sucesso", nil))
}

// @Summary Webhook de mensagem do pipeline
// @Description Recebe a notificação do pipeline externo quando uma linha nova é gravada no histórico
// @Tags webhook
// @Accept json
// @Produce json
// @Param request body models.InboundMessageRequest true "Linha gravada"
// @Success 200 {object} models.APIResponse
// @Failure 400 {object} models.APIResponse
// @Router /webhook/message [post]
func (h *HTTPHandler) WebhookMessage(w http.ResponseWriter, r *http.Request) {
	var req models.InboundMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.LogError("Erro ao decodificar requisição /webhook/message: %v", err)
		models.RespondWithJSON(w, http.StatusBadRequest, models.NewErrorResponse("Erro ao decodificar requisição: "+err.Error()))
		return
	}
	if req.SessionID == "" || req.Message == "" {
		models.RespondWithJSON(w, http.StatusBadRequest, models.NewErrorResponse("session_id e message são obrigatórios"))
		return
	}

	record := &models.ChatRecord{
		SessionID: utils.CanonicalPhone(req.SessionID),
		Message:   json.RawMessage(req.Message),
		CompanyID: h.companyID,
	}
	if err := h.messages.Append(record); err != nil {
		utils.LogError("Erro ao gravar mensagem do webhook: %v", err)
		models.RespondWithJSON(w, http.StatusInternalServerError, models.NewErrorResponse(err.Error()))
		return
	}
	models.RespondWithJSON(w, http.StatusOK, models.NewSuccessResponse("Mensagem registrada com sucesso", map[string]int64{"id": record.ID}))
}

// @Summary Status do motor de sincronização
// @Tags status
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /status [get]
func (h *HTTPHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"status":   "running",
		"selected": h.engine.CurrentConversation(),
		"leads":    len(h.engine.Leads()),
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

func (h *HTTPHandler) resolveLeadAndActor(leadID int64, userID *int) (*models.Lead, *models.User, error) {
	if leadID == 0 {
		return nil, nil, fmt.Errorf("lead_id é obrigatório")
	}
	lead, err := h.leads.GetByID(leadID)
	if err != nil {
		return nil, nil, err
	}
	var actor *models.User
	if userID != nil {
		actor, err = h.users.GetByID(*userID)
		if err != nil {
			utils.LogWarning("Operador %d não encontrado, auditoria sem nome: %v", *userID, err)
			actor = nil
		}
	}
	return lead, actor, nil
}
