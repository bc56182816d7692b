package models

type SendMessageRequest struct {
	Telefone string `json:"telefone" example:"5511999999999" swagger:"required" description:"Número do telefone no formato canônico"`
	Message  string `json:"message" example:"Olá, como vai?" swagger:"required" description:"Texto da mensagem"`
	UserID   *int   `json:"userId"`
}

type SendAudioRequest struct {
	Telefone   string `json:"telefone"`
	Base64File string `json:"base64File"`
	UserID     *int   `json:"userId"`
}

type SendImageRequest struct {
	Telefone   string `json:"telefone"`
	Base64File string `json:"base64File"`
	FileName   string `json:"fileName"`
	MimeType   string `json:"mimeType"`
	Caption    string `json:"caption"`
	UserID     *int   `json:"userId"`
}

type OpenConversationRequest struct {
	Telefone string `json:"telefone" example:"5511999999999" description:"Conversa a abrir; vazio resolve a última seleção persistida"`
}

type LeadActionRequest struct {
	LeadID int64 `json:"lead_id" example:"42" swagger:"required"`
	UserID *int  `json:"userId"`
}

type FollowupStageRequest struct {
	LeadID int64 `json:"lead_id" example:"42" swagger:"required"`
	Stage  int   `json:"stage" example:"2" description:"0 remove o lead da sequência de follow-up"`
	UserID *int  `json:"userId"`
}

type MoveStageRequest struct {
	LeadID int64  `json:"lead_id"`
	Stage  string `json:"stage" example:"Reunião Agendada"`
}

type ObservacoesRequest struct {
	LeadID      int64  `json:"lead_id"`
	Observacoes string `json:"observacoes"`
}

type TasksRequest struct {
	LeadID int64  `json:"lead_id"`
	Tasks  []Task `json:"tasks"`
}

type CustomFieldsRequest struct {
	LeadID int64             `json:"lead_id"`
	Fields map[string]string `json:"fields"`
}

// InboundMessageRequest é o webhook chamado pelo pipeline externo (agente de
// IA / automação n8n) quando uma nova linha de histórico é gravada.
type InboundMessageRequest struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message" description:"Payload cru, exatamente como gravado no histórico"`
}
