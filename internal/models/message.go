package models

import (
	"encoding/json"
	"time"
)

// Tipos canônicos de mensagem. video/image/audio aparecem quando a
// classificação de mídia resolve o tipo; human/ai/system vêm do payload.
const (
	TypeHuman  = "human"
	TypeAI     = "ai"
	TypeSystem = "system"
	TypeVideo  = "video"
	TypeImage  = "image"
	TypeAudio  = "audio"
)

// Estilos de destaque usados em mensagens system (trilha de auditoria).
const (
	StyleSuccess = "success"
	StyleError   = "error"
	StyleWarning = "warning"
	StyleInfo    = "info"
)

// ChatRecord é a linha crua do histórico (n8n_chat_histories). A coluna
// message guarda um payload JSON de formato variável — às vezes um objeto,
// às vezes uma string contendo JSON, às vezes texto puro.
type ChatRecord struct {
	ID        int64           `json:"id"`
	SessionID string          `json:"session_id"`
	Message   json.RawMessage `json:"message"`
	CompanyID string          `json:"company_id"`
	CreatedAt time.Time       `json:"created_at"`
}

// Message é a visão canônica derivada de um ChatRecord. Imutável depois de
// criada; a ordenação segue o id da linha armazenada.
type Message struct {
	ID              int64  `json:"id"`
	ConversationKey string `json:"conversation_key"`
	Type            string `json:"type"`
	MsgStyle        string `json:"msg_style,omitempty"`
	Text            string `json:"text"`
	Sender          string `json:"sender,omitempty"`
	SentByCRM       bool   `json:"sent_by_crm"`
	IsImage         bool   `json:"is_image"`
	IsAudio         bool   `json:"is_audio"`
	IsVideo         bool   `json:"is_video"`
	IsAudioSent     bool   `json:"is_audio_sent"`
	IsFollowup      bool   `json:"is_followup"`
	FollowupStep    int    `json:"followup_step,omitempty"`
	Time            string `json:"time"`
}

type MessageRepository interface {
	Append(record *ChatRecord) error
	GetBySession(companyID, sessionID string, limit int) ([]*ChatRecord, error)
}
