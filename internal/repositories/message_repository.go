package repositories

import (
	"database/sql"
	"fmt"

	"crm-sync/internal/changefeed"
	"crm-sync/internal/models"
)

// DefaultHistoryLimit é quantas linhas de histórico são carregadas ao abrir
// uma conversa.
const DefaultHistoryLimit = 150

// MessageRepository acessa a tabela n8n_chat_histories, compartilhada com o
// pipeline de automação. Inserções confirmadas publicam INSERT no feed.
type MessageRepository struct {
	db  *sql.DB
	hub *changefeed.Hub
}

func NewMessageRepository(db *sql.DB, hub *changefeed.Hub) *MessageRepository {
	return &MessageRepository{db: db, hub: hub}
}

func (r *MessageRepository) Append(record *models.ChatRecord) error {
	result, err := r.db.Exec(
		"INSERT INTO n8n_chat_histories (session_id, message, company_id, created_at) VALUES (?, ?, ?, NOW())",
		record.SessionID, string(record.Message), record.CompanyID,
	)
	if err != nil {
		return fmt.Errorf("erro ao gravar mensagem no histórico: %w", err)
	}
	if id, err := result.LastInsertId(); err == nil {
		record.ID = id
	}

	if r.hub != nil {
		r.hub.PublishMessage(changefeed.MessageEvent{
			Type:      changefeed.EventInsert,
			CompanyID: record.CompanyID,
			Record:    record,
		})
	}
	return nil
}

// GetBySession carrega as últimas linhas da conversa em ordem cronológica:
// busca as mais recentes em ordem decrescente e inverte o resultado.
func (r *MessageRepository) GetBySession(companyID, sessionID string, limit int) ([]*models.ChatRecord, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	rows, err := r.db.Query(`
		SELECT id, session_id, message, company_id, created_at
		FROM n8n_chat_histories
		WHERE company_id = ? AND session_id = ?
		ORDER BY id DESC
		LIMIT ?`, companyID, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("erro ao carregar histórico de %s: %w", sessionID, err)
	}
	defer rows.Close()

	var records []*models.ChatRecord
	for rows.Next() {
		var record models.ChatRecord
		var raw []byte
		if err := rows.Scan(&record.ID, &record.SessionID, &raw, &record.CompanyID, &record.CreatedAt); err != nil {
			return nil, err
		}
		record.Message = raw
		records = append(records, &record)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i, j := 0, len(records)-1; i < j; i, j = i+1, j-1 {
		records[i], records[j] = records[j], records[i]
	}
	return records, nil
}
