package repositories

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"crm-sync/internal/changefeed"
	"crm-sync/internal/models"
	"crm-sync/internal/utils"
)

const leadColumns = `id, nome, telefone, company_id, ia_active, stage, followup_stage,
	followup_locked, last_outbound_at, stage_updated_at, last_interaction_at, created_at,
	meeting_datetime, meeting_link, meeting_status, proposal_status, closed_reason,
	tasks, custom_fields, observacoes`

// LeadRepository acessa a tabela sp3chat. Toda escrita confirmada publica o
// evento correspondente no feed, para que o motor de sincronização projete o
// novo estado sem esperar o polling.
type LeadRepository struct {
	db  *sql.DB
	hub *changefeed.Hub
}

func NewLeadRepository(db *sql.DB, hub *changefeed.Hub) *LeadRepository {
	return &LeadRepository{db: db, hub: hub}
}

func (r *LeadRepository) ListByCompany(companyID string) ([]*models.Lead, error) {
	query := fmt.Sprintf("SELECT %s FROM sp3chat WHERE company_id = ? ORDER BY id DESC", leadColumns)
	rows, err := r.db.Query(query, companyID)
	if err != nil {
		return nil, fmt.Errorf("erro ao listar leads: %w", err)
	}
	defer rows.Close()

	var leads []*models.Lead
	for rows.Next() {
		lead, err := scanLead(rows)
		if err != nil {
			return nil, err
		}
		leads = append(leads, lead)
	}
	return leads, rows.Err()
}

func (r *LeadRepository) GetByID(id int64) (*models.Lead, error) {
	query := fmt.Sprintf("SELECT %s FROM sp3chat WHERE id = ?", leadColumns)
	lead, err := scanLead(r.db.QueryRow(query, id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("lead %d não encontrado", id)
	}
	if err != nil {
		return nil, fmt.Errorf("erro ao buscar lead %d: %w", id, err)
	}
	return lead, nil
}

func (r *LeadRepository) GetByPhone(companyID, telefone string) (*models.Lead, error) {
	query := fmt.Sprintf("SELECT %s FROM sp3chat WHERE company_id = ? AND telefone = ?", leadColumns)
	lead, err := scanLead(r.db.QueryRow(query, companyID, utils.CanonicalPhone(telefone)))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("lead com telefone %s não encontrado", telefone)
	}
	if err != nil {
		return nil, fmt.Errorf("erro ao buscar lead por telefone: %w", err)
	}
	return lead, nil
}

func (r *LeadRepository) SetAutomation(id int64, active bool) error {
	return r.update(id, "UPDATE sp3chat SET ia_active = ? WHERE id = ?", utils.BoolToInt(active), id)
}

func (r *LeadRepository) SetFollowupLock(id int64, locked bool) error {
	return r.update(id, "UPDATE sp3chat SET followup_locked = ? WHERE id = ?", utils.BoolToInt(locked), id)
}

// SetFollowupStage posiciona a etapa e sempre destrava; o carimbo de
// last_outbound_at é decidido pelo chamador (só etapas reais reiniciam o
// relógio da sequência).
func (r *LeadRepository) SetFollowupStage(id int64, stage int, stampOutbound bool) error {
	if stampOutbound {
		return r.update(id, "UPDATE sp3chat SET followup_stage = ?, followup_locked = 0, last_outbound_at = NOW() WHERE id = ?", stage, id)
	}
	return r.update(id, "UPDATE sp3chat SET followup_stage = ?, followup_locked = 0 WHERE id = ?", stage, id)
}

// MoveStage muda a coluna do kanban. Algumas colunas têm efeito colateral no
// status de reunião/proposta; stage_updated_at é sempre carimbado.
func (r *LeadRepository) MoveStage(id int64, stage string) error {
	extra := ""
	switch stage {
	case "Reunião Agendada":
		extra = ", meeting_status = 'scheduled'"
	case "No Show":
		extra = ", meeting_status = 'no_show'"
	case "Reunião Realizada":
		extra = ", meeting_status = 'completed'"
	case "Proposta Enviada":
		extra = ", proposal_status = 'sent'"
	}
	query := fmt.Sprintf("UPDATE sp3chat SET stage = ?, stage_updated_at = NOW()%s WHERE id = ?", extra)
	return r.update(id, query, stage, id)
}

func (r *LeadRepository) ClearStage(id int64) error {
	return r.update(id, "UPDATE sp3chat SET stage = NULL, stage_updated_at = NOW() WHERE id = ?", id)
}

func (r *LeadRepository) SaveObservacoes(id int64, observacoes string) error {
	return r.update(id, "UPDATE sp3chat SET observacoes = ? WHERE id = ?", observacoes, id)
}

func (r *LeadRepository) SaveTasks(id int64, tasks []models.Task) error {
	payload, err := json.Marshal(tasks)
	if err != nil {
		return fmt.Errorf("erro ao serializar tasks: %w", err)
	}
	return r.update(id, "UPDATE sp3chat SET tasks = ? WHERE id = ?", string(payload), id)
}

func (r *LeadRepository) SaveCustomFields(id int64, fields map[string]string) error {
	payload, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("erro ao serializar campos customizados: %w", err)
	}
	return r.update(id, "UPDATE sp3chat SET custom_fields = ? WHERE id = ?", string(payload), id)
}

// update executa a escrita e, confirmada, relê a linha e publica UPDATE.
func (r *LeadRepository) update(id int64, query string, args ...interface{}) error {
	if _, err := r.db.Exec(query, args...); err != nil {
		return fmt.Errorf("erro ao atualizar lead %d: %w", id, err)
	}
	r.publishUpdate(id)
	return nil
}

func (r *LeadRepository) publishUpdate(id int64) {
	if r.hub == nil {
		return
	}
	lead, err := r.GetByID(id)
	if err != nil {
		utils.LogWarning("Escrita confirmada mas releitura do lead %d falhou: %v", id, err)
		return
	}
	r.hub.PublishLead(changefeed.LeadEvent{
		Type:      changefeed.EventUpdate,
		CompanyID: lead.CompanyID,
		Lead:      lead,
	})
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanLead(row rowScanner) (*models.Lead, error) {
	var lead models.Lead
	var nome, stage, meetingLink, meetingStatus, proposalStatus, closedReason, observacoes sql.NullString
	var tasksJSON, fieldsJSON sql.NullString
	var lastOutbound, stageUpdated, lastInteraction, meetingDatetime sql.NullTime
	var iaActive, locked int

	err := row.Scan(
		&lead.ID, &nome, &lead.Telefone, &lead.CompanyID, &iaActive, &stage,
		&lead.FollowupStage, &locked, &lastOutbound, &stageUpdated, &lastInteraction,
		&lead.CreatedAt, &meetingDatetime, &meetingLink, &meetingStatus,
		&proposalStatus, &closedReason, &tasksJSON, &fieldsJSON, &observacoes,
	)
	if err != nil {
		return nil, err
	}

	lead.Nome = nome.String
	lead.Stage = stage.String
	lead.IAActive = iaActive != 0
	lead.FollowupLocked = locked != 0
	lead.LastOutboundAt = utils.TimePtr(lastOutbound)
	lead.StageUpdatedAt = utils.TimePtr(stageUpdated)
	lead.LastInteractionAt = utils.TimePtr(lastInteraction)
	lead.MeetingDatetime = utils.TimePtr(meetingDatetime)
	lead.MeetingLink = meetingLink.String
	lead.MeetingStatus = meetingStatus.String
	lead.ProposalStatus = proposalStatus.String
	lead.ClosedReason = closedReason.String
	lead.Observacoes = observacoes.String

	if tasksJSON.Valid && tasksJSON.String != "" {
		if err := json.Unmarshal([]byte(tasksJSON.String), &lead.Tasks); err != nil {
			utils.LogWarning("Tasks do lead %d com JSON inválido: %v", lead.ID, err)
		}
	}
	if fieldsJSON.Valid && fieldsJSON.String != "" {
		if err := json.Unmarshal([]byte(fieldsJSON.String), &lead.CustomFields); err != nil {
			utils.LogWarning("Campos customizados do lead %d com JSON inválido: %v", lead.ID, err)
		}
	}
	return &lead, nil
}
