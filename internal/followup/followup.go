package followup

import (
	"encoding/json"
	"fmt"
	"time"

	"crm-sync/internal/models"
	"crm-sync/internal/utils"
)

// LeadWriter é a escrita autoritativa no banco remoto. O cache local só é
// atualizado depois que a escrita confirma; não existe rollback otimista.
type LeadWriter interface {
	SetAutomation(id int64, active bool) error
	SetFollowupLock(id int64, locked bool) error
	SetFollowupStage(id int64, stage int, stampOutbound bool) error
}

// HistoryAppender grava a mensagem system de auditoria no histórico da
// conversa.
type HistoryAppender interface {
	Append(record *models.ChatRecord) error
}

// StepConfig informa o limite superior da sequência de follow-up do tenant.
type StepConfig interface {
	TotalSteps(companyID string) (int, error)
}

// LeadProjector recebe a projeção local do lead após a escrita confirmar.
type LeadProjector interface {
	MergeLead(lead *models.Lead)
}

// StateMachine executa as transições de automação e follow-up de um lead:
// escreve no banco, projeta o novo estado no cache e registra exatamente uma
// mensagem de auditoria por transição.
type StateMachine struct {
	writer    LeadWriter
	history   HistoryAppender
	config    StepConfig
	projector LeadProjector
	now       func() time.Time
}

func NewStateMachine(writer LeadWriter, history HistoryAppender, config StepConfig, projector LeadProjector) *StateMachine {
	return &StateMachine{
		writer:    writer,
		history:   history,
		config:    config,
		projector: projector,
		now:       time.Now,
	}
}

// ToggleAutomation inverte ia_active do lead.
func (m *StateMachine) ToggleAutomation(lead *models.Lead, actor *models.User) (*models.Lead, error) {
	next := !lead.IAActive
	if err := m.writer.SetAutomation(lead.ID, next); err != nil {
		return nil, fmt.Errorf("erro ao alterar automação do lead %d: %w", lead.ID, err)
	}

	updated := lead.Clone()
	updated.IAActive = next
	m.project(updated)

	if next {
		m.audit(updated, models.StyleSuccess, fmt.Sprintf("✅ IA ativada por %s em %s", actor.FirstName(), m.stamp()))
	} else {
		m.audit(updated, models.StyleError, fmt.Sprintf("⛔ IA pausada por %s em %s", actor.FirstName(), m.stamp()))
	}
	return updated, nil
}

// ToggleFollowupLock inverte followup_locked do lead.
func (m *StateMachine) ToggleFollowupLock(lead *models.Lead, actor *models.User) (*models.Lead, error) {
	next := !lead.FollowupLocked
	if err := m.writer.SetFollowupLock(lead.ID, next); err != nil {
		return nil, fmt.Errorf("erro ao alterar trava de follow-up do lead %d: %w", lead.ID, err)
	}

	updated := lead.Clone()
	updated.FollowupLocked = next
	m.project(updated)

	if next {
		m.audit(updated, models.StyleWarning, fmt.Sprintf("🔒 Follow-up travado por %s em %s", actor.FirstName(), m.stamp()))
	} else {
		m.audit(updated, models.StyleInfo, fmt.Sprintf("🔓 Follow-up desbloqueado por %s em %s", actor.FirstName(), m.stamp()))
	}
	return updated, nil
}

// SetFollowupStage posiciona o lead na etapa n da sequência. n=0 remove o
// lead da sequência; qualquer posicionamento destrava o follow-up. O carimbo
// last_outbound_at só acontece quando o lead entra numa etapa real (n>0),
// para que o agendador conte o intervalo a partir de agora.
func (m *StateMachine) SetFollowupStage(lead *models.Lead, stage int, actor *models.User) (*models.Lead, error) {
	total, err := m.config.TotalSteps(lead.CompanyID)
	if err != nil {
		return nil, fmt.Errorf("erro ao consultar etapas de follow-up: %w", err)
	}
	if stage < 0 || stage > total {
		return nil, fmt.Errorf("etapa %d fora do intervalo [0, %d]", stage, total)
	}

	stampOutbound := stage > 0
	if err := m.writer.SetFollowupStage(lead.ID, stage, stampOutbound); err != nil {
		return nil, fmt.Errorf("erro ao definir etapa de follow-up do lead %d: %w", lead.ID, err)
	}

	updated := lead.Clone()
	updated.FollowupStage = stage
	updated.FollowupLocked = false
	if stampOutbound {
		now := m.now()
		updated.LastOutboundAt = &now
	}
	m.project(updated)

	if stage == 0 {
		m.audit(updated, models.StyleInfo, fmt.Sprintf("🔄 Follow-up removido por %s em %s", actor.FirstName(), m.stamp()))
	} else {
		m.audit(updated, models.StyleInfo, fmt.Sprintf("🔄 Follow-up movido para etapa %d por %s em %s", stage, actor.FirstName(), m.stamp()))
	}
	return updated, nil
}

func (m *StateMachine) project(lead *models.Lead) {
	if m.projector != nil {
		m.projector.MergeLead(lead)
	}
}

// audit grava a mensagem system no histórico. Falha de auditoria não desfaz a
// transição, só é logada: a escrita autoritativa já confirmou.
func (m *StateMachine) audit(lead *models.Lead, style, content string) {
	payload, _ := json.Marshal(map[string]interface{}{
		"type":      models.TypeSystem,
		"msgStyle":  style,
		"content":   content,
		"sentByCRM": true,
	})
	record := &models.ChatRecord{
		SessionID: lead.Telefone,
		Message:   payload,
		CompanyID: lead.CompanyID,
		CreatedAt: m.now(),
	}
	if err := m.history.Append(record); err != nil {
		utils.LogError("Erro ao registrar auditoria do lead %d: %v", lead.ID, err)
	}
}

func (m *StateMachine) stamp() string {
	return m.now().Format("02/01/2006 15:04")
}
