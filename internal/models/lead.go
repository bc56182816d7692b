package models

import "time"

// Task é um lembrete pendurado no lead (lista ordenada, serializada em JSON
// na coluna tasks).
type Task struct {
	ID        int64      `json:"id"`
	Title     string     `json:"title"`
	DueAt     *time.Time `json:"due_at,omitempty"`
	Completed bool       `json:"completed"`
}

// Lead é o registro de contato do pipeline. Existe exatamente um Lead por id;
// o telefone (somente dígitos) é único dentro de um company_id e serve de
// chave de conversa no histórico.
type Lead struct {
	ID                int64             `json:"id"`
	Nome              string            `json:"nome,omitempty"`
	Telefone          string            `json:"telefone"`
	CompanyID         string            `json:"company_id"`
	IAActive          bool              `json:"ia_active"`
	Stage             string            `json:"stage,omitempty"`
	FollowupStage     int               `json:"followup_stage"`
	FollowupLocked    bool              `json:"followup_locked"`
	LastOutboundAt    *time.Time        `json:"last_outbound_at,omitempty"`
	StageUpdatedAt    *time.Time        `json:"stage_updated_at,omitempty"`
	LastInteractionAt *time.Time        `json:"last_interaction_at,omitempty"`
	CreatedAt         time.Time         `json:"created_at"`
	MeetingDatetime   *time.Time        `json:"meeting_datetime,omitempty"`
	MeetingLink       string            `json:"meeting_link,omitempty"`
	MeetingStatus     string            `json:"meeting_status,omitempty"` // scheduled | no_show | completed
	ProposalStatus    string            `json:"proposal_status,omitempty"` // sent | accepted | rejected
	ClosedReason      string            `json:"closed_reason,omitempty"`
	Tasks             []Task            `json:"tasks,omitempty"`
	CustomFields      map[string]string `json:"custom_fields,omitempty"`
	Observacoes       string            `json:"observacoes,omitempty"`
}

// Clone devolve uma cópia rasa com tasks e custom_fields copiados, para que
// projeções locais não compartilhem estado mutável com o cache.
func (l *Lead) Clone() *Lead {
	c := *l
	if l.Tasks != nil {
		c.Tasks = append([]Task(nil), l.Tasks...)
	}
	if l.CustomFields != nil {
		c.CustomFields = make(map[string]string, len(l.CustomFields))
		for k, v := range l.CustomFields {
			c.CustomFields[k] = v
		}
	}
	return &c
}

type LeadRepository interface {
	ListByCompany(companyID string) ([]*Lead, error)
	GetByID(id int64) (*Lead, error)
	GetByPhone(companyID, telefone string) (*Lead, error)
	SetAutomation(id int64, active bool) error
	SetFollowupLock(id int64, locked bool) error
	SetFollowupStage(id int64, stage int, stampOutbound bool) error
	MoveStage(id int64, stage string) error
	ClearStage(id int64) error
	SaveObservacoes(id int64, observacoes string) error
	SaveTasks(id int64, tasks []Task) error
	SaveCustomFields(id int64, fields map[string]string) error
}

// FollowupConfigRepository expõe a configuração externa da sequência de
// follow-up: o maior número de etapa cadastrado para o tenant.
type FollowupConfigRepository interface {
	TotalSteps(companyID string) (int, error)
}
