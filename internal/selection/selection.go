package selection

import (
	"sort"
	"sync"
	"time"

	"crm-sync/internal/models"
	"crm-sync/internal/utils"
)

// Persister guarda a última conversa aberta entre execuções do cliente.
type Persister interface {
	LoadSelection() (string, error)
	SaveSelection(key string) error
}

// LeadSource é a visão de leads usada para decidir a conversa mais recente.
type LeadSource interface {
	Leads() []*models.Lead
	LeadByPhone(telefone string) (*models.Lead, bool)
}

// Controller decide qual conversa está aberta. A precedência na resolução é
// pedido explícito > seleção persistida > lead com interação mais recente.
type Controller struct {
	mu        sync.Mutex
	current   string
	persister Persister
	source    LeadSource
}

func NewController(persister Persister, source LeadSource) *Controller {
	return &Controller{persister: persister, source: source}
}

// Resolve escolhe a conversa a abrir. requested vazio cai para a seleção
// persistida; persistida inválida (lead sumiu) cai para o mais recente; sem
// leads, devolve vazio e nada fica aberto.
func (c *Controller) Resolve(requested string) string {
	c.mu.Lock()
	defer c.mu.Unlock()

	if requested != "" {
		if _, ok := c.source.LeadByPhone(requested); ok {
			c.setLocked(requested)
			return requested
		}
		utils.LogWarning("Conversa pedida %s não existe mais, caindo para a persistida", requested)
	}

	if c.persister != nil {
		saved, err := c.persister.LoadSelection()
		if err != nil {
			utils.LogWarning("Não foi possível carregar a seleção persistida: %v", err)
		} else if saved != "" {
			if _, ok := c.source.LeadByPhone(saved); ok {
				c.setLocked(saved)
				return saved
			}
		}
	}

	leads := c.source.Leads()
	if len(leads) == 0 {
		c.current = ""
		return ""
	}
	sortByRecency(leads)
	c.setLocked(leads[0].Telefone)
	return leads[0].Telefone
}

// Open marca a conversa como aberta e persiste a escolha.
func (c *Controller) Open(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.setLocked(key)
}

func (c *Controller) setLocked(key string) {
	c.current = key
	if c.persister != nil {
		if err := c.persister.SaveSelection(key); err != nil {
			utils.LogWarning("Não foi possível persistir a seleção: %v", err)
		}
	}
}

// Current devolve a conversa aberta no momento, vazio quando nenhuma.
func (c *Controller) Current() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// OrderedLeads devolve os leads do mais ao menos recentemente interagido.
func (c *Controller) OrderedLeads() []*models.Lead {
	leads := c.source.Leads()
	sortByRecency(leads)
	return leads
}

// sortByRecency ordena por last_interaction_at, depois stage_updated_at,
// depois created_at, todos decrescentes; id decrescente desempata.
func sortByRecency(leads []*models.Lead) {
	sort.SliceStable(leads, func(i, j int) bool {
		ti, tj := recencyKey(leads[i]), recencyKey(leads[j])
		if !ti.Equal(tj) {
			return ti.After(tj)
		}
		return leads[i].ID > leads[j].ID
	})
}

func recencyKey(lead *models.Lead) time.Time {
	if lead.LastInteractionAt != nil {
		return *lead.LastInteractionAt
	}
	if lead.StageUpdatedAt != nil {
		return *lead.StageUpdatedAt
	}
	return lead.CreatedAt
}
