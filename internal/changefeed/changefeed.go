package changefeed

import (
	"context"
	"sync"
	"time"

	"crm-sync/internal/models"
	"crm-sync/internal/utils"
)

// EventType identifica a natureza da mudança propagada pelo feed.
type EventType string

const (
	EventInsert   EventType = "INSERT"
	EventUpdate   EventType = "UPDATE"
	EventDelete   EventType = "DELETE"
	EventSnapshot EventType = "SNAPSHOT"
)

// Tamanho do buffer por assinatura. Assinantes lentos perdem eventos em vez
// de travar o publicador; o poller reconverge o estado depois.
const subscriberBuffer = 64

// DefaultPollInterval é a cadência do fallback de polling.
const DefaultPollInterval = 10 * time.Second

// LeadEvent carrega uma mudança em leads. Em SNAPSHOT, Leads traz a lista
// completa e Lead/LeadID ficam vazios.
type LeadEvent struct {
	Type      EventType
	CompanyID string
	Lead      *models.Lead
	LeadID    int64
	Leads     []*models.Lead
}

// MessageEvent carrega uma linha nova ou alterada do histórico.
type MessageEvent struct {
	Type      EventType
	CompanyID string
	Record    *models.ChatRecord
}

type leadSub struct {
	companyID string
	ch        chan LeadEvent
}

type messageSub struct {
	companyID string
	sessionID string // vazio assina todas as conversas do tenant
	ch        chan MessageEvent
}

// Hub distribui eventos de mudança para assinantes filtrados por tenant (e,
// para mensagens, opcionalmente por conversa). Publicação nunca bloqueia.
type Hub struct {
	mu       sync.RWMutex
	leads    map[*leadSub]struct{}
	messages map[*messageSub]struct{}
}

func NewHub() *Hub {
	return &Hub{
		leads:    make(map[*leadSub]struct{}),
		messages: make(map[*messageSub]struct{}),
	}
}

// SubscribeLeads registra interesse em mudanças de leads do tenant. A função
// de cancelamento é idempotente e fecha o canal.
func (h *Hub) SubscribeLeads(companyID string) (<-chan LeadEvent, func()) {
	sub := &leadSub{companyID: companyID, ch: make(chan LeadEvent, subscriberBuffer)}

	h.mu.Lock()
	h.leads[sub] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.leads, sub)
			h.mu.Unlock()
			close(sub.ch)
		})
	}
	return sub.ch, cancel
}

// SubscribeMessages registra interesse em linhas de histórico. sessionID
// vazio recebe todas as conversas do tenant.
func (h *Hub) SubscribeMessages(companyID, sessionID string) (<-chan MessageEvent, func()) {
	sub := &messageSub{
		companyID: companyID,
		sessionID: sessionID,
		ch:        make(chan MessageEvent, subscriberBuffer),
	}

	h.mu.Lock()
	h.messages[sub] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.messages, sub)
			h.mu.Unlock()
			close(sub.ch)
		})
	}
	return sub.ch, cancel
}

// PublishLead entrega o evento a todos os assinantes do tenant. Canais cheios
// são pulados.
func (h *Hub) PublishLead(event LeadEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for sub := range h.leads {
		if sub.companyID != event.CompanyID {
			continue
		}
		select {
		case sub.ch <- event:
		default:
			utils.LogWarning("Assinante de leads com buffer cheio, evento %s descartado", event.Type)
		}
	}
}

func (h *Hub) PublishMessage(event MessageEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for sub := range h.messages {
		if sub.companyID != event.CompanyID {
			continue
		}
		if sub.sessionID != "" && event.Record != nil && sub.sessionID != event.Record.SessionID {
			continue
		}
		select {
		case sub.ch <- event:
		default:
			utils.LogWarning("Assinante de mensagens com buffer cheio, evento %s descartado", event.Type)
		}
	}
}

// LeadLister é a dependência de leitura do poller.
type LeadLister interface {
	ListByCompany(companyID string) ([]*models.Lead, error)
}

// Poller é o fallback de sincronização: relê a lista de leads em intervalo
// fixo e publica um SNAPSHOT, garantindo convergência mesmo quando eventos
// push se perdem.
type Poller struct {
	hub       *Hub
	lister    LeadLister
	companyID string
	interval  time.Duration

	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

func NewPoller(hub *Hub, lister LeadLister, companyID string, interval time.Duration) *Poller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Poller{
		hub:       hub,
		lister:    lister,
		companyID: companyID,
		interval:  interval,
		done:      make(chan struct{}),
	}
}

func (p *Poller) Start(ctx context.Context) {
	ctx, p.cancel = context.WithCancel(ctx)
	go p.run(ctx)
}

func (p *Poller) run(ctx context.Context) {
	defer close(p.done)
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			leads, err := p.lister.ListByCompany(p.companyID)
			if err != nil {
				utils.LogError("Erro no polling de leads: %v", err)
				continue
			}
			p.hub.PublishLead(LeadEvent{
				Type:      EventSnapshot,
				CompanyID: p.companyID,
				Leads:     leads,
			})
		}
	}
}

// Close cancela o polling e aguarda a goroutine encerrar. Idempotente.
func (p *Poller) Close() {
	p.once.Do(func() {
		if p.cancel == nil {
			return
		}
		p.cancel()
		<-p.done
	})
}
