package services

import (
	"context"
	"fmt"
	"sync"

	"crm-sync/internal/changefeed"
	"crm-sync/internal/models"
	"crm-sync/internal/repositories"
	"crm-sync/internal/selection"
	"crm-sync/internal/store"
	"crm-sync/internal/unread"
	"crm-sync/internal/utils"
	"crm-sync/internal/wsnotify"
)

// LeadReader é a leitura autoritativa de leads usada no carregamento inicial
// e pelo poller.
type LeadReader interface {
	ListByCompany(companyID string) ([]*models.Lead, error)
}

// HistoryReader carrega o histórico de uma conversa.
type HistoryReader interface {
	GetBySession(companyID, sessionID string, limit int) ([]*models.ChatRecord, error)
}

// SyncEngine é o coração do cliente: consome o feed de mudanças e o poller,
// projeta tudo no cache local e replica o estado já derivado (mensagens
// canônicas, contadores, seleção) para o front-end via wsnotify.
//
// Uma única goroutine consome todos os eventos; os componentes derivados
// nunca veem eventos concorrentes da mesma origem.
type SyncEngine struct {
	companyID string

	hub      *changefeed.Hub
	poller   *changefeed.Poller
	leads    LeadReader
	history  HistoryReader
	store    *store.EntityStore
	unread   *unread.Tracker
	selector *selection.Controller
	notify   *wsnotify.Manager

	cancel    context.CancelFunc
	done      chan struct{}
	closeOnce sync.Once
	started   bool
}

func NewSyncEngine(
	companyID string,
	hub *changefeed.Hub,
	poller *changefeed.Poller,
	leads LeadReader,
	history HistoryReader,
	entityStore *store.EntityStore,
	tracker *unread.Tracker,
	selector *selection.Controller,
	notify *wsnotify.Manager,
) *SyncEngine {
	return &SyncEngine{
		companyID: companyID,
		hub:       hub,
		poller:    poller,
		leads:     leads,
		history:   history,
		store:     entityStore,
		unread:    tracker,
		selector:  selector,
		notify:    notify,
		done:      make(chan struct{}),
	}
}

// Start faz o carregamento inicial, resolve a conversa aberta, assina o feed
// e dispara o poller. Retorna depois que o estado inicial está pronto; o
// consumo de eventos continua em background até Close.
func (e *SyncEngine) Start(ctx context.Context) error {
	leads, err := e.leads.ListByCompany(e.companyID)
	if err != nil {
		return fmt.Errorf("erro no carregamento inicial de leads: %w", err)
	}
	e.store.SnapshotLeads(leads)
	utils.LogInfo("Carregamento inicial: %d leads", len(leads))

	if key := e.selector.Resolve(""); key != "" {
		e.unread.OnConversationOpened(key)
		if err := e.loadHistory(key); err != nil {
			utils.LogWarning("Erro ao pré-carregar histórico de %s: %v", key, err)
		}
	}

	ctx, e.cancel = context.WithCancel(ctx)
	leadCh, cancelLeads := e.hub.SubscribeLeads(e.companyID)
	msgCh, cancelMsgs := e.hub.SubscribeMessages(e.companyID, "")

	if e.poller != nil {
		e.poller.Start(ctx)
	}
	e.started = true

	go func() {
		defer close(e.done)
		defer cancelLeads()
		defer cancelMsgs()
		for {
			select {
			case <-ctx.Done():
				return
			case ev := <-leadCh:
				e.handleLead(ev)
			case ev := <-msgCh:
				e.handleMessage(ev)
			}
		}
	}()
	return nil
}

func (e *SyncEngine) handleLead(ev changefeed.LeadEvent) {
	switch ev.Type {
	case changefeed.EventSnapshot:
		e.store.SnapshotLeads(ev.Leads)
		e.notify.SendLeadEvent("snapshot", e.selector.OrderedLeads())
	case changefeed.EventInsert:
		e.store.InsertLead(ev.Lead)
		e.notify.SendLeadEvent("insert", ev.Lead)
	case changefeed.EventUpdate:
		e.store.UpdateLead(ev.Lead)
		e.notify.SendLeadEvent("update", ev.Lead)
	case changefeed.EventDelete:
		e.store.RemoveLead(ev.LeadID)
		e.notify.SendLeadEvent("delete", ev.LeadID)
	}
}

func (e *SyncEngine) handleMessage(ev changefeed.MessageEvent) {
	if ev.Record == nil {
		return
	}
	switch ev.Type {
	case changefeed.EventInsert, changefeed.EventUpdate:
		msg, inserted := e.store.MergeMessage(ev.Record)
		if inserted {
			e.unread.OnMessageInserted(msg, e.selector.Current())
			e.notify.SendUnreadEvent(e.unread.Counts())
		}
		e.notify.SendMessageEvent("insert", msg)
	case changefeed.EventDelete:
		// Exclusão de linha de histórico não acontece no pipeline; o replace
		// do próximo carregamento completo corrige divergências.
	}
}

// OpenConversation torna a conversa corrente, zera não lidas e carrega o
// histórico. key vazio resolve pela precedência padrão.
func (e *SyncEngine) OpenConversation(key string) ([]models.Message, error) {
	resolved := e.selector.Resolve(key)
	if resolved == "" {
		return nil, fmt.Errorf("nenhuma conversa disponível")
	}
	e.selector.Open(resolved)
	e.unread.OnConversationOpened(resolved)

	if err := e.loadHistory(resolved); err != nil {
		return nil, err
	}

	e.notify.SendSelectionEvent(resolved)
	e.notify.SendUnreadEvent(e.unread.Counts())
	return e.store.Messages(resolved), nil
}

func (e *SyncEngine) loadHistory(key string) error {
	records, err := e.history.GetBySession(e.companyID, key, repositories.DefaultHistoryLimit)
	if err != nil {
		return fmt.Errorf("erro ao carregar histórico de %s: %w", key, err)
	}
	e.store.ReplaceMessages(key, records)
	return nil
}

// Messages devolve o histórico projetado da conversa.
func (e *SyncEngine) Messages(key string) []models.Message {
	return e.store.Messages(key)
}

// Leads devolve os leads ordenados por recência de interação.
func (e *SyncEngine) Leads() []*models.Lead {
	return e.selector.OrderedLeads()
}

func (e *SyncEngine) UnreadCounts() map[string]int {
	return e.unread.Counts()
}

func (e *SyncEngine) CurrentConversation() string {
	return e.selector.Current()
}

// Close cancela assinaturas e poller e espera a goroutine de consumo
// encerrar. Idempotente; seguro mesmo sem Start.
func (e *SyncEngine) Close() {
	e.closeOnce.Do(func() {
		if e.poller != nil {
			e.poller.Close()
		}
		if e.cancel != nil {
			e.cancel()
		}
		if e.started {
			<-e.done
		}
	})
}
