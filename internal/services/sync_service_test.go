package services

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crm-sync/internal/changefeed"
	"crm-sync/internal/models"
	"crm-sync/internal/selection"
	"crm-sync/internal/store"
	"crm-sync/internal/unread"
	"crm-sync/internal/wsnotify"
)

type fakeLeadReader struct {
	leads []*models.Lead
}

func (f *fakeLeadReader) ListByCompany(companyID string) ([]*models.Lead, error) {
	return f.leads, nil
}

type fakeHistoryReader struct {
	records map[string][]*models.ChatRecord
}

func (f *fakeHistoryReader) GetBySession(companyID, sessionID string, limit int) ([]*models.ChatRecord, error) {
	return f.records[sessionID], nil
}

func historyRecord(id int64, session, payload string) *models.ChatRecord {
	return &models.ChatRecord{
		ID:        id,
		SessionID: session,
		Message:   json.RawMessage(payload),
		CompanyID: "sp3",
		CreatedAt: time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC),
	}
}

func newEngine(t *testing.T, leads []*models.Lead, history map[string][]*models.ChatRecord) (*SyncEngine, *changefeed.Hub) {
	t.Helper()
	hub := changefeed.NewHub()
	entityStore := store.NewEntityStore()
	tracker := unread.NewTracker(nil)
	selector := selection.NewController(nil, entityStore)

	engine := NewSyncEngine(
		"sp3",
		hub,
		nil,
		&fakeLeadReader{leads: leads},
		&fakeHistoryReader{records: history},
		entityStore,
		tracker,
		selector,
		wsnotify.NewManager(),
	)
	require.NoError(t, engine.Start(context.Background()))
	t.Cleanup(engine.Close)
	return engine, hub
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condição não satisfeita a tempo")
}

func TestStartLoadsLeadsAndResolvesSelection(t *testing.T) {
	older := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	newer := time.Date(2025, 3, 20, 0, 0, 0, 0, time.UTC)
	engine, _ := newEngine(t, []*models.Lead{
		{ID: 1, Telefone: "5511999999999", CompanyID: "sp3", LastInteractionAt: &older},
		{ID: 2, Telefone: "5521888888888", CompanyID: "sp3", LastInteractionAt: &newer},
	}, map[string][]*models.ChatRecord{
		"5521888888888": {historyRecord(1, "5521888888888", `{"type":"human","content":"oi"}`)},
	})

	assert.Equal(t, "5521888888888", engine.CurrentConversation(), "abre o lead com interação mais recente")
	msgs := engine.Messages("5521888888888")
	require.Len(t, msgs, 1)
	assert.Equal(t, "oi", msgs[0].Text)
}

func TestPushedMessageIncrementsUnreadForClosedConversation(t *testing.T) {
	engine, hub := newEngine(t, []*models.Lead{
		{ID: 1, Telefone: "5511999999999", CompanyID: "sp3"},
	}, nil)
	// Única conversa fica aberta na resolução inicial.
	require.Equal(t, "5511999999999", engine.CurrentConversation())

	hub.PublishMessage(changefeed.MessageEvent{
		Type:      changefeed.EventInsert,
		CompanyID: "sp3",
		Record:    historyRecord(10, "5521888888888", `{"type":"human","content":"nova"}`),
	})

	waitFor(t, func() bool { return engine.UnreadCounts()["5521888888888"] == 1 })
}

func TestPushedMessageInOpenConversationDoesNotIncrement(t *testing.T) {
	engine, hub := newEngine(t, []*models.Lead{
		{ID: 1, Telefone: "5511999999999", CompanyID: "sp3"},
	}, nil)

	hub.PublishMessage(changefeed.MessageEvent{
		Type:      changefeed.EventInsert,
		CompanyID: "sp3",
		Record:    historyRecord(10, "5511999999999", `{"type":"human","content":"oi"}`),
	})

	waitFor(t, func() bool { return len(engine.Messages("5511999999999")) == 1 })
	assert.Equal(t, 0, engine.UnreadCounts()["5511999999999"])
}

func TestSnapshotEventReplacesLeads(t *testing.T) {
	engine, hub := newEngine(t, []*models.Lead{
		{ID: 1, Telefone: "5511999999999", CompanyID: "sp3"},
	}, nil)

	hub.PublishLead(changefeed.LeadEvent{
		Type:      changefeed.EventSnapshot,
		CompanyID: "sp3",
		Leads:     []*models.Lead{{ID: 2, Telefone: "5521888888888", CompanyID: "sp3"}},
	})

	waitFor(t, func() bool {
		leads := engine.Leads()
		return len(leads) == 1 && leads[0].ID == 2
	})
}

func TestLeadUpdateEventIsProjected(t *testing.T) {
	engine, hub := newEngine(t, []*models.Lead{
		{ID: 1, Telefone: "5511999999999", CompanyID: "sp3", Nome: "Maria"},
	}, nil)

	hub.PublishLead(changefeed.LeadEvent{
		Type:      changefeed.EventUpdate,
		CompanyID: "sp3",
		Lead:      &models.Lead{ID: 1, Telefone: "5511999999999", CompanyID: "sp3", Nome: "Maria Silva"},
	})

	waitFor(t, func() bool {
		leads := engine.Leads()
		return len(leads) == 1 && leads[0].Nome == "Maria Silva"
	})
}

func TestOpenConversationClearsUnreadAndLoadsHistory(t *testing.T) {
	engine, hub := newEngine(t, []*models.Lead{
		{ID: 1, Telefone: "5511999999999", CompanyID: "sp3"},
		{ID: 2, Telefone: "5521888888888", CompanyID: "sp3"},
	}, map[string][]*models.ChatRecord{
		"5521888888888": {historyRecord(1, "5521888888888", `{"type":"human","content":"histórico"}`)},
	})

	hub.PublishMessage(changefeed.MessageEvent{
		Type:      changefeed.EventInsert,
		CompanyID: "sp3",
		Record:    historyRecord(10, "5521888888888", `{"type":"human","content":"nova"}`),
	})
	waitFor(t, func() bool { return engine.UnreadCounts()["5521888888888"] == 1 })

	msgs, err := engine.OpenConversation("5521888888888")
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "histórico", msgs[0].Text)
	assert.Equal(t, 0, engine.UnreadCounts()["5521888888888"])
	assert.Equal(t, "5521888888888", engine.CurrentConversation())
}

func TestOpenConversationWithNoLeads(t *testing.T) {
	engine, _ := newEngine(t, nil, nil)

	_, err := engine.OpenConversation("")
	require.Error(t, err)
}

func TestCloseIsIdempotent(t *testing.T) {
	engine, _ := newEngine(t, nil, nil)
	engine.Close()
	engine.Close()
}

func TestCloseWithoutStart(t *testing.T) {
	engine := NewSyncEngine("sp3", changefeed.NewHub(), nil, &fakeLeadReader{}, &fakeHistoryReader{}, store.NewEntityStore(), unread.NewTracker(nil), selection.NewController(nil, store.NewEntityStore()), wsnotify.NewManager())
	engine.Close()
}
