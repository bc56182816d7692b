package changefeed

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crm-sync/internal/models"
)

func TestHubFiltersByCompany(t *testing.T) {
	hub := NewHub()
	chA, cancelA := hub.SubscribeLeads("empresa-a")
	defer cancelA()
	chB, cancelB := hub.SubscribeLeads("empresa-b")
	defer cancelB()

	hub.PublishLead(LeadEvent{Type: EventUpdate, CompanyID: "empresa-a", Lead: &models.Lead{ID: 1}})

	select {
	case ev := <-chA:
		assert.Equal(t, EventUpdate, ev.Type)
		assert.Equal(t, int64(1), ev.Lead.ID)
	case <-time.After(time.Second):
		t.Fatal("assinante do tenant não recebeu o evento")
	}
	select {
	case <-chB:
		t.Fatal("evento vazou para outro tenant")
	default:
	}
}

func TestHubMessageSessionFilter(t *testing.T) {
	hub := NewHub()
	chAll, cancelAll := hub.SubscribeMessages("sp3", "")
	defer cancelAll()
	chOne, cancelOne := hub.SubscribeMessages("sp3", "5511999999999")
	defer cancelOne()

	hub.PublishMessage(MessageEvent{
		Type:      EventInsert,
		CompanyID: "sp3",
		Record:    &models.ChatRecord{ID: 1, SessionID: "5521888888888", Message: json.RawMessage(`"oi"`)},
	})

	select {
	case ev := <-chAll:
		assert.Equal(t, "5521888888888", ev.Record.SessionID)
	case <-time.After(time.Second):
		t.Fatal("assinante do tenant não recebeu o evento")
	}
	select {
	case <-chOne:
		t.Fatal("filtro de conversa não foi aplicado")
	default:
	}
}

func TestHubCancelIsIdempotent(t *testing.T) {
	hub := NewHub()
	ch, cancel := hub.SubscribeLeads("sp3")

	cancel()
	cancel()

	_, open := <-ch
	assert.False(t, open)

	// Publicar depois do cancelamento não pode entrar em pânico.
	hub.PublishLead(LeadEvent{Type: EventDelete, CompanyID: "sp3", LeadID: 9})
}

func TestHubFullBufferDoesNotBlockPublisher(t *testing.T) {
	hub := NewHub()
	_, cancel := hub.SubscribeLeads("sp3")
	defer cancel()

	done := make(chan struct{})
	go func() {
		for i := 0; i < subscriberBuffer*2; i++ {
			hub.PublishLead(LeadEvent{Type: EventUpdate, CompanyID: "sp3", Lead: &models.Lead{ID: int64(i)}})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publicador bloqueou com assinante lento")
	}
}

type fakeLister struct {
	mu    sync.Mutex
	calls int
	leads []*models.Lead
}

func (f *fakeLister) ListByCompany(companyID string) ([]*models.Lead, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.leads, nil
}

func TestPollerPublishesSnapshots(t *testing.T) {
	hub := NewHub()
	lister := &fakeLister{leads: []*models.Lead{{ID: 1, Telefone: "5511999999999"}}}
	ch, cancel := hub.SubscribeLeads("sp3")
	defer cancel()

	poller := NewPoller(hub, lister, "sp3", 10*time.Millisecond)
	poller.Start(context.Background())
	defer poller.Close()

	select {
	case ev := <-ch:
		assert.Equal(t, EventSnapshot, ev.Type)
		require.Len(t, ev.Leads, 1)
		assert.Equal(t, int64(1), ev.Leads[0].ID)
	case <-time.After(2 * time.Second):
		t.Fatal("poller não publicou snapshot")
	}
}

func TestPollerCloseIsIdempotent(t *testing.T) {
	hub := NewHub()
	poller := NewPoller(hub, &fakeLister{}, "sp3", 10*time.Millisecond)
	poller.Start(context.Background())

	poller.Close()
	poller.Close()
}

func TestPollerCloseWithoutStart(t *testing.T) {
	poller := NewPoller(NewHub(), &fakeLister{}, "sp3", 0)
	poller.Close()
	assert.Equal(t, DefaultPollInterval, poller.interval)
}
