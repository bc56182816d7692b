package selection

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crm-sync/internal/models"
)

type memPersister struct {
	key string
}

func (m *memPersister) LoadSelection() (string, error) { return m.key, nil }
func (m *memPersister) SaveSelection(key string) error { m.key = key; return nil }

type memSource struct {
	leads []*models.Lead
}

func (m *memSource) Leads() []*models.Lead {
	out := make([]*models.Lead, len(m.leads))
	copy(out, m.leads)
	return out
}

func (m *memSource) LeadByPhone(telefone string) (*models.Lead, bool) {
	for _, l := range m.leads {
		if l.Telefone == telefone {
			return l, true
		}
	}
	return nil, false
}

func at(day int) *time.Time {
	t := time.Date(2025, 3, day, 12, 0, 0, 0, time.UTC)
	return &t
}

func TestResolveExplicitRequestWins(t *testing.T) {
	p := &memPersister{key: "5521888888888"}
	src := &memSource{leads: []*models.Lead{
		{ID: 1, Telefone: "5511999999999"},
		{ID: 2, Telefone: "5521888888888"},
	}}
	c := NewController(p, src)

	got := c.Resolve("5511999999999")

	assert.Equal(t, "5511999999999", got)
	assert.Equal(t, "5511999999999", c.Current())
	assert.Equal(t, "5511999999999", p.key, "resolução persiste a escolha")
}

func TestResolveFallsBackToPersisted(t *testing.T) {
	p := &memPersister{key: "5521888888888"}
	src := &memSource{leads: []*models.Lead{
		{ID: 1, Telefone: "5511999999999", LastInteractionAt: at(20)},
		{ID: 2, Telefone: "5521888888888", LastInteractionAt: at(5)},
	}}
	c := NewController(p, src)

	assert.Equal(t, "5521888888888", c.Resolve(""))
}

func TestResolveUnknownRequestFallsThrough(t *testing.T) {
	p := &memPersister{key: "5521888888888"}
	src := &memSource{leads: []*models.Lead{
		{ID: 2, Telefone: "5521888888888"},
	}}
	c := NewController(p, src)

	assert.Equal(t, "5521888888888", c.Resolve("0000"))
}

func TestResolveStalePersistedFallsToMostRecent(t *testing.T) {
	p := &memPersister{key: "numero-removido"}
	src := &memSource{leads: []*models.Lead{
		{ID: 1, Telefone: "5511999999999", LastInteractionAt: at(5)},
		{ID: 2, Telefone: "5521888888888", LastInteractionAt: at(20)},
	}}
	c := NewController(p, src)

	assert.Equal(t, "5521888888888", c.Resolve(""))
}

func TestResolveEmptyStore(t *testing.T) {
	c := NewController(&memPersister{}, &memSource{})

	assert.Equal(t, "", c.Resolve(""))
	assert.Equal(t, "", c.Current())
}

func TestRecencyOrdering(t *testing.T) {
	src := &memSource{leads: []*models.Lead{
		{ID: 1, Telefone: "a", CreatedAt: *at(1)},
		{ID: 2, Telefone: "b", CreatedAt: *at(1), StageUpdatedAt: at(10)},
		{ID: 3, Telefone: "c", CreatedAt: *at(1), StageUpdatedAt: at(2), LastInteractionAt: at(15)},
		{ID: 4, Telefone: "d", CreatedAt: *at(3)},
	}}
	c := NewController(nil, src)

	ordered := c.OrderedLeads()

	require.Len(t, ordered, 4)
	// last_interaction_at > stage_updated_at > created_at, decrescente.
	assert.Equal(t, "c", ordered[0].Telefone)
	assert.Equal(t, "b", ordered[1].Telefone)
	assert.Equal(t, "d", ordered[2].Telefone)
	assert.Equal(t, "a", ordered[3].Telefone)
}

func TestRecencyTieBreaksOnID(t *testing.T) {
	src := &memSource{leads: []*models.Lead{
		{ID: 1, Telefone: "a", CreatedAt: *at(1)},
		{ID: 2, Telefone: "b", CreatedAt: *at(1)},
	}}
	c := NewController(nil, src)

	ordered := c.OrderedLeads()
	assert.Equal(t, "b", ordered[0].Telefone)
}

func TestOpenPersists(t *testing.T) {
	p := &memPersister{}
	c := NewController(p, &memSource{})

	c.Open("5511999999999")

	assert.Equal(t, "5511999999999", c.Current())
	assert.Equal(t, "5511999999999", p.key)
}
