package unread

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"crm-sync/internal/models"
)

type memPersister struct {
	saved   map[string]int
	loadErr error
	saveErr error
}

func (m *memPersister) LoadUnread() (map[string]int, error) {
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	return m.saved, nil
}

func (m *memPersister) SaveUnread(counts map[string]int) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.saved = counts
	return nil
}

func human(key string) models.Message {
	return models.Message{ConversationKey: key, Type: models.TypeHuman}
}

func TestHumanMessageIncrementsWhenNotOpen(t *testing.T) {
	tr := NewTracker(nil)

	tr.OnMessageInserted(human("5511999999999"), "")
	tr.OnMessageInserted(human("5511999999999"), "5521888888888")

	assert.Equal(t, 2, tr.Count("5511999999999"))
}

func TestHumanMessageInOpenConversationDoesNotIncrement(t *testing.T) {
	tr := NewTracker(nil)

	tr.OnMessageInserted(human("5511999999999"), "5511999999999")

	assert.Equal(t, 0, tr.Count("5511999999999"))
}

func TestCRMSentHumanDoesNotIncrement(t *testing.T) {
	tr := NewTracker(nil)
	msg := human("5511999999999")
	msg.SentByCRM = true

	tr.OnMessageInserted(msg, "")

	assert.Equal(t, 0, tr.Count("5511999999999"))
}

func TestAIMessageClearsCounter(t *testing.T) {
	tr := NewTracker(nil)
	tr.OnMessageInserted(human("5511999999999"), "")
	tr.OnMessageInserted(human("5511999999999"), "")

	tr.OnMessageInserted(models.Message{ConversationKey: "5511999999999", Type: models.TypeAI}, "")

	assert.Equal(t, 0, tr.Count("5511999999999"))
}

func TestSystemMessageClearsCounter(t *testing.T) {
	tr := NewTracker(nil)
	tr.OnMessageInserted(human("5511999999999"), "")

	tr.OnMessageInserted(models.Message{ConversationKey: "5511999999999", Type: models.TypeSystem, SentByCRM: true}, "")

	assert.Equal(t, 0, tr.Count("5511999999999"))
}

func TestOpeningConversationClears(t *testing.T) {
	tr := NewTracker(nil)
	tr.OnMessageInserted(human("5511999999999"), "")

	tr.OnConversationOpened("5511999999999")

	assert.Equal(t, 0, tr.Count("5511999999999"))
	assert.Empty(t, tr.Counts())
}

func TestCountersPersistAndReload(t *testing.T) {
	p := &memPersister{}
	tr := NewTracker(p)
	tr.OnMessageInserted(human("5511999999999"), "")

	reloaded := NewTracker(p)
	assert.Equal(t, 1, reloaded.Count("5511999999999"))
}

func TestPersisterErrorsAreNonFatal(t *testing.T) {
	p := &memPersister{loadErr: errors.New("sem disco"), saveErr: errors.New("sem disco")}
	tr := NewTracker(p)

	tr.OnMessageInserted(human("5511999999999"), "")

	assert.Equal(t, 1, tr.Count("5511999999999"))
}
