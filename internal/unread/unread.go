package unread

import (
	"sync"

	"crm-sync/internal/models"
	"crm-sync/internal/utils"
)

// Persister guarda os contadores entre execuções do cliente. As contagens são
// um artefato local de quem está olhando a tela, não estado compartilhado.
type Persister interface {
	LoadUnread() (map[string]int, error)
	SaveUnread(counts map[string]int) error
}

// Tracker mantém o contador de não lidas por conversa.
//
// Regras: só mensagem humana que não veio do CRM incrementa, e apenas quando a
// conversa não está aberta; qualquer mensagem de ia/CRM na conversa zera o
// contador (o agente já respondeu, não há nada pendente); abrir a conversa
// zera.
type Tracker struct {
	mu        sync.Mutex
	counts    map[string]int
	persister Persister
}

func NewTracker(persister Persister) *Tracker {
	t := &Tracker{counts: make(map[string]int), persister: persister}
	if persister != nil {
		if saved, err := persister.LoadUnread(); err != nil {
			utils.LogWarning("Não foi possível carregar contadores de não lidas: %v", err)
		} else {
			for k, v := range saved {
				if v > 0 {
					t.counts[k] = v
				}
			}
		}
	}
	return t
}

// OnMessageInserted aplica uma mensagem recém-inserida. openKey é a conversa
// aberta no momento (vazio quando nenhuma).
func (t *Tracker) OnMessageInserted(msg models.Message, openKey string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	key := msg.ConversationKey
	if msg.Type == models.TypeHuman && !msg.SentByCRM {
		if key == openKey {
			return
		}
		t.counts[key]++
		t.persistLocked()
		return
	}
	// ia, system ou qualquer coisa enviada pelo CRM: pendência resolvida.
	if t.counts[key] != 0 {
		delete(t.counts, key)
		t.persistLocked()
	}
}

// OnConversationOpened zera o contador da conversa aberta.
func (t *Tracker) OnConversationOpened(key string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.counts[key] != 0 {
		delete(t.counts, key)
		t.persistLocked()
	}
}

func (t *Tracker) Count(key string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.counts[key]
}

// Counts devolve uma cópia de todos os contadores não nulos.
func (t *Tracker) Counts() map[string]int {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[string]int, len(t.counts))
	for k, v := range t.counts {
		out[k] = v
	}
	return out
}

func (t *Tracker) persistLocked() {
	if t.persister == nil {
		return
	}
	snapshot := make(map[string]int, len(t.counts))
	for k, v := range t.counts {
		snapshot[k] = v
	}
	if err := t.persister.SaveUnread(snapshot); err != nil {
		utils.LogWarning("Não foi possível persistir contadores de não lidas: %v", err)
	}
}
