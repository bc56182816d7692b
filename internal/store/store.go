package store

import (
	"sort"
	"sync"

	"crm-sync/internal/models"
	"crm-sync/internal/parser"
)

// EntityStore é o cache local de leads e mensagens canônicas, indexado por id.
// Aplicar o mesmo evento duas vezes, ou eventos fora de ordem seguidos de um
// snapshot, converge sempre para o mesmo estado.
type EntityStore struct {
	mu       sync.RWMutex
	leads    map[int64]*models.Lead
	byPhone  map[string]int64 // telefone canônico -> lead id
	messages map[string]map[int64]models.Message // conversa -> id -> mensagem
}

func NewEntityStore() *EntityStore {
	return &EntityStore{
		leads:    make(map[int64]*models.Lead),
		byPhone:  make(map[string]int64),
		messages: make(map[string]map[int64]models.Message),
	}
}

// MergeLead insere ou substitui o lead pelo id. Idempotente. É o caminho das
// projeções locais após escrita confirmada, que não sabem se o cache já viu o
// lead.
func (s *EntityStore) MergeLead(lead *models.Lead) {
	if lead == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mergeLeadLocked(lead)
}

// InsertLead aplica um evento INSERT: entrega duplicada (id já presente) é
// ignorada.
func (s *EntityStore) InsertLead(lead *models.Lead) {
	if lead == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.leads[lead.ID]; ok {
		return
	}
	s.mergeLeadLocked(lead)
}

// UpdateLead aplica um evento UPDATE: update de lead desconhecido (entrega
// fora de ordem) é ignorado; o próximo snapshot reconcilia.
func (s *EntityStore) UpdateLead(lead *models.Lead) {
	if lead == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.leads[lead.ID]; !ok {
		return
	}
	s.mergeLeadLocked(lead)
}

func (s *EntityStore) mergeLeadLocked(lead *models.Lead) {
	if prev, ok := s.leads[lead.ID]; ok && prev.Telefone != lead.Telefone {
		delete(s.byPhone, prev.Telefone)
	}
	c := lead.Clone()
	s.leads[c.ID] = c
	if c.Telefone != "" {
		s.byPhone[c.Telefone] = c.ID
	}
}

// RemoveLead descarta o lead. Mensagens da conversa são preservadas.
func (s *EntityStore) RemoveLead(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if prev, ok := s.leads[id]; ok {
		delete(s.byPhone, prev.Telefone)
		delete(s.leads, id)
	}
}

// SnapshotLeads substitui o conjunto de leads por inteiro. Mensagens não são
// tocadas: o snapshot é a autoridade sobre leads, não sobre o histórico.
func (s *EntityStore) SnapshotLeads(leads []*models.Lead) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.leads = make(map[int64]*models.Lead, len(leads))
	s.byPhone = make(map[string]int64, len(leads))
	for _, lead := range leads {
		if lead != nil {
			s.mergeLeadLocked(lead)
		}
	}
}

// MergeMessage converte a linha crua e a insere na conversa. O booleano
// indica se a mensagem é nova (false em replays do mesmo id).
func (s *EntityStore) MergeMessage(record *models.ChatRecord) (models.Message, bool) {
	msg := parser.Parse(record)
	s.mu.Lock()
	defer s.mu.Unlock()
	conv := s.messages[msg.ConversationKey]
	if conv == nil {
		conv = make(map[int64]models.Message)
		s.messages[msg.ConversationKey] = conv
	}
	if existing, seen := conv[msg.ID]; seen {
		return existing, false
	}
	conv[msg.ID] = msg
	return msg, true
}

// ReplaceMessages substitui o histórico de uma conversa pelo resultado de um
// carregamento completo.
func (s *EntityStore) ReplaceMessages(conversationKey string, records []*models.ChatRecord) []models.Message {
	conv := make(map[int64]models.Message, len(records))
	out := make([]models.Message, 0, len(records))
	for _, record := range records {
		msg := parser.Parse(record)
		conv[msg.ID] = msg
		out = append(out, msg)
	}
	s.mu.Lock()
	s.messages[conversationKey] = conv
	s.mu.Unlock()
	return out
}

func (s *EntityStore) GetLead(id int64) (*models.Lead, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	lead, ok := s.leads[id]
	if !ok {
		return nil, false
	}
	return lead.Clone(), true
}

func (s *EntityStore) LeadByPhone(telefone string) (*models.Lead, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byPhone[telefone]
	if !ok {
		return nil, false
	}
	return s.leads[id].Clone(), true
}

// Leads devolve cópias de todos os leads, sem ordem definida.
func (s *EntityStore) Leads() []*models.Lead {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Lead, 0, len(s.leads))
	for _, lead := range s.leads {
		out = append(out, lead.Clone())
	}
	return out
}

// Messages devolve o histórico da conversa ordenado pelo id da linha.
func (s *EntityStore) Messages(conversationKey string) []models.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	conv := s.messages[conversationKey]
	out := make([]models.Message, 0, len(conv))
	for _, msg := range conv {
		out = append(out, msg)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
