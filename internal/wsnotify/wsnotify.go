package wsnotify

import (
	"encoding/json"
	"sync"

	"github.com/gorilla/websocket"

	"crm-sync/internal/utils"
)

// Event é o envelope enviado ao front-end por WebSocket.
type Event struct {
	Type    string      `json:"type"`   // lead | message | unread | selection
	Action  string      `json:"action"` // insert | update | delete | snapshot | open
	Payload interface{} `json:"payload,omitempty"`
}

// Manager mantém as conexões WebSocket do front-end e replica para todas os
// eventos já projetados pelo motor de sincronização. Clientes com escrita
// falhando são descartados; a tela reconverge pelo polling ao reconectar.
type Manager struct {
	mu      sync.RWMutex
	clients map[*websocket.Conn]bool
}

func NewManager() *Manager {
	return &Manager{clients: make(map[*websocket.Conn]bool)}
}

func (m *Manager) Register(conn *websocket.Conn) {
	m.mu.Lock()
	m.clients[conn] = true
	total := len(m.clients)
	m.mu.Unlock()
	utils.LogInfo("Cliente WebSocket conectado (%d ativos)", total)
}

func (m *Manager) Unregister(conn *websocket.Conn) {
	m.mu.Lock()
	if _, ok := m.clients[conn]; ok {
		delete(m.clients, conn)
		conn.Close()
	}
	total := len(m.clients)
	m.mu.Unlock()
	utils.LogInfo("Cliente WebSocket desconectado (%d ativos)", total)
}

// Broadcast serializa o evento uma vez e envia a todos. Conexões mortas são
// removidas no caminho.
func (m *Manager) Broadcast(event Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		utils.LogError("Erro ao serializar evento WebSocket: %v", err)
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for conn := range m.clients {
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			utils.LogWarning("Removendo cliente WebSocket com escrita falhando: %v", err)
			delete(m.clients, conn)
			conn.Close()
		}
	}
}

func (m *Manager) SendLeadEvent(action string, payload interface{}) {
	m.Broadcast(Event{Type: "lead", Action: action, Payload: payload})
}

func (m *Manager) SendMessageEvent(action string, payload interface{}) {
	m.Broadcast(Event{Type: "message", Action: action, Payload: payload})
}

func (m *Manager) SendUnreadEvent(counts map[string]int) {
	m.Broadcast(Event{Type: "unread", Action: "update", Payload: counts})
}

func (m *Manager) SendSelectionEvent(conversationKey string) {
	m.Broadcast(Event{Type: "selection", Action: "open", Payload: conversationKey})
}

// CloseAll derruba todas as conexões; usado no desligamento gracioso.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for conn := range m.clients {
		conn.Close()
		delete(m.clients, conn)
	}
}
