package localstate

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"crm-sync/internal/utils"
)

// Store é o estado local do cliente (seleção de conversa e contadores de não
// lidas), guardado num SQLite ao lado do binário. Última escrita vence.
type Store struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS selected_chat (
	id INTEGER PRIMARY KEY CHECK (id = 1),
	conversation_key TEXT NOT NULL DEFAULT ''
);
CREATE TABLE IF NOT EXISTS unread_counts (
	conversation_key TEXT PRIMARY KEY,
	count INTEGER NOT NULL
);
`

// Open abre (ou cria) o banco de estado em dir/state.db.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("erro ao criar diretório de estado %s: %w", dir, err)
	}
	path := filepath.Join(dir, "state.db")
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("erro ao abrir estado local em %s: %w", path, err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("erro ao criar esquema do estado local: %w", err)
	}
	utils.LogDebug("Estado local aberto em %s", path)
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) LoadSelection() (string, error) {
	var key string
	err := s.db.QueryRow("SELECT conversation_key FROM selected_chat WHERE id = 1").Scan(&key)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("erro ao ler seleção persistida: %w", err)
	}
	return key, nil
}

func (s *Store) SaveSelection(key string) error {
	_, err := s.db.Exec(`
		INSERT INTO selected_chat (id, conversation_key) VALUES (1, ?)
		ON CONFLICT(id) DO UPDATE SET conversation_key = excluded.conversation_key`, key)
	if err != nil {
		return fmt.Errorf("erro ao persistir seleção: %w", err)
	}
	return nil
}

func (s *Store) LoadUnread() (map[string]int, error) {
	rows, err := s.db.Query("SELECT conversation_key, count FROM unread_counts WHERE count > 0")
	if err != nil {
		return nil, fmt.Errorf("erro ao ler contadores: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var key string
		var count int
		if err := rows.Scan(&key, &count); err != nil {
			return nil, err
		}
		counts[key] = count
	}
	return counts, rows.Err()
}

// SaveUnread grava a foto completa dos contadores, removendo o que zerou.
func (s *Store) SaveUnread(counts map[string]int) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("erro ao iniciar transação de contadores: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM unread_counts"); err != nil {
		return err
	}
	for key, count := range counts {
		if count <= 0 {
			continue
		}
		if _, err := tx.Exec("INSERT INTO unread_counts (conversation_key, count) VALUES (?, ?)", key, count); err != nil {
			return err
		}
	}
	return tx.Commit()
}
