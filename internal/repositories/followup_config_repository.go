package repositories

import (
	"database/sql"
	"fmt"
)

// FollowupConfigRepository lê a configuração da sequência de follow-up
// cadastrada para o tenant.
type FollowupConfigRepository struct {
	db *sql.DB
}

func NewFollowupConfigRepository(db *sql.DB) *FollowupConfigRepository {
	return &FollowupConfigRepository{db: db}
}

// TotalSteps devolve o maior número de etapa cadastrado; zero quando a
// sequência não foi configurada.
func (r *FollowupConfigRepository) TotalSteps(companyID string) (int, error) {
	var total int
	err := r.db.QueryRow(
		"SELECT COALESCE(MAX(step_number), 0) FROM followup_steps WHERE company_id = ?",
		companyID,
	).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("erro ao consultar etapas de follow-up: %w", err)
	}
	return total, nil
}
