package repositories

import (
	"database/sql"
	"fmt"

	"crm-sync/internal/models"
)

type UserRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) GetByID(id int) (*models.User, error) {
	var user models.User
	err := r.db.QueryRow("SELECT id, name FROM usuarios WHERE id = ?", id).Scan(&user.ID, &user.Name)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("usuário %d não encontrado", id)
	}
	if err != nil {
		return nil, fmt.Errorf("erro ao buscar usuário %d: %w", id, err)
	}
	return &user, nil
}
