package repository

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/DayMoonDevelopment/post-for-me-sub000/internal/models"
)

type ProjectRepository interface {
	GetByID(ctx context.Context, id int64) (*models.Project, error)
}

type projectRepository struct {
	db *sql.DB
}

func NewProjectRepository(db *sql.DB) ProjectRepository {
	return &projectRepository{db: db}
}

func (r *projectRepository) GetByID(ctx context.Context, id int64) (*models.Project, error) {
	query := `SELECT id, name, billing_customer_id, created_at FROM projects WHERE id = $1`
	row := r.db.QueryRowContext(ctx, query, id)

	var p models.Project
	err := row.Scan(&p.ID, &p.Name, &p.BillingCustomerID, &p.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		slog.Info(err.Error())
		return nil, err
	}
	return &p, nil
}
