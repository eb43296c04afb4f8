package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/calsync/internal/models"
	"github.com/desertthunder/calsync/internal/shared"
)

// ProjectRepository persists [models.Project] records.
type ProjectRepository struct {
	db *sql.DB
}

// NewProjectRepository creates a new [ProjectRepository] with the given database connection
func NewProjectRepository(db *sql.DB) *ProjectRepository {
	return &ProjectRepository{db: db}
}

// Create inserts a new project.
func (r *ProjectRepository) Create(project *models.Project) error {
	if err := project.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	now := time.Now()
	if project.CreatedAt.IsZero() {
		project.CreatedAt = now
	}
	if project.UpdatedAt.IsZero() {
		project.UpdatedAt = now
	}

	query := `
		INSERT INTO projects (id, user_id, name, color, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.Exec(query, project.ID, project.UserID, project.Name,
		project.Color, project.CreatedAt, project.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert project: %w", err)
	}

	return nil
}

// Get retrieves a project by ID.
func (r *ProjectRepository) Get(id string) (*models.Project, error) {
	query := `
		SELECT id, user_id, name, color, created_at, updated_at
		FROM projects
		WHERE id = ?
	`

	var p models.Project
	err := r.db.QueryRow(query, id).Scan(&p.ID, &p.UserID, &p.Name, &p.Color,
		&p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", shared.ErrProjectNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query project: %w", err)
	}

	return &p, nil
}

// Update modifies an existing project.
func (r *ProjectRepository) Update(project *models.Project) error {
	if err := project.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	now := time.Now()
	project.UpdatedAt = now

	query := `
		UPDATE projects
		SET name = ?, color = ?, updated_at = ?
		WHERE id = ?
	`

	result, err := r.db.Exec(query, project.Name, project.Color, now, project.ID)
	if err != nil {
		return fmt.Errorf("failed to update project: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", shared.ErrProjectNotFound, project.ID)
	}

	return nil
}
