package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rjmacleod/sentinel/internal/database"
	"github.com/rjmacleod/sentinel/internal/models"
)

type UserRepository struct {
	db *database.DB
}

func NewUserRepository(db *database.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	query := `
		SELECT id, username, password_hash, created_at, updated_at
		FROM users WHERE username = $1
	`

	var user models.User
	err := r.db.Pool.QueryRow(ctx, query, username).Scan(
		&user.ID, &user.Username, &user.PasswordHash, &user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	return &user, nil
}

func (r *UserRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	user.ID = uuid.New().String()

	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now

	query := `
		INSERT INTO users (id, username, password_hash, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, username, password_hash, created_at, updated_at
	`

	var created models.User
	err := r.db.Pool.QueryRow(ctx, query,
		user.ID, user.Username, user.PasswordHash, user.CreatedAt, user.UpdatedAt,
	).Scan(&created.ID, &created.Username, &created.PasswordHash, &created.CreatedAt, &created.UpdatedAt)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	return &created, nil
}
