package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/burdemar/orderflow/internal/domain"
	"github.com/burdemar/orderflow/internal/postgres"
)

const (
	RoleAdmin = "ADMIN"
	RoleUser  = "USER"
)

type User struct {
	ID           string
	Username     string
	PasswordHash string
	Role         string
	CreatedAt    time.Time
}

type Repo struct {
	DB *postgres.DB
}

func NewRepo(db *postgres.DB) *Repo {
	return &Repo{DB: db}
}

func (r *Repo) GetByUsername(ctx context.Context, username string) (User, error) {
	var u User
	err := r.DB.QueryRow(ctx, `
SELECT id, username, password_hash, role, created_at
FROM users WHERE username = $1`, username).
		Scan(&u.ID, &u.Username, &u.PasswordHash, &u.Role, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, domain.ErrUserNotFound
		}
		return User{}, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

func (r *Repo) Create(ctx context.Context, u User) error {
	_, err := r.DB.Exec(ctx, `
INSERT INTO users (id, username, password_hash, role, created_at)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (username) DO NOTHING`,
		u.ID, u.Username, u.PasswordHash, u.Role, u.CreatedAt)
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}
