package repository

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/kmorozova/mealscan/internal/common"
	"github.com/kmorozova/mealscan/internal/database"
	"github.com/kmorozova/mealscan/internal/models"
)

type Repository struct {
	db *database.DB
}

func New(db *database.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) DB() *database.DB {
	return r.db
}

// CreateScan inserts a finished scan row. Scans are written once, after the
// relay call returns; there is no pending state.
func (r *Repository) CreateScan(ctx context.Context, s *models.Scan) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}

	query := `
		INSERT INTO scans (id, user_id, kind, original_filename, content_type, file_size,
			storage_key, storage_url, status, result, model, tokens_used, processing_time_ms, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, NOW())
	`

	_, err := r.db.Pool().Exec(ctx, query,
		s.ID,
		s.UserID,
		s.Kind,
		s.OriginalFilename,
		s.ContentType,
		s.FileSize,
		s.StorageKey,
		s.StorageURL,
		s.Status,
		s.Result,
		s.Model,
		s.TokensUsed,
		s.ProcessingTimeMs,
	)
	return err
}

func (r *Repository) GetScanByID(ctx context.Context, id uuid.UUID) (*models.Scan, error) {
	query := `
		SELECT id, user_id, kind, original_filename, content_type, file_size,
			storage_key, storage_url, status, result, model, tokens_used, processing_time_ms, created_at
		FROM scans
		WHERE id = $1
	`

	var s models.Scan
	err := r.db.Pool().QueryRow(ctx, query, id).Scan(
		&s.ID,
		&s.UserID,
		&s.Kind,
		&s.OriginalFilename,
		&s.ContentType,
		&s.FileSize,
		&s.StorageKey,
		&s.StorageURL,
		&s.Status,
		&s.Result,
		&s.Model,
		&s.TokensUsed,
		&s.ProcessingTimeMs,
		&s.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, common.ErrScanNotFound
	}
	if err != nil {
		return nil, err
	}

	return &s, nil
}

func (r *Repository) GetScansByUserID(ctx context.Context, userID uuid.UUID) ([]models.Scan, error) {
	query := `
		SELECT id, user_id, kind, original_filename, content_type, file_size,
			storage_key, storage_url, status, result, model, tokens_used, processing_time_ms, created_at
		FROM scans
		WHERE user_id = $1
		ORDER BY created_at DESC
	`

	rows, err := r.db.Pool().Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var scans []models.Scan
	for rows.Next() {
		var s models.Scan
		err := rows.Scan(
			&s.ID,
			&s.UserID,
			&s.Kind,
			&s.OriginalFilename,
			&s.ContentType,
			&s.FileSize,
			&s.StorageKey,
			&s.StorageURL,
			&s.Status,
			&s.Result,
			&s.Model,
			&s.TokensUsed,
			&s.ProcessingTimeMs,
			&s.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		scans = append(scans, s)
	}

	return scans, rows.Err()
}

func (r *Repository) CreateUser(ctx context.Context, user *models.User) error {
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}

	query := `
		INSERT INTO users (id, username, email, password_hash, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NOW(), NOW())
	`

	_, err := r.db.Pool().Exec(ctx, query, user.ID, user.Username, user.Email, user.PasswordHash)
	return err
}

func (r *Repository) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.getUser(ctx, `
		SELECT id, username, email, password_hash, created_at, updated_at
		FROM users
		WHERE email = $1
	`, email)
}

func (r *Repository) GetUserByID(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	return r.getUser(ctx, `
		SELECT id, username, email, password_hash, created_at, updated_at
		FROM users
		WHERE id = $1
	`, userID)
}

func (r *Repository) getUser(ctx context.Context, query string, arg any) (*models.User, error) {
	var user models.User
	err := r.db.Pool().QueryRow(ctx, query, arg).Scan(
		&user.ID,
		&user.Username,
		&user.Email,
		&user.PasswordHash,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, common.ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}

	roles, err := r.GetUserRoles(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user roles: %w", err)
	}
	user.Roles = roles

	return &user, nil
}

func (r *Repository) GetUserRoles(ctx context.Context, userID uuid.UUID) ([]models.Role, error) {
	query := `
		SELECT r.id, r.name, r.description, r.created_at
		FROM roles r
		INNER JOIN user_roles ur ON r.id = ur.role_id
		WHERE ur.user_id = $1
		ORDER BY r.name
	`

	rows, err := r.db.Pool().Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var roles []models.Role
	for rows.Next() {
		var role models.Role
		if err := rows.Scan(&role.ID, &role.Name, &role.Description, &role.CreatedAt); err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}

	return roles, rows.Err()
}

func (r *Repository) AssignRoleToUser(ctx context.Context, userID uuid.UUID, roleName string) error {
	query := `
		INSERT INTO user_roles (user_id, role_id)
		SELECT $1, id FROM roles WHERE name = $2
		ON CONFLICT (user_id, role_id) DO NOTHING
	`

	_, err := r.db.Pool().Exec(ctx, query, userID, roleName)
	return err
}

func (r *Repository) HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(bytes), err
}

func (r *Repository) CheckPassword(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

func (r *Repository) CreateRefreshToken(ctx context.Context, token *models.RefreshToken) error {
	if token.ID == uuid.Nil {
		token.ID = uuid.New()
	}

	query := `
		INSERT INTO refresh_tokens (id, user_id, token_hash, expires_at, created_at)
		VALUES ($1, $2, $3, $4, NOW())
	`

	_, err := r.db.Pool().Exec(ctx, query, token.ID, token.UserID, token.TokenHash, token.ExpiresAt)
	return err
}

func (r *Repository) RevokeRefreshToken(ctx context.Context, tokenHash string) error {
	query := `
		UPDATE refresh_tokens
		SET revoked_at = NOW()
		WHERE token_hash = $1
	`

	_, err := r.db.Pool().Exec(ctx, query, tokenHash)
	return err
}

// HashRefreshToken derives the storage key for an opaque refresh token.
// Only the hash ever touches Redis or Postgres.
func (r *Repository) HashRefreshToken(token string) string {
	hash := sha256.Sum256([]byte(token))
	return fmt.Sprintf("%x", hash)
}
