package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type User struct {
	ID           uuid.UUID `json:"id" db:"id"`
	Username     string    `json:"username" db:"username"`
	Email        string    `json:"email" db:"email"`
	PasswordHash string    `json:"-" db:"password_hash"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
	Roles        []Role    `json:"roles,omitempty"`
}

type Role struct {
	ID          int       `json:"id" db:"id"`
	Name        string    `json:"name" db:"name"`
	Description string    `json:"description,omitempty" db:"description"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

type RefreshToken struct {
	ID        uuid.UUID  `json:"id" db:"id"`
	UserID    uuid.UUID  `json:"user_id" db:"user_id"`
	TokenHash string     `json:"-" db:"token_hash"`
	ExpiresAt time.Time  `json:"expires_at" db:"expires_at"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
	RevokedAt *time.Time `json:"revoked_at,omitempty" db:"revoked_at"`
}

// ScanKind distinguishes which endpoint produced a scan.
type ScanKind string

const (
	KindAnalyze   ScanKind = "analyze"
	KindMenu      ScanKind = "menu"
	KindRecommend ScanKind = "recommend"
)

// Scan records one relay call: the uploaded image and the model's answer.
type Scan struct {
	ID               uuid.UUID       `json:"id"`
	UserID           *uuid.UUID      `json:"user_id,omitempty"`
	Kind             ScanKind        `json:"kind"`
	OriginalFilename string          `json:"original_filename"`
	ContentType      string          `json:"content_type,omitempty"`
	FileSize         int64           `json:"file_size,omitempty"`
	StorageKey       string          `json:"storage_key,omitempty"`
	StorageURL       string          `json:"storage_url,omitempty"`
	Status           string          `json:"status"`
	Result           json.RawMessage `json:"result,omitempty"`
	Model            string          `json:"model,omitempty"`
	TokensUsed       int             `json:"tokens_used,omitempty"`
	ProcessingTimeMs int             `json:"processing_time_ms,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
}

const (
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)
