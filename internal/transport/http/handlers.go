package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
	"github.com/google/uuid"

	"github.com/kmorozova/mealscan/internal/auth"
	"github.com/kmorozova/mealscan/internal/common"
	"github.com/kmorozova/mealscan/internal/config"
	"github.com/kmorozova/mealscan/internal/models"
	"github.com/kmorozova/mealscan/internal/redis"
	"github.com/kmorozova/mealscan/internal/repository"
	"github.com/kmorozova/mealscan/internal/storage"
	"github.com/kmorozova/mealscan/internal/validation"
	"github.com/kmorozova/mealscan/internal/vision"
)

// Analyzer is what the scan handlers need from the vision client.
type Analyzer interface {
	AnalyzeImage(ctx context.Context, prompt string, imageData []byte, contentType string) (*vision.Result, error)
}

type Handlers struct {
	Vision  Analyzer
	Repo    *repository.Repository
	Storage storage.Storage
	Redis   *redis.Service
	Config  config.Config
}

func (h *Handlers) Routers(r chi.Router) {
	r.Get("/healthz", h.Health)
	r.Get("/readyz", h.Ready)

	r.Group(func(r chi.Router) {
		r.Post("/v1/auth/register", h.register)
		r.Post("/v1/auth/login", h.login)
		r.Post("/v1/auth/refresh", h.refresh)
	})

	// static file serving for local storage mode
	if h.Config.StorageMode != "s3" && h.Config.StorageMode != "aws" {
		r.Get("/files/*", h.serveFiles)
	}

	r.Group(func(r chi.Router) {
		if h.Config.ScanRateLimit > 0 {
			r.Use(httprate.LimitByIP(h.Config.ScanRateLimit, h.Config.ScanRateWindow))
		}
		r.Use(auth.OptionalJWT(h.Config.JWTSecret, h.Config.JWTIssuer))

		r.Post("/analyze", h.scanHandler(models.KindAnalyze, vision.MealPrompt))
		r.Post("/menu", h.scanHandler(models.KindMenu, vision.MealPrompt))
		r.Post("/recommend", h.scanHandler(models.KindRecommend, vision.RecommendPrompt))
	})

	r.Group(func(r chi.Router) {
		r.Use(auth.JWTMiddleware(h.Config.JWTSecret, h.Config.JWTIssuer))

		r.Post("/v1/auth/logout", h.logout)

		r.With(auth.RequirePerm(auth.PermScanReadOwn)).Get("/v1/scans", h.getUserScans)
		r.With(auth.RequirePerm(auth.PermScanReadOwn)).Get("/v1/scans/{id}", h.getScan)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("encode response", "err", err)
	}
}

type registerRequest struct {
	Username string `json:"username" validate:"required,min=3,max=64"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
}

func (h *Handlers) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if errs := validation.ValidateStruct(req); len(errs) > 0 {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error":   "validation failed",
			"details": errs,
		})
		return
	}

	passwordHash, err := h.Repo.HashPassword(req.Password)
	if err != nil {
		slog.Error("failed to hash password", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	user := &models.User{
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: passwordHash,
	}

	if err := h.Repo.CreateUser(r.Context(), user); err != nil {
		if strings.Contains(err.Error(), "unique constraint") || strings.Contains(err.Error(), "duplicate key") {
			http.Error(w, "username or email already exists", http.StatusConflict)
			return
		}
		slog.Error("failed to create user", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	if err := h.Repo.AssignRoleToUser(r.Context(), user.ID, "user"); err != nil {
		slog.Error("failed to assign role to user", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message": "user registered successfully",
		"user_id": user.ID,
	})
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

func (h *Handlers) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if errs := validation.ValidateStruct(req); len(errs) > 0 {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error":   "validation failed",
			"details": errs,
		})
		return
	}

	user, err := h.Repo.GetUserByEmail(r.Context(), req.Email)
	if err != nil {
		slog.Warn("login attempt with unknown email", "email", req.Email)
		http.Error(w, "invalid credentials", http.StatusUnauthorized)
		return
	}

	if !h.Repo.CheckPassword(req.Password, user.PasswordHash) {
		slog.Warn("login attempt with invalid password", "email", req.Email)
		http.Error(w, "invalid credentials", http.StatusUnauthorized)
		return
	}

	tokens, err := h.issueTokens(r, user)
	if err != nil {
		slog.Error("failed to issue tokens", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, tokens)
}

// issueTokens creates a token pair and records the refresh token hash in
// Redis (authoritative) and Postgres (audit trail).
func (h *Handlers) issueTokens(r *http.Request, user *models.User) (*auth.TokenPair, error) {
	roleNames := make([]string, len(user.Roles))
	for i, role := range user.Roles {
		roleNames[i] = role.Name
	}

	tokens, err := auth.NewTokenPair(
		h.Config.JWTSecret,
		h.Config.JWTIssuer,
		user.ID,
		roleNames,
		h.Config.JWTTTLAccess,
		h.Config.JWTTTLRefresh,
	)
	if err != nil {
		return nil, err
	}

	tokenHash := h.Repo.HashRefreshToken(tokens.RefreshToken)

	if err := h.Redis.StoreRefreshToken(r.Context(), user.ID.String(), tokenHash, h.Config.JWTTTLRefresh); err != nil {
		return nil, err
	}

	record := &models.RefreshToken{
		UserID:    user.ID,
		TokenHash: tokenHash,
		ExpiresAt: time.Now().Add(h.Config.JWTTTLRefresh),
	}
	if err := h.Repo.CreateRefreshToken(r.Context(), record); err != nil {
		slog.Error("failed to create refresh token record", "error", err)
	}

	return tokens, nil
}

func (h *Handlers) refresh(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RefreshToken string `json:"refresh_token"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.RefreshToken == "" {
		http.Error(w, "refresh_token is required", http.StatusBadRequest)
		return
	}

	tokenHash := h.Repo.HashRefreshToken(req.RefreshToken)

	userID, err := h.Redis.GetRefreshTokenUserID(r.Context(), tokenHash)
	if err != nil {
		http.Error(w, "invalid refresh token", http.StatusUnauthorized)
		return
	}

	userUUID, err := uuid.Parse(userID)
	if err != nil {
		slog.Error("invalid user ID from refresh token", "user_id", userID)
		http.Error(w, "invalid refresh token", http.StatusUnauthorized)
		return
	}

	user, err := h.Repo.GetUserByID(r.Context(), userUUID)
	if err != nil {
		slog.Error("failed to get user", "error", err)
		http.Error(w, "invalid refresh token", http.StatusUnauthorized)
		return
	}

	// rotate: old token dies with the new issue
	if err := h.Redis.RevokeRefreshToken(r.Context(), tokenHash); err != nil {
		slog.Error("failed to revoke old refresh token", "error", err)
	}
	if err := h.Repo.RevokeRefreshToken(r.Context(), tokenHash); err != nil {
		slog.Error("failed to revoke old refresh token in db", "error", err)
	}

	tokens, err := h.issueTokens(r, user)
	if err != nil {
		slog.Error("failed to issue tokens", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, tokens)
}

func (h *Handlers) logout(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RefreshToken string `json:"refresh_token"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if req.RefreshToken != "" {
		tokenHash := h.Repo.HashRefreshToken(req.RefreshToken)
		if err := h.Redis.RevokeRefreshToken(r.Context(), tokenHash); err != nil {
			slog.Error("failed to revoke refresh token", "error", err)
		}
		if err := h.Repo.RevokeRefreshToken(r.Context(), tokenHash); err != nil {
			slog.Error("failed to revoke refresh token in db", "error", err)
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "logged out successfully"})
}

func (h *Handlers) serveFiles(w http.ResponseWriter, r *http.Request) {
	filePath := strings.TrimPrefix(r.URL.Path, "/files/")
	if filePath == "" {
		http.Error(w, "file path required", http.StatusBadRequest)
		return
	}

	if strings.Contains(filePath, "..") {
		http.Error(w, "invalid file path", http.StatusBadRequest)
		return
	}

	http.ServeFile(w, r, filepath.Join(h.Config.LocalStorageDir, filePath))
}

func (h *Handlers) getUserScans(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.FromContext(r.Context())
	if !ok {
		http.Error(w, "no auth context", http.StatusUnauthorized)
		return
	}

	userID, err := uuid.Parse(claims.UserID)
	if err != nil {
		http.Error(w, "invalid user ID", http.StatusBadRequest)
		return
	}

	scans, err := h.Repo.GetScansByUserID(r.Context(), userID)
	if err != nil {
		slog.Error("failed to get user scans", "user_id", userID, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, scans)
}

func (h *Handlers) getScan(w http.ResponseWriter, r *http.Request) {
	raw := chi.URLParam(r, "id")
	id, err := uuid.Parse(raw)
	if err != nil {
		http.Error(w, "bad id", http.StatusBadRequest)
		return
	}

	claims, ok := auth.FromContext(r.Context())
	if !ok {
		http.Error(w, "no auth context", http.StatusUnauthorized)
		return
	}

	scan, err := h.Repo.GetScanByID(r.Context(), id)
	if err != nil {
		if common.IsNotFound(err) {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		slog.Error("failed to get scan", "id", id, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	perms := auth.PermsForRoles(claims.Roles)
	if _, admin := perms[auth.PermAdminAll]; !admin {
		if _, readAll := perms[auth.PermScanReadAll]; !readAll {
			userID, err := uuid.Parse(claims.UserID)
			if err != nil || scan.UserID == nil || *scan.UserID != userID {
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}
		}
	}

	// stored URLs go stale in S3 mode, hand out a fresh one
	if scan.StorageKey != "" && h.Storage != nil {
		if url, err := h.Storage.GetPresignedURL(r.Context(), scan.StorageKey, 15*time.Minute); err == nil {
			scan.StorageURL = url
		} else {
			slog.Warn("failed to presign storage URL", "key", scan.StorageKey, "error", err)
		}
	}

	writeJSON(w, http.StatusOK, scan)
}
