package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"chat-hub/internal/auth"
	"chat-hub/internal/models"
	"chat-hub/internal/repository"
	"chat-hub/internal/types"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

const dbTimeout = 5 * time.Second

func RegisterHandler(repoUser repository.UserRepository, tm *auth.TokenManager, validate *validator.Validate, log *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload types.RegisterRequest

		dbctx, cancel := context.WithTimeout(r.Context(), dbTimeout)
		defer cancel()

		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			log.Warnw("register decode error", "error", err)
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}

		payload.Username = strings.TrimSpace(payload.Username)
		payload.Email = strings.TrimSpace(strings.ToLower(payload.Email))

		if err := validate.Struct(payload); err != nil {
			log.Warnw("register validation failed", "error", err)
			http.Error(w, "Invalid registration payload", http.StatusBadRequest)
			return
		}

		existingUser, err := repoUser.GetUserByUsername(dbctx, payload.Username)
		if err == nil && existingUser != nil {
			http.Error(w, "Username already taken", http.StatusConflict)
			return
		} else if err != nil && !errors.Is(err, pgx.ErrNoRows) {
			http.Error(w, "Internal server error", http.StatusInternalServerError)
			return
		}

		existingEmail, err := repoUser.GetUserByEmail(dbctx, payload.Email)
		if err == nil && existingEmail != nil {
			http.Error(w, "Email already exists", http.StatusConflict)
			return
		} else if err != nil && !errors.Is(err, pgx.ErrNoRows) {
			http.Error(w, "Internal server error", http.StatusInternalServerError)
			return
		}

		hashed, err := auth.HashPassword(payload.Password)
		if err != nil {
			log.Errorw("password hashing failed", "error", err)
			http.Error(w, "Internal server error", http.StatusInternalServerError)
			return
		}

		user := &models.User{
			ID:            uuid.New(),
			Username:      payload.Username,
			Email:         payload.Email,
			Password_Hash: hashed,
			CreatedAt:     time.Now(),
		}

		if err := repoUser.CreateUser(dbctx, user); err != nil {
			log.Errorw("user insert failed", "username", payload.Username, "error", err)
			http.Error(w, "Failed to create user", http.StatusInternalServerError)
			return
		}

		token, err := tm.Generate(user.ID, user.Username)
		if err != nil {
			log.Errorw("token generation failed", "userId", user.ID, "error", err)
			http.Error(w, "User created, but failed to start session. Please login.", http.StatusCreated)
			return
		}

		log.Infow("user registered", "username", user.Username)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(types.AuthResponse{
			Token: token,
			User: types.UserDTO{
				ID:        user.ID,
				Username:  user.Username,
				Email:     user.Email,
				CreatedAt: user.CreatedAt,
			},
		})
	}
}

func LoginHandler(repoUser repository.UserRepository, tm *auth.TokenManager, validate *validator.Validate, log *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload types.LoginRequest

		dbctx, cancel := context.WithTimeout(r.Context(), dbTimeout)
		defer cancel()

		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			log.Warnw("login decode error", "error", err)
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}

		payload.Username = strings.TrimSpace(payload.Username)
		if err := validate.Struct(payload); err != nil {
			http.Error(w, "Username and password are required", http.StatusBadRequest)
			return
		}

		user, err := repoUser.GetUserByUsername(dbctx, payload.Username)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				log.Warnw("login for unknown user", "username", payload.Username)
				http.Error(w, "Invalid username or password", http.StatusUnauthorized)
				return
			}
			log.Errorw("login lookup failed", "username", payload.Username, "error", err)
			http.Error(w, "Internal server error", http.StatusInternalServerError)
			return
		}

		if !auth.VerifyPassword(payload.Password, user.Password_Hash) {
			log.Warnw("invalid password", "username", payload.Username)
			http.Error(w, "Invalid username or password", http.StatusUnauthorized)
			return
		}

		token, err := tm.Generate(user.ID, user.Username)
		if err != nil {
			log.Errorw("token generation failed", "userId", user.ID, "error", err)
			http.Error(w, "Failed to create session", http.StatusInternalServerError)
			return
		}

		log.Infow("user logged in", "username", user.Username)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(types.AuthResponse{
			Token: token,
			User: types.UserDTO{
				ID:        user.ID,
				Username:  user.Username,
				Email:     user.Email,
				CreatedAt: user.CreatedAt,
			},
		})
	}
}
