package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"chat-hub/internal/api"
	"chat-hub/internal/auth"
	"chat-hub/internal/chat"
	"chat-hub/internal/config"
	"chat-hub/internal/db"
	"chat-hub/internal/logging"
	"chat-hub/internal/middleware"
	"chat-hub/internal/repository"
	"chat-hub/internal/tasks"

	"github.com/go-playground/validator/v10"
)

// identityVerifier bridges the socket authenticate event to the JWT token
// manager plus a user-store existence check.
type identityVerifier struct {
	tokens *auth.TokenManager
	users  repository.UserRepository
}

func (v *identityVerifier) Verify(ctx context.Context, token string) (chat.Identity, error) {
	claims, err := v.tokens.Validate(token)
	if err != nil {
		return chat.Identity{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	user, err := v.users.GetUserByID(ctx, claims.UserID)
	if err != nil {
		return chat.Identity{}, auth.ErrInvalidToken
	}

	return chat.Identity{UserID: user.ID, Username: user.Username}, nil
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger, err := logging.New(cfg.Env)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()

	logger.Infow("configuration loaded", "env", cfg.Env, "addr", cfg.Addr(), "db", cfg.MaskedDatabaseURL())

	pool, err := db.Connect(context.Background(), cfg.DatabaseURL)
	if err != nil {
		logger.Fatalw("database connection failed", "error", err)
	}
	defer pool.Close()
	logger.Info("database connected")

	repoUser := repository.NewPoolConnection(pool)
	tokens := auth.NewTokenManager(cfg.AuthKey)
	validate := validator.New()

	hub := chat.NewHub(&identityVerifier{tokens: tokens, users: repoUser}, logger)
	hub.Rooms.Seed(cfg.DefaultRoom, "General")

	pruner := tasks.NewHistoryPruner(hub.Rooms, cfg.HistoryCap, logger)
	if err := pruner.Start(); err != nil {
		logger.Fatalw("history pruner failed to start", "error", err)
	}
	defer pruner.Stop()

	authRequired := middleware.Authenticate(tokens, repoUser, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/register", api.RegisterHandler(repoUser, tokens, validate, logger))
	mux.HandleFunc("POST /api/login", api.LoginHandler(repoUser, tokens, validate, logger))
	mux.Handle("GET /api/users", authRequired(api.ListUsersHandler(repoUser, hub.Registry, logger)))
	mux.Handle("GET /api/rooms", authRequired(api.ListRoomsHandler(hub.Rooms)))
	mux.Handle("POST /api/rooms", authRequired(api.CreateRoomHandler(hub.Rooms, validate, logger)))
	mux.Handle("GET /api/messages/{roomId}", authRequired(api.RoomMessagesHandler(hub.Rooms)))
	mux.Handle("POST /api/upload", authRequired(api.UploadHandler(cfg.UploadDir, logger)))
	mux.Handle("GET /uploads/", http.StripPrefix("/uploads/", http.FileServer(http.Dir(cfg.UploadDir))))
	mux.HandleFunc("/ws", chat.ServeWS(hub, logger))

	server := &http.Server{
		Addr:    cfg.Addr(),
		Handler: mux,
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Infow("server starting", "addr", cfg.Addr())
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalw("server failed", "error", err)
		}
	}()

	<-stop
	logger.Info("shutdown signal received")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	hub.Shutdown()
	if err := server.Shutdown(ctx); err != nil {
		logger.Warnw("server shutdown error", "error", err)
	}
	logger.Info("graceful shutdown complete")
}
