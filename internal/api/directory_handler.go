package api

import (
	"encoding/json"
	"net/http"

	"chat-hub/internal/chat"
	"chat-hub/internal/middleware"
	"chat-hub/internal/models"
	"chat-hub/internal/repository"
	"chat-hub/internal/types"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

// ListUsersHandler returns the user directory with live presence flags.
func ListUsersHandler(repoUser repository.UserRepository, registry *chat.Registry, log *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		users, err := repoUser.ListUsers(r.Context())
		if err != nil {
			log.Errorw("user listing failed", "error", err)
			http.Error(w, "Internal server error", http.StatusInternalServerError)
			return
		}

		dtos := lo.Map(users, func(u *models.User, _ int) types.UserDTO {
			return types.UserDTO{
				ID:        u.ID,
				Username:  u.Username,
				IsOnline:  registry.IsOnline(u.ID),
				CreatedAt: u.CreatedAt,
			}
		})

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(dtos)
	}
}

// ListRoomsHandler returns room summaries.
func ListRoomsHandler(rooms *chat.RoomManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(rooms.ListRooms())
	}
}

// CreateRoomHandler creates a room owned by the caller. The participants
// listed here become the room's durable membership used for offline
// notification routing.
func CreateRoomHandler(rooms *chat.RoomManager, validate *validator.Validate, log *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := middleware.UserFrom(r.Context())
		if !ok {
			http.Error(w, "Authentication required", http.StatusUnauthorized)
			return
		}

		var payload types.CreateRoomRequest
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}
		if err := validate.Struct(payload); err != nil {
			log.Warnw("create room validation failed", "error", err)
			http.Error(w, "Invalid room payload", http.StatusBadRequest)
			return
		}

		participants := make([]uuid.UUID, 0, len(payload.Participants))
		for _, raw := range payload.Participants {
			if id, err := uuid.Parse(raw); err == nil {
				participants = append(participants, id)
			}
		}

		room := rooms.CreateRoom(payload.Name, payload.Kind, user.ID, participants)

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(room.Summary())
	}
}

// RoomMessagesHandler returns the room's in-memory message log.
func RoomMessagesHandler(rooms *chat.RoomManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		roomID := r.PathValue("roomId")

		history, err := rooms.History(roomID)
		if err != nil {
			http.Error(w, "Room not found", http.StatusNotFound)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(history)
	}
}
