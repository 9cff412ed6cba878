package types

import (
	"time"

	"chat-hub/internal/models"

	"github.com/google/uuid"
)

type RegisterRequest struct {
	Username string `json:"username" validate:"required,min=3,max=32"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type UserDTO struct {
	ID        uuid.UUID `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email,omitempty"`
	IsOnline  bool      `json:"isOnline"`
	CreatedAt time.Time `json:"created_at"`
}

type AuthResponse struct {
	Token string  `json:"token"`
	User  UserDTO `json:"user"`
}

type CreateRoomRequest struct {
	Name         string          `json:"name" validate:"required,min=1,max=64"`
	Kind         models.RoomKind `json:"type" validate:"omitempty,oneof=public private"`
	Participants []string        `json:"participants" validate:"omitempty,dive,uuid"`
}

type UploadResponse struct {
	FileURL  string `json:"fileUrl"`
	Filename string `json:"filename"`
	Size     int64  `json:"size"`
}
