package chat

import "errors"

var (
	ErrRoomNotFound = errors.New("room not found")
	ErrEmptyMessage = errors.New("message content is empty")
	ErrNotAuthed    = errors.New("authentication required")
)
