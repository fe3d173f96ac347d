package service

import (
	"errors"
)

var (
	ErrValidation    = errors.New("validation error")
	ErrRoomNotFound  = errors.New("room not found")
	ErrNotRoomOwner  = errors.New("not permitted")
	ErrRateLimited   = errors.New("heartbeat rate limit exceeded")
	ErrMovieNotFound = errors.New("movie not found")
)

// ValidationError is a rejected request. It matches ErrValidation.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func validationError(msg string) error {
	return &ValidationError{Message: msg}
}

// Validation messages.
const (
	MsgNameRequired       = "room name is required"
	MsgUsernameRequired   = "username is required"
	MsgInvalidStartType   = "invalid broadcast start time type"
	MsgInvalidAction      = "invalid action"
	MsgRoomNotLive        = "room is not live"
	MsgChatPayloadMissing = "chat payload is required"
)
