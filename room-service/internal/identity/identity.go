// Package identity maps human-readable display names to stable user ids.
package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/weiawesome/wes-io-live/pkg/log"
	"github.com/weiawesome/wes-io-live/room-service/internal/domain"
	"github.com/weiawesome/wes-io-live/room-service/internal/repository"
)

var ErrEmptyName = errors.New("display name is required")

// IDFor returns the stable id of a display name: a name-based (MD5) UUID, so
// the same name maps to the same id on every instance.
func IDFor(name string) string {
	return uuid.NewMD5(uuid.Nil, []byte(strings.TrimSpace(name))).String()
}

// Service resolves display names and records them in the users table.
type Service struct {
	users repository.UserRepository
}

// NewService creates an identity Service.
func NewService(users repository.UserRepository) *Service {
	return &Service{users: users}
}

// ResolveOrCreate returns the id for name, recording the user the first time
// the name is seen.
func (s *Service) ResolveOrCreate(ctx context.Context, name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", ErrEmptyName
	}

	id := IDFor(name)
	user, err := s.users.FirstOrCreate(ctx, &domain.UserModel{ID: id, Username: name})
	if err != nil {
		return "", fmt.Errorf("failed to resolve user %q: %w", name, err)
	}

	l := log.Ctx(ctx)
	l.Debug().Str(log.FieldUserID, user.ID).Str(log.FieldUsername, name).Msg("identity resolved")
	return user.ID, nil
}

// Resolve returns the id for name without touching storage.
func (s *Service) Resolve(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", ErrEmptyName
	}
	return IDFor(name), nil
}
