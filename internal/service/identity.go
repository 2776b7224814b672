package service

import (
	"context"
	"errors"
	"fmt"

	"citaplan/internal/database"
	"citaplan/internal/models"

	"github.com/rs/zerolog"
)

type ctxKey int

const userTokenKey ctxKey = iota

// WithUserToken stores the caller's bearer token on the context. The
// transport layer calls this before handing the request to the service.
func WithUserToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, userTokenKey, token)
}

// UserTokenFromContext returns the token placed by WithUserToken.
func UserTokenFromContext(ctx context.Context) (string, bool) {
	token, ok := ctx.Value(userTokenKey).(string)
	return token, ok && token != ""
}

// UserStore is the slice of the persistence layer identity resolution
// needs.
type UserStore interface {
	GetUserByToken(ctx context.Context, token string) (*models.User, error)
	UpdateUserActivity(ctx context.Context, userID int64) error
}

// TokenIdentity resolves the current user from the request token.
type TokenIdentity struct {
	store  UserStore
	logger *zerolog.Logger
}

func NewTokenIdentity(store UserStore, logger *zerolog.Logger) *TokenIdentity {
	return &TokenIdentity{store: store, logger: logger}
}

func (ti *TokenIdentity) CurrentUser(ctx context.Context) (*models.User, error) {
	token, ok := UserTokenFromContext(ctx)
	if !ok {
		return nil, fmt.Errorf("%w: missing user token", ErrUnauthenticated)
	}

	user, err := ti.store.GetUserByToken(ctx, token)
	if errors.Is(err, database.ErrNotFound) {
		return nil, fmt.Errorf("%w: unknown user token", ErrUnauthenticated)
	}
	if err != nil {
		return nil, fmt.Errorf("resolve user: %w", err)
	}

	if err := ti.store.UpdateUserActivity(ctx, user.ID); err != nil {
		ti.logger.Warn().Err(err).Int64("user_id", user.ID).Msg("update user activity")
	}
	return user, nil
}
