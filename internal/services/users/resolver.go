// Package users resolves platform actors to stored user records.
package users

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/evn/shiftbot/internal/models"
)

type Store interface {
	FindUserByExternalID(ctx context.Context, externalID string) (*models.User, error)
	CreateUser(ctx context.Context, externalID, displayName string) (*models.User, error)
	UpdateDisplayName(ctx context.Context, externalID, displayName string) error
}

type Resolver struct {
	store Store
	log   *zap.Logger
}

func NewResolver(store Store, logger *zap.Logger) *Resolver {
	return &Resolver{store: store, log: logger.Named("users")}
}

// Resolve returns the user for externalID, creating it on first contact. A
// lost creation race is resolved by re-reading the winner's row. The stored
// display name follows the last value seen.
func (r *Resolver) Resolve(ctx context.Context, externalID, displayName string) (*models.User, error) {
	u, err := r.store.FindUserByExternalID(ctx, externalID)
	if err != nil {
		return nil, fmt.Errorf("resolve user: %w", err)
	}

	if u == nil {
		u, err = r.store.CreateUser(ctx, externalID, displayName)
		if errors.Is(err, models.ErrConflict) {
			u, err = r.store.FindUserByExternalID(ctx, externalID)
			if err == nil && u == nil {
				err = fmt.Errorf("user %s vanished after conflict: %w", externalID, models.ErrStoreUnavailable)
			}
		}
		if err != nil {
			return nil, fmt.Errorf("resolve user: %w", err)
		}
		r.log.Debug("user created", zap.String("discord_id", externalID))
		return u, nil
	}

	if displayName != "" && u.DisplayName != displayName {
		if err := r.store.UpdateDisplayName(ctx, externalID, displayName); err != nil {
			// a stale name is harmless; keep serving the interaction
			r.log.Warn("failed to refresh display name", zap.String("discord_id", externalID), zap.Error(err))
		} else {
			u.DisplayName = displayName
		}
	}
	return u, nil
}
