// Package auth decides whether an actor may run privileged detection
// operations.
package auth

import (
	"context"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"

	"github.com/listinglab/clover/pkg/tracing"
)

// Actions requiring an explicit grant
const (
	ActionFullScan = "detection:full_scan"
)

// RoleStore resolves actor role grants.
type RoleStore interface {
	HasRole(ctx context.Context, actorID, role string) (bool, error)
}

// Authorizer decides whether an actor may perform a privileged action.
// Denials surface to the caller; they are never absorbed like signal
// failures.
type Authorizer interface {
	Authorize(ctx context.Context, actorID, action string) error
}

// roleAuthorizer grants actions to actors holding the matching role.
type roleAuthorizer struct {
	store  RoleStore
	logger ectologger.Logger
}

// NewRoleAuthorizer creates an authorizer backed by the role store
func NewRoleAuthorizer(store RoleStore, logger ectologger.Logger) Authorizer {
	return &roleAuthorizer{
		store:  store,
		logger: logger,
	}
}

func (a *roleAuthorizer) Authorize(ctx context.Context, actorID, action string) error {
	ctx, span := tracing.StartSpan(ctx, "auth.Authorizer.Authorize")
	defer span.End()

	if actorID == "" {
		return httperror.NewHTTPError(http.StatusUnauthorized, "actor identity required")
	}

	granted, err := a.store.HasRole(ctx, actorID, action)
	if err != nil {
		return err
	}
	if !granted {
		a.logger.WithContext(ctx).WithFields(map[string]any{
			"actor_id": actorID,
			"action":   action,
		}).Warn("Authorization denied")
		return httperror.NewHTTPErrorf(http.StatusForbidden, "actor is not authorized for %s", action)
	}

	return nil
}

// AllowAll grants every action. Used in tests and local development.
type AllowAll struct{}

// Authorize always succeeds
func (AllowAll) Authorize(context.Context, string, string) error {
	return nil
}
