// Package accounts resolves request actors and manages account roles.
package accounts

import (
	"context"
	stderrors "errors"

	"veripass/internal/common/errors"
	"veripass/internal/common/logger"
	"veripass/internal/models"
	"veripass/internal/store"
)

type Service struct {
	store  store.UserStore
	logger logger.Logger
}

func NewService(st store.UserStore, log logger.Logger) *Service {
	return &Service{store: st, logger: logger.ForComponent(log, "accounts")}
}

// ResolveActor builds the actor for userID from the user's role and
// profile rows. A security user without a profile resolves to an actor
// that every transition rejects.
func (s *Service) ResolveActor(ctx context.Context, userID int64) (models.Actor, error) {
	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		if stderrors.Is(err, store.ErrNotFound) {
			return models.Actor{}, errors.NewUnauthenticatedError("unknown user")
		}
		return models.Actor{}, errors.NewQueryExecutionFailedError("load user", err)
	}

	switch user.Role {
	case models.RoleAdmin:
		p, err := s.store.GetAdminProfileByUser(ctx, userID)
		if err != nil && !stderrors.Is(err, store.ErrNotFound) {
			return models.Actor{}, errors.NewQueryExecutionFailedError("load admin profile", err)
		}
		var profileID int64
		if p != nil {
			profileID = p.ID
		}
		return models.NewAdminActor(userID, profileID), nil

	case models.RoleSecurity:
		p, err := s.store.GetSecurityProfileByUser(ctx, userID)
		if stderrors.Is(err, store.ErrNotFound) {
			s.logger.Warn("security user without profile", map[string]interface{}{"userId": userID})
			return models.NewSecurityActor(userID, 0, ""), nil
		}
		if err != nil {
			return models.Actor{}, errors.NewQueryExecutionFailedError("load security profile", err)
		}
		return models.NewSecurityActor(userID, p.ID, p.Level), nil

	default:
		return models.NewUserActor(userID), nil
	}
}

// ChangeRole sets a user's role and reconciles their profile rows in one
// transaction. Admin only.
func (s *Service) ChangeRole(ctx context.Context, actor models.Actor, userID int64, role string) error {
	if !actor.IsAdmin() {
		return errors.NewPermissionDeniedError("You do not have permission to perform this action.", "/dashboard/")
	}
	r, err := models.ParseRole(role)
	if err != nil {
		return errors.NewValidationError("Invalid role.", errors.FieldError{Field: "role", Message: "Select a valid choice."})
	}

	if err := s.store.ReconcileRole(ctx, userID, r); err != nil {
		if stderrors.Is(err, store.ErrNotFound) {
			return errors.NewNotFoundError("user", userID)
		}
		return errors.NewQueryExecutionFailedError("reconcile role", err)
	}

	s.logger.Info("user role changed", map[string]interface{}{
		"userId":  userID,
		"role":    string(r),
		"changer": actor.UserID,
	})
	return nil
}
