package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/dkv-labs/pps-api/internal/models"
	appErrors "github.com/dkv-labs/pps-api/pkg/errors"
)

type menuRepository interface {
	ListForRole(ctx context.Context, role models.UserRole) ([]models.Permission, error)
	CanEdit(ctx context.Context, role models.UserRole, path string) (bool, error)
}

// MenuService resolves which screens a role may see and edit.
type MenuService struct {
	repo   menuRepository
	logger *zap.Logger
}

// NewMenuService constructs a MenuService.
func NewMenuService(repo menuRepository, logger *zap.Logger) *MenuService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MenuService{repo: repo, logger: logger}
}

// MenusForRole returns the role's viewable menu entries in display order.
func (s *MenuService) MenusForRole(ctx context.Context, role models.UserRole) ([]models.Permission, error) {
	permissions, err := s.repo.ListForRole(ctx, role)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list menus")
	}
	return permissions, nil
}

// CanEdit reports whether the role may modify the screen at path.
func (s *MenuService) CanEdit(ctx context.Context, role models.UserRole, path string) (bool, error) {
	ok, err := s.repo.CanEdit(ctx, role, path)
	if err != nil {
		return false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check permission")
	}
	return ok, nil
}
