package service

import (
	"context"
	"database/sql"
	"errors"

	"go.uber.org/zap"

	"github.com/dkv-labs/pps-api/internal/models"
	appErrors "github.com/dkv-labs/pps-api/pkg/errors"
)

type geographyRepository interface {
	ListStates(ctx context.Context) ([]models.State, error)
	ListRanges(ctx context.Context, stateID int64) ([]models.Range, error)
	ListDistricts(ctx context.Context, rangeID int64) ([]models.District, error)
	ListBattalions(ctx context.Context, districtID int64) ([]models.Battalion, error)
	FindBattalion(ctx context.Context, id int64) (*models.Battalion, error)
	ListCompanies(ctx context.Context, battalionID int64) ([]models.Company, error)
}

// GeographyService exposes the reference hierarchy used to scope form entry.
type GeographyService struct {
	repo   geographyRepository
	logger *zap.Logger
}

// NewGeographyService constructs a GeographyService.
func NewGeographyService(repo geographyRepository, logger *zap.Logger) *GeographyService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GeographyService{repo: repo, logger: logger}
}

// States lists all active states.
func (s *GeographyService) States(ctx context.Context) ([]models.State, error) {
	states, err := s.repo.ListStates(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list states")
	}
	return states, nil
}

// Ranges lists the ranges of a state.
func (s *GeographyService) Ranges(ctx context.Context, stateID int64) ([]models.Range, error) {
	ranges, err := s.repo.ListRanges(ctx, stateID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list ranges")
	}
	return ranges, nil
}

// Districts lists the districts of a range.
func (s *GeographyService) Districts(ctx context.Context, rangeID int64) ([]models.District, error) {
	districts, err := s.repo.ListDistricts(ctx, rangeID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list districts")
	}
	return districts, nil
}

// Battalions lists the battalions of a district.
func (s *GeographyService) Battalions(ctx context.Context, districtID int64) ([]models.Battalion, error) {
	battalions, err := s.repo.ListBattalions(ctx, districtID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list battalions")
	}
	return battalions, nil
}

// Battalion returns one battalion by id.
func (s *GeographyService) Battalion(ctx context.Context, id int64) (*models.Battalion, error) {
	battalion, err := s.repo.FindBattalion(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "battalion not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch battalion")
	}
	return battalion, nil
}

// Companies lists the companies of a battalion.
func (s *GeographyService) Companies(ctx context.Context, battalionID int64) ([]models.Company, error) {
	companies, err := s.repo.ListCompanies(ctx, battalionID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list companies")
	}
	return companies, nil
}
