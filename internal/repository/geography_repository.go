package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/dkv-labs/pps-api/internal/models"
)

// GeographyRepository reads the State > Range > District > Battalion hierarchy
// and the companies attached to each battalion.
type GeographyRepository struct {
	db *sqlx.DB
}

// NewGeographyRepository creates a new instance of GeographyRepository.
func NewGeographyRepository(db *sqlx.DB) *GeographyRepository {
	return &GeographyRepository{db: db}
}

// ListStates returns all active states ordered by name.
func (r *GeographyRepository) ListStates(ctx context.Context) ([]models.State, error) {
	const query = `SELECT id, name, active, created_at, updated_at FROM states WHERE active = TRUE ORDER BY name`
	var states []models.State
	if err := r.db.SelectContext(ctx, &states, query); err != nil {
		return nil, fmt.Errorf("list states: %w", err)
	}
	return states, nil
}

// ListRanges returns the ranges within a state.
func (r *GeographyRepository) ListRanges(ctx context.Context, stateID int64) ([]models.Range, error) {
	const query = `SELECT id, state_id, name, active, created_at, updated_at FROM ranges WHERE state_id = $1 AND active = TRUE ORDER BY name`
	var ranges []models.Range
	if err := r.db.SelectContext(ctx, &ranges, query, stateID); err != nil {
		return nil, fmt.Errorf("list ranges: %w", err)
	}
	return ranges, nil
}

// ListDistricts returns the districts within a range.
func (r *GeographyRepository) ListDistricts(ctx context.Context, rangeID int64) ([]models.District, error) {
	const query = `SELECT id, range_id, name, active, created_at, updated_at FROM districts WHERE range_id = $1 AND active = TRUE ORDER BY name`
	var districts []models.District
	if err := r.db.SelectContext(ctx, &districts, query, rangeID); err != nil {
		return nil, fmt.Errorf("list districts: %w", err)
	}
	return districts, nil
}

// ListBattalions returns the battalions within a district.
func (r *GeographyRepository) ListBattalions(ctx context.Context, districtID int64) ([]models.Battalion, error) {
	const query = `SELECT id, district_id, name, type, active, created_at, updated_at FROM battalions WHERE district_id = $1 AND active = TRUE ORDER BY name`
	var battalions []models.Battalion
	if err := r.db.SelectContext(ctx, &battalions, query, districtID); err != nil {
		return nil, fmt.Errorf("list battalions: %w", err)
	}
	return battalions, nil
}

// FindBattalion returns a battalion by identifier.
func (r *GeographyRepository) FindBattalion(ctx context.Context, id int64) (*models.Battalion, error) {
	const query = `SELECT id, district_id, name, type, active, created_at, updated_at FROM battalions WHERE id = $1 LIMIT 1`
	var battalion models.Battalion
	if err := r.db.GetContext(ctx, &battalion, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find battalion: %w", err)
	}
	return &battalion, nil
}

// ListCompanies returns the active companies of a battalion.
func (r *GeographyRepository) ListCompanies(ctx context.Context, battalionID int64) ([]models.Company, error) {
	const query = `SELECT id, battalion_id, name, active, created_at, updated_at FROM companies WHERE battalion_id = $1 AND active = TRUE ORDER BY id`
	var companies []models.Company
	if err := r.db.SelectContext(ctx, &companies, query, battalionID); err != nil {
		return nil, fmt.Errorf("list companies: %w", err)
	}
	return companies, nil
}

// FindCompanies returns the subset of a battalion's companies matching ids.
func (r *GeographyRepository) FindCompanies(ctx context.Context, battalionID int64, ids []int64) ([]models.Company, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query, args, err := sqlx.In(`SELECT id, battalion_id, name, active, created_at, updated_at FROM companies WHERE battalion_id = ? AND id IN (?) ORDER BY id`, battalionID, ids)
	if err != nil {
		return nil, fmt.Errorf("build company query: %w", err)
	}
	query = r.db.Rebind(query)
	var companies []models.Company
	if err := r.db.SelectContext(ctx, &companies, query, args...); err != nil {
		return nil, fmt.Errorf("find companies: %w", err)
	}
	return companies, nil
}

// CountBattalions returns the number of active battalions.
func (r *GeographyRepository) CountBattalions(ctx context.Context) (int, error) {
	const query = `SELECT COUNT(*) FROM battalions WHERE active = TRUE`
	var total int
	if err := r.db.GetContext(ctx, &total, query); err != nil {
		return 0, fmt.Errorf("count battalions: %w", err)
	}
	return total, nil
}
