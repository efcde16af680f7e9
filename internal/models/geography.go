package models

import "time"

// State is the top level of the geography reference hierarchy.
type State struct {
	ID        int64     `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Active    bool      `db:"active" json:"active"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Range groups districts within a state.
type Range struct {
	ID        int64     `db:"id" json:"id"`
	StateID   int64     `db:"state_id" json:"state_id"`
	Name      string    `db:"name" json:"name"`
	Active    bool      `db:"active" json:"active"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// District groups battalions within a range.
type District struct {
	ID        int64     `db:"id" json:"id"`
	RangeID   int64     `db:"range_id" json:"range_id"`
	Name      string    `db:"name" json:"name"`
	Active    bool      `db:"active" json:"active"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Battalion is the reporting unit filling out performance forms.
type Battalion struct {
	ID         int64     `db:"id" json:"id"`
	DistrictID int64     `db:"district_id" json:"district_id"`
	Name       string    `db:"name" json:"name"`
	Type       string    `db:"type" json:"type"`
	Active     bool      `db:"active" json:"active"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}

// Company is a sub-unit of a battalion. When companies are selected, matrix
// form fields are additionally keyed by company.
type Company struct {
	ID          int64     `db:"id" json:"id"`
	BattalionID int64     `db:"battalion_id" json:"battalion_id"`
	Name        string    `db:"name" json:"name"`
	Active      bool      `db:"active" json:"active"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// GeographyFilter captures list criteria shared by the geography endpoints.
type GeographyFilter struct {
	ParentID *int64
	Active   *bool
	Search   string
	Page     int
	PageSize int
}
