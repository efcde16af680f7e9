package models

import "time"

// Menu is a navigable screen exposed to the frontend.
type Menu struct {
	ID        int64     `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Path      string    `db:"path" json:"path"`
	Icon      string    `db:"icon" json:"icon,omitempty"`
	Priority  int       `db:"priority" json:"priority"`
	Active    bool      `db:"active" json:"active"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Permission grants a role access to a menu.
type Permission struct {
	ID        int64     `db:"id" json:"id"`
	Role      UserRole  `db:"role" json:"role"`
	MenuID    int64     `db:"menu_id" json:"menu_id"`
	CanView   bool      `db:"can_view" json:"can_view"`
	CanEdit   bool      `db:"can_edit" json:"can_edit"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`

	MenuName string `db:"menu_name" json:"menu_name,omitempty"`
	MenuPath string `db:"menu_path" json:"menu_path,omitempty"`
}
