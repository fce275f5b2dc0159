package domain

import "time"

// ExportFormat selects the shape of a data export.
type ExportFormat string

const (
	ExportJSON ExportFormat = "json"
	ExportZIP  ExportFormat = "zip"
)

// ExportTable names a table and the column that scopes it to a user.
type ExportTable struct {
	Name       string
	UserColumn string
}

// ExportDocument is the JSON form of a user's data export.
type ExportDocument struct {
	ExportID   string                      `json:"export_id"`
	UserID     string                      `json:"user_id"`
	ExportedAt time.Time                   `json:"exported_at"`
	Summary    map[string]int              `json:"summary"`
	Data       map[string][]map[string]any `json:"data"`
}
