package model

import "time"

// Run identifies one pipeline execution and the parameters its persisted
// grid and panel were built with.
type Run struct {
	ID            string    `json:"id"`
	TreatmentDate string    `json:"treatment_date"`
	Radius        float64   `json:"radius"`
	SRID          int       `json:"srid"`
	TreatedCellID int       `json:"treated_cell_id"`
	CreatedAt     time.Time `json:"created_at"`
}
