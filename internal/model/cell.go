// Package model holds the shared data model of the grid and panel pipeline.
package model

import (
	"time"

	"github.com/twpayne/go-geom"
)

// UnitType labels a cell's role in the study design.
type UnitType string

const (
	UnitTreated  UnitType = "treated"
	UnitExcluded UnitType = "excluded"
	UnitDonor    UnitType = "donor"
)

// Valid reports whether u is one of the known unit types.
func (u UnitType) Valid() bool {
	switch u {
	case UnitTreated, UnitExcluded, UnitDonor:
		return true
	}
	return false
}

// HexCell is a hexagonal analysis unit in the grid coordinate system.
type HexCell struct {
	ID       int           `json:"cell_id"`
	Center   geom.Coord    `json:"-"`
	Polygon  *geom.Polygon `json:"-"`
	UnitType UnitType      `json:"unit_type,omitempty"`
}

// NetworkEdge is a path or road segment from the source network.
type NetworkEdge struct {
	ID       string
	Geometry *geom.MultiLineString
}

// EdgeCellAssignment relates an edge to the cell containing its centroid.
// CellID is nil when the centroid lies in no cell.
type EdgeCellAssignment struct {
	EdgeID string `json:"edge_id"`
	CellID *int   `json:"cell_id"`
}

// Assigned reports whether the edge matched a cell.
func (a EdgeCellAssignment) Assigned() bool { return a.CellID != nil }

// CountObservation is a trip count for one edge on one calendar day.
// Date is midnight UTC of that day.
type CountObservation struct {
	EdgeID string    `json:"edge_id"`
	Date   time.Time `json:"date"`
	Count  int64     `json:"count"`
}

// DailyTotal is the per-cell sum of observations for one day.
type DailyTotal struct {
	CellID int       `json:"cell_id"`
	Date   time.Time `json:"date"`
	Count  int64     `json:"count"`
}

// PanelRow is one (cell, period) observation of the completed panel.
type PanelRow struct {
	CellID   int      `json:"cell_id"`
	Period   int      `json:"period"`
	Value    int64    `json:"value"`
	UnitType UnitType `json:"unit_type"`
}
