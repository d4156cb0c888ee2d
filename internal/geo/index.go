package geo

import (
	cgeom "github.com/ctessum/geom"
	"github.com/ctessum/geom/index/rtree"

	"github.com/causalml-fall25/project-cbsobral/internal/model"
)

// indexedCell is a cell polygon stored in the r-tree.
type indexedCell struct {
	cgeom.Polygon
	id int
}

// CellIndex answers strict point-in-cell queries over a fixed set of cells.
// It is safe for concurrent reads once built.
type CellIndex struct {
	tree  *rtree.Rtree
	count int
}

// NewCellIndex builds an index over cells.
func NewCellIndex(cells []model.HexCell) *CellIndex {
	tree := rtree.NewTree(25, 50)
	for _, c := range cells {
		tree.Insert(&indexedCell{Polygon: toPolygon(c.Polygon), id: c.ID})
	}
	return &CellIndex{tree: tree, count: len(cells)}
}

// Len returns the number of indexed cells.
func (ix *CellIndex) Len() int { return ix.count }

// Locate returns the id of the cell strictly containing pt. The lowest id
// wins if cells overlap; points on a cell boundary are in no cell.
func (ix *CellIndex) Locate(pt cgeom.Point) (int, bool) {
	found := false
	best := 0
	for _, g := range ix.tree.SearchIntersect(pt.Bounds()) {
		c := g.(*indexedCell)
		if !containsPoint(c.Polygon, pt) {
			continue
		}
		if !found || c.id < best {
			best = c.id
			found = true
		}
	}
	return best, found
}
