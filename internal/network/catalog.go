package network

import "fmt"

// #region catalog
// Catalog is the ordered list of available pipe sizes, ascending by diameter.
type Catalog struct {
	entries []CatalogEntry
}

// NewCatalog validates the entries and returns a catalog.
// Entries must already be sorted ascending by diameter.
func NewCatalog(entries []CatalogEntry) (Catalog, error) {
	if len(entries) == 0 {
		return Catalog{}, ErrEmptyCatalog
	}
	for i, e := range entries {
		if e.Diameter <= 0 {
			return Catalog{}, fmt.Errorf("entry %d: diameter %.3f: %w", i, e.Diameter, ErrCatalogOrder)
		}
		if e.UnitCost < 0 {
			return Catalog{}, fmt.Errorf("entry %d: negative unit cost %.3f: %w", i, e.UnitCost, ErrCatalogCost)
		}
		if i == 0 {
			continue
		}
		prev := entries[i-1]
		if e.Diameter <= prev.Diameter {
			return Catalog{}, fmt.Errorf("entry %d: %.3f after %.3f: %w", i, e.Diameter, prev.Diameter, ErrCatalogOrder)
		}
		if e.UnitCost < prev.UnitCost {
			return Catalog{}, fmt.Errorf("entry %d: %.3f after %.3f: %w", i, e.UnitCost, prev.UnitCost, ErrCatalogCost)
		}
	}
	cp := make([]CatalogEntry, len(entries))
	copy(cp, entries)
	return Catalog{entries: cp}, nil
}

// Len returns the number of catalog sizes.
func (c Catalog) Len() int {
	return len(c.entries)
}

// Entry returns the i-th size. Panics if i is out of range.
func (c Catalog) Entry(i int) CatalogEntry {
	return c.entries[i]
}

// Entries returns a copy of all sizes.
func (c Catalog) Entries() []CatalogEntry {
	cp := make([]CatalogEntry, len(c.entries))
	copy(cp, c.entries)
	return cp
}

// Bounds returns the inclusive index range of a diameter gene.
func (c Catalog) Bounds() (lo, hi int) {
	return 0, len(c.entries) - 1
}

// IndexOf returns the catalog index of an exact diameter, or -1.
func (c Catalog) IndexOf(diameter float64) int {
	for i, e := range c.entries {
		if e.Diameter == diameter {
			return i
		}
	}
	return -1
}

// MaxCost is the cost of laying the largest size on every pipe, candidates included.
func (c Catalog) MaxCost(net *Network) float64 {
	if len(c.entries) == 0 {
		return 0
	}
	unit := c.entries[len(c.entries)-1].UnitCost
	var total float64
	for _, p := range net.Pipes {
		total += unit * p.Length
	}
	return total
}

// #endregion catalog
