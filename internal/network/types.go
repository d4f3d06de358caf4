package network

import "errors"

// #region errors
var (
	ErrEmptyCatalog   = errors.New("catalog is empty")
	ErrCatalogOrder   = errors.New("catalog diameters must be strictly increasing")
	ErrCatalogCost    = errors.New("catalog unit costs must be non-decreasing")
	ErrEmptyNetwork   = errors.New("network has no pipes")
	ErrNoReservoir    = errors.New("network has no reservoir node")
	ErrDisconnected   = errors.New("network is not connected")
	ErrUnknownNode    = errors.New("pipe references unknown node")
	ErrDuplicateID    = errors.New("duplicate id")
	ErrInvalidElement = errors.New("invalid network element")
)

// #endregion errors

// #region node
// NodeKind distinguishes demand junctions from source nodes.
type NodeKind string

const (
	Junction  NodeKind = "junction"
	Reservoir NodeKind = "reservoir"
)

// Node is a junction or source in the distribution network.
type Node struct {
	ID          string   `yaml:"id" json:"id"`
	Kind        NodeKind `yaml:"kind" json:"kind"`
	Demand      float64  `yaml:"demand" json:"demand"`             // m³/s
	Elevation   float64  `yaml:"elevation" json:"elevation"`       // m
	MinPressure float64  `yaml:"min_pressure" json:"min_pressure"` // m, 0 = use the global limit
}

// IsSource reports whether the node supplies water; sources carry no pressure constraint.
func (n Node) IsSource() bool {
	return n.Kind == Reservoir
}

// #endregion node

// #region pipe
// Pipe connects two nodes. Candidate pipes may be dropped by layout search.
type Pipe struct {
	ID        string  `yaml:"id" json:"id"`
	From      string  `yaml:"from" json:"from"`
	To        string  `yaml:"to" json:"to"`
	Length    float64 `yaml:"length" json:"length"` // m
	Roughness float64 `yaml:"roughness" json:"roughness"`
	Candidate bool    `yaml:"candidate" json:"candidate"`
}

// #endregion pipe

// #region catalog-entry
// CatalogEntry is one commercial pipe size.
type CatalogEntry struct {
	Diameter float64 `json:"diameter"`  // mm
	UnitCost float64 `json:"unit_cost"` // per metre
}

// #endregion catalog-entry

// #region assignment
// PipeDesign is the decoded design of a single pipe.
type PipeDesign struct {
	PipeID   string  `json:"pipe_id"`
	Index    int     `json:"index"`
	Diameter float64 `json:"diameter"`
	UnitCost float64 `json:"unit_cost"`
	Cost     float64 `json:"cost"`
	Present  bool    `json:"present"`
}

// Assignment is a concrete diameter choice for every pipe of a network.
type Assignment struct {
	Pipes     []PipeDesign `json:"pipes"`
	TotalCost float64      `json:"total_cost"`
}

// Indices returns the catalog index of every pipe in network order.
func (a Assignment) Indices() []int {
	out := make([]int, len(a.Pipes))
	for i, p := range a.Pipes {
		out[i] = p.Index
	}
	return out
}

// Present returns the presence flag of every pipe in network order.
func (a Assignment) Present() []bool {
	out := make([]bool, len(a.Pipes))
	for i, p := range a.Pipes {
		out[i] = p.Present
	}
	return out
}

// #endregion assignment
