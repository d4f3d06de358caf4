package network

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"
)

// #region network-struct
// Network is an immutable node/pipe topology. Pipe order is chromosome order.
type Network struct {
	Name  string
	Nodes []Node
	Pipes []Pipe

	nodeIndex  map[string]int
	incident   [][]int // node position -> pipe positions
	candidates []int   // pipe positions with Candidate set
}

// #endregion network-struct

// #region constructor
// NewNetwork validates the topology and indexes it.
// The full pipe set must connect every node.
func NewNetwork(name string, nodes []Node, pipes []Pipe) (*Network, error) {
	if len(pipes) == 0 {
		return nil, ErrEmptyNetwork
	}

	net := &Network{
		Name:      name,
		Nodes:     make([]Node, len(nodes)),
		Pipes:     make([]Pipe, len(pipes)),
		nodeIndex: make(map[string]int, len(nodes)),
		incident:  make([][]int, len(nodes)),
	}
	copy(net.Nodes, nodes)
	copy(net.Pipes, pipes)

	sources := 0
	for i := range net.Nodes {
		n := &net.Nodes[i]
		if n.ID == "" {
			return nil, fmt.Errorf("node %d: empty id: %w", i, ErrInvalidElement)
		}
		if _, dup := net.nodeIndex[n.ID]; dup {
			return nil, fmt.Errorf("node %s: %w", n.ID, ErrDuplicateID)
		}
		if n.Kind == "" {
			n.Kind = Junction
		}
		if n.Kind != Junction && n.Kind != Reservoir {
			return nil, fmt.Errorf("node %s: kind %q: %w", n.ID, n.Kind, ErrInvalidElement)
		}
		if n.Demand < 0 {
			return nil, fmt.Errorf("node %s: negative demand: %w", n.ID, ErrInvalidElement)
		}
		if n.IsSource() {
			sources++
		}
		net.nodeIndex[n.ID] = i
	}
	if sources == 0 {
		return nil, ErrNoReservoir
	}

	pipeIDs := make(map[string]bool, len(pipes))
	for i, p := range net.Pipes {
		if p.ID == "" {
			return nil, fmt.Errorf("pipe %d: empty id: %w", i, ErrInvalidElement)
		}
		if pipeIDs[p.ID] {
			return nil, fmt.Errorf("pipe %s: %w", p.ID, ErrDuplicateID)
		}
		pipeIDs[p.ID] = true
		from, ok := net.nodeIndex[p.From]
		if !ok {
			return nil, fmt.Errorf("pipe %s: from %q: %w", p.ID, p.From, ErrUnknownNode)
		}
		to, ok := net.nodeIndex[p.To]
		if !ok {
			return nil, fmt.Errorf("pipe %s: to %q: %w", p.ID, p.To, ErrUnknownNode)
		}
		if from == to {
			return nil, fmt.Errorf("pipe %s: loops on node %s: %w", p.ID, p.From, ErrInvalidElement)
		}
		if p.Length <= 0 {
			return nil, fmt.Errorf("pipe %s: length %.3f: %w", p.ID, p.Length, ErrInvalidElement)
		}
		net.incident[from] = append(net.incident[from], i)
		net.incident[to] = append(net.incident[to], i)
		if p.Candidate {
			net.candidates = append(net.candidates, i)
		}
	}

	if comps := net.components(nil); len(comps) != 1 {
		return nil, fmt.Errorf("%d components: %w", len(comps), ErrDisconnected)
	}

	return net, nil
}

// #endregion constructor

// #region accessors
// PipeCount returns the number of pipes, i.e. the diameter-gene count.
func (n *Network) PipeCount() int {
	return len(n.Pipes)
}

// CandidateCount returns the number of pipes whose presence is searchable.
func (n *Network) CandidateCount() int {
	return len(n.candidates)
}

// CandidatePositions returns the pipe positions of candidate pipes, in order.
func (n *Network) CandidatePositions() []int {
	cp := make([]int, len(n.candidates))
	copy(cp, n.candidates)
	return cp
}

// NodeByID returns the node with the given ID.
func (n *Network) NodeByID(id string) (Node, bool) {
	i, ok := n.nodeIndex[id]
	if !ok {
		return Node{}, false
	}
	return n.Nodes[i], true
}

// IncidentPipes returns the positions of pipes touching the node.
func (n *Network) IncidentPipes(nodeID string) []int {
	i, ok := n.nodeIndex[nodeID]
	if !ok {
		return nil
	}
	return n.incident[i]
}

// DemandNodes returns the non-source nodes, which carry pressure constraints.
func (n *Network) DemandNodes() []Node {
	var out []Node
	for _, node := range n.Nodes {
		if !node.IsSource() {
			out = append(out, node)
		}
	}
	return out
}

// TotalDemand sums the demand of all junctions.
func (n *Network) TotalDemand() float64 {
	var total float64
	for _, node := range n.Nodes {
		if !node.IsSource() {
			total += node.Demand
		}
	}
	return total
}

// #endregion accessors

// #region decode
// Decode turns catalog indices into a priced assignment. present may be nil,
// meaning every pipe is laid. Absent pipes cost nothing.
// A length mismatch is a programmer error and panics.
func Decode(net *Network, cat Catalog, indices []int, present []bool) Assignment {
	if len(indices) != net.PipeCount() {
		panic(fmt.Sprintf("network: decode: %d indices for %d pipes", len(indices), net.PipeCount()))
	}
	if present != nil && len(present) != net.PipeCount() {
		panic(fmt.Sprintf("network: decode: %d presence flags for %d pipes", len(present), net.PipeCount()))
	}

	a := Assignment{Pipes: make([]PipeDesign, len(indices))}
	for i, idx := range indices {
		if idx < 0 || idx >= cat.Len() {
			panic(fmt.Sprintf("network: decode: pipe %d index %d outside [0,%d]", i, idx, cat.Len()-1))
		}
		e := cat.Entry(idx)
		laid := present == nil || present[i]
		d := PipeDesign{
			PipeID:   net.Pipes[i].ID,
			Index:    idx,
			Diameter: e.Diameter,
			UnitCost: e.UnitCost,
			Present:  laid,
		}
		if laid {
			d.Cost = e.UnitCost * net.Pipes[i].Length
			a.TotalCost += d.Cost
		}
		a.Pipes[i] = d
	}
	return a
}

// #endregion decode

// #region connectivity
// Disconnected returns the IDs of demand nodes with no path to a source when
// only the present pipes are laid. present may be nil (all pipes laid).
func (n *Network) Disconnected(present []bool) []string {
	var cut []int
	for _, comp := range n.components(present) {
		fed := false
		for _, pos := range comp {
			if n.Nodes[pos].IsSource() {
				fed = true
				break
			}
		}
		if !fed {
			cut = append(cut, comp...)
		}
	}
	if len(cut) == 0 {
		return nil
	}

	// gonum iterates nodes in map order
	sort.Ints(cut)
	out := make([]string, len(cut))
	for i, pos := range cut {
		out[i] = n.Nodes[pos].ID
	}
	return out
}

// components groups node positions into connected components.
func (n *Network) components(present []bool) [][]int {
	g := simple.NewUndirectedGraph()
	for i := range n.Nodes {
		g.AddNode(simple.Node(int64(i)))
	}
	for i, p := range n.Pipes {
		if present != nil && !present[i] {
			continue
		}
		g.SetEdge(simple.Edge{
			F: simple.Node(int64(n.nodeIndex[p.From])),
			T: simple.Node(int64(n.nodeIndex[p.To])),
		})
	}

	raw := topo.ConnectedComponents(g)
	comps := make([][]int, len(raw))
	for i, c := range raw {
		comps[i] = make([]int, len(c))
		for j, node := range c {
			comps[i][j] = int(node.ID())
		}
	}
	return comps
}

// #endregion connectivity
