package genome

import (
	"fmt"
	"math/rand/v2"
	"strconv"
	"strings"

	"github.com/danielpatrickdp/optinet/internal/network"
)

// #region types
// Chromosome holds one catalog index per pipe, followed by one presence gene
// (0 or 1) per candidate pipe when layout search is enabled.
type Chromosome []int

// Layout describes the chromosome space of a network.
type Layout struct {
	Pipes       int
	CatalogSize int
	Candidates  []int // pipe positions governed by presence genes
}

// #endregion types

// #region layout
// NewLayout builds the chromosome space for a network and catalog.
// Presence genes are added only when layoutSearch is set.
func NewLayout(net *network.Network, cat network.Catalog, layoutSearch bool) Layout {
	l := Layout{
		Pipes:       net.PipeCount(),
		CatalogSize: cat.Len(),
	}
	if layoutSearch {
		l.Candidates = net.CandidatePositions()
	}
	return l
}

// Len is the fixed chromosome length.
func (l Layout) Len() int {
	return l.Pipes + len(l.Candidates)
}

// Upper returns the inclusive upper bound of gene i.
func (l Layout) Upper(i int) int {
	if i < l.Pipes {
		return l.CatalogSize - 1
	}
	return 1
}

// LayoutSearch reports whether the chromosome carries presence genes.
func (l Layout) LayoutSearch() bool {
	return len(l.Candidates) > 0
}

// Space returns the number of distinct chromosomes, saturating at limit.
func (l Layout) Space(limit int) int {
	n := 1
	for i := 0; i < l.Len(); i++ {
		n *= l.Upper(i) + 1
		if n > limit {
			return limit + 1
		}
	}
	return n
}

// #endregion layout

// #region encode-decode
// Encode maps an assignment back onto a chromosome.
func Encode(l Layout, a network.Assignment) Chromosome {
	if len(a.Pipes) != l.Pipes {
		panic(fmt.Sprintf("genome: encode: %d pipes for layout of %d", len(a.Pipes), l.Pipes))
	}
	c := make(Chromosome, l.Len())
	for i, p := range a.Pipes {
		c[i] = p.Index
	}
	for j, pos := range l.Candidates {
		if a.Pipes[pos].Present {
			c[l.Pipes+j] = 1
		}
	}
	return c
}

// Split separates the diameter indices from the presence flags.
// present is nil when the layout has no presence genes.
func Split(l Layout, c Chromosome) (indices []int, present []bool) {
	if len(c) != l.Len() {
		panic(fmt.Sprintf("genome: chromosome length %d, layout expects %d", len(c), l.Len()))
	}
	indices = make([]int, l.Pipes)
	copy(indices, c[:l.Pipes])
	if !l.LayoutSearch() {
		return indices, nil
	}
	present = make([]bool, l.Pipes)
	for i := range present {
		present[i] = true
	}
	for j, pos := range l.Candidates {
		present[pos] = c[l.Pipes+j] == 1
	}
	return indices, present
}

// Decode maps a chromosome to a priced assignment.
func Decode(l Layout, net *network.Network, cat network.Catalog, c Chromosome) network.Assignment {
	indices, present := Split(l, c)
	return network.Decode(net, cat, indices, present)
}

// #endregion encode-decode

// #region construction
// Random draws every gene independently and uniformly in [0, Upper(i)].
func Random(l Layout, rng *rand.Rand) Chromosome {
	c := make(Chromosome, l.Len())
	for i := range c {
		c[i] = rng.IntN(l.Upper(i) + 1)
	}
	return c
}

// MaxDiameter is the seeding design: largest size everywhere, every candidate laid.
func MaxDiameter(l Layout) Chromosome {
	c := make(Chromosome, l.Len())
	for i := range c {
		c[i] = l.Upper(i)
	}
	return c
}

// Clone returns an independent copy.
func Clone(c Chromosome) Chromosome {
	cp := make(Chromosome, len(c))
	copy(cp, c)
	return cp
}

// Equal reports gene-wise equality.
func Equal(a, b Chromosome) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Key returns a compact string form, used for memoization and diversity counts.
func Key(c Chromosome) string {
	var b strings.Builder
	for i, g := range c {
		if i > 0 {
			b.WriteByte('.')
		}
		b.WriteString(strconv.Itoa(g))
	}
	return b.String()
}

// ParseKey is the inverse of Key.
func ParseKey(s string) (Chromosome, error) {
	if s == "" {
		return Chromosome{}, nil
	}
	parts := strings.Split(s, ".")
	c := make(Chromosome, len(parts))
	for i, p := range parts {
		g, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("gene %d: %w", i, err)
		}
		c[i] = g
	}
	return c, nil
}

// #endregion construction
