package network

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// #region network-file
// File is the on-disk shape of a network definition.
type File struct {
	Name  string `yaml:"name"`
	Nodes []Node `yaml:"nodes"`
	Pipes []Pipe `yaml:"pipes"`
}

// LoadNetwork reads a YAML network definition and validates it.
func LoadNetwork(path string) (*Network, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read network %s: %w", path, err)
	}
	net, err := ParseNetwork(data)
	if err != nil {
		return nil, fmt.Errorf("network %s: %w", path, err)
	}
	return net, nil
}

// ParseNetwork decodes a YAML network definition.
func ParseNetwork(data []byte) (*Network, error) {
	var f File
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}
	return NewNetwork(f.Name, f.Nodes, f.Pipes)
}

// #endregion network-file

// #region catalog-file
// LoadCatalog reads a two-column CSV table of diameter,unit_cost.
func LoadCatalog(path string) (Catalog, error) {
	fh, err := os.Open(path)
	if err != nil {
		return Catalog{}, fmt.Errorf("open catalog %s: %w", path, err)
	}
	defer fh.Close()

	cat, err := ReadCatalog(fh)
	if err != nil {
		return Catalog{}, fmt.Errorf("catalog %s: %w", path, err)
	}
	return cat, nil
}

// ReadCatalog parses catalog rows. Lines starting with '#' are comments and
// rows may appear in any order; they are sorted by diameter before validation.
func ReadCatalog(r io.Reader) (Catalog, error) {
	cr := csv.NewReader(r)
	cr.Comment = '#'
	cr.TrimLeadingSpace = true
	cr.FieldsPerRecord = -1

	var entries []CatalogEntry
	line := 0
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return Catalog{}, fmt.Errorf("read csv: %w", err)
		}
		line++
		if len(row) != 2 {
			return Catalog{}, fmt.Errorf("row %d: expected 2 columns, got %d", line, len(row))
		}
		d, err := strconv.ParseFloat(strings.TrimSpace(row[0]), 64)
		if err != nil {
			return Catalog{}, fmt.Errorf("row %d: diameter: %w", line, err)
		}
		c, err := strconv.ParseFloat(strings.TrimSpace(row[1]), 64)
		if err != nil {
			return Catalog{}, fmt.Errorf("row %d: unit cost: %w", line, err)
		}
		entries = append(entries, CatalogEntry{Diameter: d, UnitCost: c})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Diameter < entries[j].Diameter
	})
	return NewCatalog(entries)
}

// #endregion catalog-file
