package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/danielpatrickdp/optinet/internal/hydraulic"
	"github.com/danielpatrickdp/optinet/internal/network"
	"github.com/danielpatrickdp/optinet/internal/scenario"
	"github.com/danielpatrickdp/optinet/internal/store"
)

// #region main

func main() {
	dbPath := flag.String("db", "", "path to the run store")
	runID := flag.String("run", "", "run to export; most recent completed run when empty")
	netPath := flag.String("network", "", "network definition the run optimized")
	catPath := flag.String("catalog", "", "pipe catalog the run used")
	k := flag.Float64("k", hydraulic.DefaultSurrogate().K, "surrogate head coefficient")
	outPath := flag.String("out", "", "output fixture JSON path")
	flag.Parse()

	if *dbPath == "" || *outPath == "" || *netPath == "" || *catPath == "" {
		fmt.Fprintln(os.Stderr, "usage: fixture-export -db runs.db -network net.yaml -catalog prices.csv -out fixture.json [-run id] [-k coeff]")
		os.Exit(2)
	}

	if err := export(*dbPath, *runID, *netPath, *catPath, *k, *outPath); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// #endregion main

// #region export

func export(dbPath, runID, netPath, catPath string, k float64, outPath string) error {
	s, err := store.NewStore(dbPath)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer s.Close()

	net, err := network.LoadNetwork(netPath)
	if err != nil {
		return err
	}
	cat, err := network.LoadCatalog(catPath)
	if err != nil {
		return err
	}

	if runID == "" {
		if runID, err = latestCompleted(s, net.Name); err != nil {
			return err
		}
	}

	solver := hydraulic.DefaultSurrogate()
	solver.K = k
	f, err := scenario.FromRun(s, runID, net, cat, solver)
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal fixture: %w", err)
	}
	if err := os.WriteFile(outPath, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write fixture: %w", err)
	}
	fmt.Printf("Exported run %s (%s, cost %g) to %s\n", runID, net.Name, *f.ExpectedCost, outPath)
	return nil
}

func latestCompleted(s *store.Store, networkName string) (string, error) {
	runs, err := s.ListRuns(100)
	if err != nil {
		return "", err
	}
	for _, r := range runs {
		if r.Status == store.StatusCompleted && r.Network == networkName {
			return r.RunID, nil
		}
	}
	return "", fmt.Errorf("no completed run for network %s", networkName)
}

// #endregion export
