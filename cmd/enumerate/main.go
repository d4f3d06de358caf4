package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/danielpatrickdp/optinet/internal/constraint"
	"github.com/danielpatrickdp/optinet/internal/evaluator"
	"github.com/danielpatrickdp/optinet/internal/genome"
	"github.com/danielpatrickdp/optinet/internal/hydraulic"
	"github.com/danielpatrickdp/optinet/internal/network"
	"github.com/danielpatrickdp/optinet/internal/solverrpc"
)

// #region main

func main() {
	netPath := flag.String("network", "", "network definition (YAML)")
	catPath := flag.String("catalog", "", "pipe catalog (CSV)")
	limit := flag.Int("limit", 1_000_000, "refuse design spaces larger than this")
	minPressure := flag.Float64("min-pressure", constraint.DefaultLimits().MinPressure, "minimum pressure head (m)")
	maxVelocity := flag.Float64("max-velocity", constraint.DefaultLimits().MaxVelocity, "maximum velocity (m/s)")
	layout := flag.Bool("layout-search", false, "also enumerate presence of candidate pipes")
	solverAddr := flag.String("solver", "", "gRPC solver address; in-process surrogate when empty")
	workers := flag.Int("workers", 4, "concurrent simulations")
	jsonOut := flag.Bool("json", false, "output as JSON")
	flag.Parse()

	if *netPath == "" || *catPath == "" {
		fmt.Fprintln(os.Stderr, "usage: enumerate -network net.yaml -catalog prices.csv [-limit N] [-min-pressure m] [-max-velocity m/s] [-layout-search] [-solver host:port] [-json]")
		os.Exit(2)
	}
	if err := runEnumerate(*netPath, *catPath, *limit, *minPressure, *maxVelocity, *layout, *solverAddr, *workers, *jsonOut); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		if errors.Is(err, evaluator.ErrSpaceTooLarge) {
			os.Exit(3)
		}
		os.Exit(1)
	}
}

// #endregion main

// #region enumerate

type output struct {
	Network    string             `json:"network"`
	Chromosome string             `json:"chromosome"`
	Evaluated  int                `json:"evaluated"`
	Feasible   int                `json:"feasible"`
	Result     evaluator.Result   `json:"result"`
	Design     network.Assignment `json:"design"`
}

func runEnumerate(netPath, catPath string, limit int, minP, maxV float64, layoutSearch bool, solverAddr string, workers int, jsonOut bool) error {
	net, err := network.LoadNetwork(netPath)
	if err != nil {
		return err
	}
	cat, err := network.LoadCatalog(catPath)
	if err != nil {
		return err
	}
	limits := constraint.DefaultLimits()
	limits.MinPressure, limits.MaxVelocity = minP, maxV
	policy, err := constraint.NewPolicy(limits, 1000, 1000, cat.MaxCost(net))
	if err != nil {
		return err
	}

	var solver hydraulic.Solver = hydraulic.DefaultSurrogate()
	if solverAddr != "" {
		c, err := solverrpc.NewClient(solverAddr)
		if err != nil {
			return err
		}
		defer c.Close()
		solver = c
	}

	l := genome.NewLayout(net, cat, layoutSearch)
	ev := evaluator.New(net, cat, l, solver, policy, evaluator.Options{Workers: workers})
	oracle, err := ev.Enumerate(context.Background(), limit)
	if err != nil {
		return err
	}

	out := output{
		Network:    net.Name,
		Chromosome: genome.Key(oracle.Best),
		Evaluated:  oracle.Evaluated,
		Feasible:   oracle.Feasible,
		Result:     oracle.Result,
		Design:     genome.Decode(l, net, cat, oracle.Best),
	}
	if jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}

	fmt.Printf("%s: %d designs, %d feasible\n", out.Network, out.Evaluated, out.Feasible)
	fmt.Printf("best %s  cost=%.2f  fitness=%.2f  feasible=%t  min_p=%.2f  max_v=%.3f\n",
		out.Chromosome, out.Result.Cost, out.Result.Fitness, out.Result.Feasible, out.Result.MinPressure, out.Result.MaxVelocity)
	for _, p := range out.Design.Pipes {
		if p.Present {
			fmt.Printf("  %-8s %8.1f mm  %10.2f\n", p.PipeID, p.Diameter, p.Cost)
		} else {
			fmt.Printf("  %-8s %8s\n", p.PipeID, "absent")
		}
	}
	return nil
}

// #endregion enumerate
