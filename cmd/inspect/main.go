package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/danielpatrickdp/optinet/internal/logging"
	"github.com/danielpatrickdp/optinet/internal/network"
	"github.com/danielpatrickdp/optinet/internal/run"
	"github.com/danielpatrickdp/optinet/internal/store"
)

// #region main

func main() {
	dbPath := flag.String("db", "", "path to the run store")
	last := flag.Int("last", 20, "show N most recent runs")
	runID := flag.String("run", "", "show single run detail")
	kind := flag.String("kind", "", "filter events to one kind (detail mode)")
	csvOut := flag.Bool("csv", false, "print the run's history as CSV (detail mode)")
	jsonOut := flag.Bool("json", false, "output as JSON instead of table")
	flag.Parse()

	if *dbPath == "" {
		fmt.Fprintln(os.Stderr, "usage: inspect -db runs.db [-last N] [-run id] [-kind event_kind] [-csv] [-json]")
		os.Exit(2)
	}

	s, err := store.NewStore(*dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open db: %v\n", err)
		os.Exit(1)
	}
	defer s.Close()

	if *runID != "" {
		err = runDetailMode(s, *runID, *kind, *csvOut, *jsonOut)
	} else {
		err = runListMode(s, *last, *jsonOut)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// #endregion main

// #region list-mode

type listRow struct {
	RunID    string  `json:"run_id"`
	Network  string  `json:"network"`
	Status   string  `json:"status"`
	Reason   string  `json:"reason,omitempty"`
	BestCost float64 `json:"best_cost"`
	Feasible bool    `json:"feasible"`
	Created  string  `json:"created_at"`
	Duration string  `json:"duration,omitempty"`
}

func runListMode(s *store.Store, last int, jsonOut bool) error {
	runs, err := s.ListRuns(last)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintln(os.Stderr, "no runs found")
		return nil
	}

	// Store returns newest first; print chronologically.
	rows := make([]listRow, len(runs))
	for i, r := range runs {
		lr := listRow{
			RunID:    r.RunID,
			Network:  r.Network,
			Status:   string(r.Status),
			Reason:   r.Reason,
			BestCost: r.BestCost,
			Feasible: r.Feasible,
			Created:  r.CreatedAt.Format("2006-01-02T15:04:05Z"),
		}
		if !r.FinishedAt.IsZero() {
			lr.Duration = r.FinishedAt.Sub(r.CreatedAt).Round(1e6).String()
		}
		rows[len(runs)-1-i] = lr
	}

	if jsonOut {
		return printJSON(rows)
	}

	fmt.Printf("%-10s  %-14s  %-10s  %12s  %-8s  %-10s  %s\n",
		"Run", "Network", "Status", "Best Cost", "Feasible", "Duration", "Time")
	fmt.Printf("%-10s+-%-14s+-%-10s+-%12s+-%-8s+-%-10s+-%s\n",
		"----------", "--------------", "----------", "------------", "--------", "----------", "--------------------")
	for _, r := range rows {
		cost := "—"
		if r.Status == string(store.StatusCompleted) {
			cost = fmt.Sprintf("%.2f", r.BestCost)
		}
		fmt.Printf("%-10s  %-14s  %-10s  %12s  %-8v  %-10s  %s\n",
			shortID(r.RunID), r.Network, r.Status, cost, r.Feasible, r.Duration, r.Created)
	}
	return nil
}

// #endregion list-mode

// #region detail-mode

type detailOutput struct {
	Run     store.RunRecord       `json:"run"`
	Best    *network.Assignment   `json:"best,omitempty"`
	History []run.GenerationStats `json:"history"`
	Events  []logging.EventEntry  `json:"events"`
}

func runDetailMode(s *store.Store, runID, kind string, csvOut, jsonOut bool) error {
	rec, err := s.GetRun(runID)
	if err != nil {
		return err
	}
	rows, err := s.History(runID)
	if err != nil {
		return err
	}
	history := run.HistoryFromRecords(rows)
	if csvOut {
		return run.WriteHistoryCSV(os.Stdout, history)
	}

	events, err := logging.ListEvents(s.DB(), runID, kind)
	if err != nil {
		return err
	}
	out := detailOutput{Run: rec, History: history, Events: events}
	if b, err := s.BestDesign(runID); err == nil {
		var a network.Assignment
		if err := json.Unmarshal([]byte(b.AssignmentJSON), &a); err == nil {
			out.Best = &a
		}
	}

	if jsonOut {
		return printJSON(out)
	}

	fmt.Printf("Run:       %s\n", rec.RunID)
	fmt.Printf("Network:   %s\n", rec.Network)
	fmt.Printf("Status:    %s\n", rec.Status)
	fmt.Printf("Reason:    %s\n", rec.Reason)
	fmt.Printf("Created:   %s\n", rec.CreatedAt.Format("2006-01-02T15:04:05Z"))
	if rec.Status == store.StatusCompleted {
		fmt.Printf("Best cost: %.2f (fitness %.2f, feasible %v)\n", rec.BestCost, rec.BestFitness, rec.Feasible)
	}

	if out.Best != nil {
		fmt.Printf("\nBest design:\n")
		for _, p := range out.Best.Pipes {
			if !p.Present {
				fmt.Printf("  %-8s %10s\n", p.PipeID, "absent")
				continue
			}
			fmt.Printf("  %-8s %7.1f mm  %10.2f\n", p.PipeID, p.Diameter, p.Cost)
		}
	}

	if len(history) > 0 {
		fmt.Printf("\nHistory:\n")
		fmt.Printf("  %4s  %4s  %6s  %12s  %12s  %12s  %6s\n", "exec", "gen", "nevals", "min", "avg", "best_so_far", "feas")
		for _, g := range history {
			fmt.Printf("  %4d  %4d  %6d  %12.2f  %12.2f  %12.2f  %5.0f%%\n",
				g.Execution, g.Generation, g.Evaluations, g.Min, g.Mean, g.BestSoFar, g.FeasibleRate*100)
		}
	}

	if len(events) > 0 {
		fmt.Printf("\nEvents:\n")
		for _, e := range events {
			gen := "run"
			if e.Generation >= 0 {
				gen = fmt.Sprintf("g%d", e.Generation)
			}
			fmt.Printf("  %-6s %-16s %s\n", gen, e.Kind, e.Detail)
		}
	}
	return nil
}

// #endregion detail-mode

// #region output

func printJSON(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal json: %w", err)
	}
	fmt.Println(string(data))
	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// #endregion output
