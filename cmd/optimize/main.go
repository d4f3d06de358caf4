package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/danielpatrickdp/optinet/internal/config"
	"github.com/danielpatrickdp/optinet/internal/hydraulic"
	"github.com/danielpatrickdp/optinet/internal/metrics"
	"github.com/danielpatrickdp/optinet/internal/network"
	"github.com/danielpatrickdp/optinet/internal/run"
	"github.com/danielpatrickdp/optinet/internal/solverrpc"
	"github.com/danielpatrickdp/optinet/internal/store"
)

// #region main
func main() {
	netPath := flag.String("network", "", "network definition (YAML)")
	catPath := flag.String("catalog", "", "pipe catalog (CSV: diameter,unit_cost)")
	cfgPath := flag.String("config", "", "optimizer config (YAML); defaults when empty")
	dbPath := flag.String("db", envOr("OPTINET_DB", ""), "SQLite run store; no persistence when empty")
	solverAddr := flag.String("solver", envOr("OPTINET_SOLVER_ADDR", ""), "comma-separated gRPC solver addresses; in-process surrogate when empty")
	historyPath := flag.String("history", "", "write convergence history CSV to this path")
	metricsAddr := flag.String("metrics-addr", "", "serve Prometheus metrics on this address")
	jsonOut := flag.Bool("json", false, "print the report as JSON")
	flag.Parse()

	if *netPath == "" || *catPath == "" {
		fmt.Fprintln(os.Stderr, "usage: optimize -network net.yaml -catalog prices.csv [-config cfg.yaml] [-db runs.db] [-solver host:port] [-history out.csv] [-metrics-addr :9090] [-json]")
		os.Exit(2)
	}

	cfg, err := loadConfig(*cfgPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	net, err := network.LoadNetwork(*netPath)
	if err != nil {
		log.Fatalf("load network: %v", err)
	}
	cat, err := network.LoadCatalog(*catPath)
	if err != nil {
		log.Fatalf("load catalog: %v", err)
	}

	solver, closeSolver, err := openSolver(*solverAddr)
	if err != nil {
		log.Fatalf("solver: %v", err)
	}
	defer closeSolver()

	opts := run.Options{}
	if *dbPath != "" {
		s, err := store.NewStore(*dbPath)
		if err != nil {
			log.Fatalf("failed to open store: %v", err)
		}
		defer s.Close()
		opts.Store = s
	}
	if *metricsAddr != "" {
		reg := prometheus.NewRegistry()
		opts.Metrics = metrics.New(reg)
		go serveMetrics(*metricsAddr, reg)
	}

	ctrl, err := run.New(cfg, net, cat, solver, opts)
	if err != nil {
		log.Fatalf("invalid setup: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Printf("Optimizing %s: %d pipes, %d sizes | solver: %s\n", net.Name, net.PipeCount(), cat.Len(), solverLabel(*solverAddr))
	rep, err := ctrl.Run(ctx)
	if err != nil {
		log.Fatalf("run failed: %v", err)
	}

	if *historyPath != "" {
		if err := writeHistory(*historyPath, rep.History); err != nil {
			log.Fatalf("history: %v", err)
		}
	}
	if *jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(rep); err != nil {
			log.Fatalf("encode report: %v", err)
		}
		return
	}
	fmt.Print(rep.Summary())
}

// #endregion main

// #region helpers
func loadConfig(path string) (config.Config, error) {
	cfg := config.Default()
	if path != "" {
		var err error
		if cfg, err = config.Load(path); err != nil {
			return config.Config{}, err
		}
	}
	if err := cfg.ApplyEnv(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

// openSolver returns the in-process surrogate, one remote client, or a
// handle pool with one client per address.
func openSolver(addrs string) (hydraulic.Solver, func(), error) {
	if addrs == "" {
		return hydraulic.DefaultSurrogate(), func() {}, nil
	}
	var clients []*solverrpc.Client
	closeAll := func() {
		for _, c := range clients {
			c.Close()
		}
	}
	for _, addr := range strings.Split(addrs, ",") {
		addr = strings.TrimSpace(addr)
		if addr == "" {
			continue
		}
		c, err := solverrpc.NewClient(addr)
		if err != nil {
			closeAll()
			return nil, nil, err
		}
		clients = append(clients, c)
	}
	if len(clients) == 0 {
		return nil, nil, errors.New("no solver address given")
	}
	if len(clients) == 1 {
		return clients[0], closeAll, nil
	}
	handles := make([]hydraulic.Solver, len(clients))
	for i, c := range clients {
		handles[i] = c
	}
	return hydraulic.NewHandlePool(handles...), closeAll, nil
}

func solverLabel(addrs string) string {
	if addrs == "" {
		return "surrogate (in-process)"
	}
	return addrs
}

func serveMetrics(addr string, reg *prometheus.Registry) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	log.Printf("[RUN] metrics on %s/metrics", addr)
	if err := http.ListenAndServe(addr, mux); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Printf("[RUN] metrics server: %v", err)
	}
}

func writeHistory(path string, history []run.GenerationStats) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := run.WriteHistoryCSV(f, history); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// #endregion helpers
