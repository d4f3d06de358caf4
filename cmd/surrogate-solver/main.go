package main

import (
	"flag"
	"log"
	"net"
	"os"
	"os/signal"
	"syscall"

	"google.golang.org/grpc"

	"github.com/danielpatrickdp/optinet/internal/hydraulic"
	"github.com/danielpatrickdp/optinet/internal/solverrpc"
)

// #region main
func main() {
	addr := flag.String("addr", envOr("OPTINET_SOLVER_LISTEN", "localhost:50051"), "listen address")
	k := flag.Float64("k", hydraulic.DefaultSurrogate().K, "surrogate head coefficient")
	serial := flag.Bool("serial", false, "handle one simulation at a time")
	flag.Parse()

	var solver hydraulic.Solver = hydraulic.Surrogate{K: *k, Reference: 100, MinDemand: 1e-4}
	if *serial {
		solver = hydraulic.Serialized(solver)
	}

	lis, err := net.Listen("tcp", *addr)
	if err != nil {
		log.Fatalf("listen %s: %v", *addr, err)
	}
	srv := grpc.NewServer()
	solverrpc.Register(srv, solver)

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGTERM, syscall.SIGINT)
		<-quit
		log.Println("[RPC] shutting down")
		srv.GracefulStop()
	}()

	log.Printf("[RPC] surrogate solver (k=%g) listening on %s", *k, lis.Addr())
	if err := srv.Serve(lis); err != nil {
		log.Fatalf("serve: %v", err)
	}
}

// #endregion main

// #region helpers
func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// #endregion helpers
