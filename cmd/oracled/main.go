// Command oracled serves the ground-truth oracle estimator over gRPC, so
// the drivers' remote path can be exercised without a learned model.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net"
	"os/signal"
	"syscall"

	"github.com/banshee-data/posebench/internal/estimator"
	"github.com/banshee-data/posebench/internal/version"
)

var (
	listen      = flag.String("listen", ":50051", "gRPC listen address")
	showVersion = flag.Bool("version", false, "Print version and exit")
)

func main() {
	flag.Parse()
	if *showVersion {
		fmt.Println(version.String("oracled"))
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	lis, err := net.Listen("tcp", *listen)
	if err != nil {
		log.Fatalf("failed to listen on %s: %v", *listen, err)
	}
	if err := serve(ctx, lis); err != nil {
		log.Fatalf("oracled: %v", err)
	}
}

// serve runs the oracle on lis until ctx is done.
func serve(ctx context.Context, lis net.Listener) error {
	oracle := estimator.NewOracle()
	srv := estimator.NewServer(oracle)

	errc := make(chan error, 1)
	go func() {
		log.Printf("oracle estimator listening on %s", lis.Addr())
		errc <- srv.Serve(lis)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	log.Println("shutting down gRPC server...")
	srv.GracefulStop()
	resets, calls := oracle.Stats()
	log.Printf("served %d resets, %d registrations", resets, calls)
	return nil
}
