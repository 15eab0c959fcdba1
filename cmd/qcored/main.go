// Command qcored wires the query coordinator, peer RPC surface, and
// property store into a single process. It is a minimal demonstration
// of how the pieces fit together, not a production entry point: shard
// registration and TLS are left out. The HTTP server is shut down when
// the process receives SIGINT or SIGTERM.
package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	sglog "github.com/sourcegraph/log"
	"go.uber.org/automaxprocs/maxprocs"

	"github.com/dreamware/vecquery/coordinator"
	"github.com/dreamware/vecquery/properties"
	"github.com/dreamware/vecquery/rpcshard"
	"github.com/dreamware/vecquery/shards"
)

func main() {
	listen := flag.String("listen", ":6070", "listen on this address for the peer RPC surface and metrics.")
	storageDir := flag.String("storage_dir", "/var/lib/qcored", "directory holding properties.json and other process state.")
	enableRPC := flag.Bool("rpc", true, "enable the peer-facing RPC surface.")
	version := flag.Bool("version", false, "print version number and exit.")
	flag.Parse()

	if *version {
		log.Println("qcored (dev build)")
		os.Exit(0)
	}

	liblog := sglog.Init(sglog.Resource{
		Name:       "qcored",
		Version:    "dev",
		InstanceID: os.Getenv("HOSTNAME"),
	})
	defer liblog.Sync()

	if _, err := maxprocs.Set(); err != nil {
		sglog.Scoped("qcored", "").Warn("failed to set GOMAXPROCS", sglog.Error(err))
	}

	if err := os.MkdirAll(*storageDir, 0o755); err != nil {
		log.Fatalf("create storage dir: %v", err)
	}

	props, err := properties.Open(*storageDir)
	if err != nil {
		log.Fatalf("open property store: %v", err)
	}
	_ = props

	holder := shards.NewHolder()
	dispatcher := shards.NewDispatcher()

	peer := &coordinator.PeerCoordinator{Holder: holder, Dispatcher: dispatcher}
	_ = &coordinator.QueryCoordinator{
		Holder:     holder,
		Dispatcher: dispatcher,
		SlowQuery:  coordinator.SlowQueryLogger{Logger: sglog.Scoped("coordinator", "")},
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	if *enableRPC {
		mux.Handle(rpcshard.DefaultRPCPath, rpcshard.Server(peer))
	}

	srv := &http.Server{Addr: *listen, Handler: mux}

	go func() {
		sglog.Scoped("qcored", "").Info("starting server", sglog.String("address", *listen))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("ListenAndServe: %v", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	if err := srv.Shutdown(context.Background()); err != nil {
		log.Fatalf("shutdown: %v", err)
	}
}
