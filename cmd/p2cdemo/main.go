// Command p2cdemo wires a pool.Pool over a fixed backend address list behind
// an HTTP reverse-proxy handler, demonstrating the P2C balancer end to end.
// It is scaffolding for the core library, not part of its public surface.
package main

import (
	"context"
	"flag"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kestrelbalance/p2c/balance"
	"github.com/kestrelbalance/p2c/config"
	"github.com/kestrelbalance/p2c/discover"
	"github.com/kestrelbalance/p2c/pool"
)

func main() {
	configPath := flag.String("config", "p2cdemo.yaml", "path to a YAML config file")
	flag.Parse()

	cfg, err := config.New(*configPath)
	if err != nil {
		log.Fatalf("p2cdemo: config: %v", err)
	}
	if err := config.SetupLogging(cfg); err != nil {
		log.Fatalf("p2cdemo: logging: %v", err)
	}

	opts, err := pool.NewBuilder().
		UnderutilizedBelow(cfg.UnderutilizedBelow).
		LoadedAbove(cfg.LoadedAbove).
		Initial(cfg.Initial).
		Urgency(cfg.Urgency).
		Build()
	if err != nil {
		log.Fatalf("p2cdemo: pool options: %v", err)
	}

	factory := newBackendFactory(cfg.BackendAddresses)
	p := pool.New[*http.Request, *http.Response, struct{}, *backendEndpoint](factory, struct{}{}, opts)

	// A second, non-elastic dispatch path over the same address list,
	// demonstrating discover.Static for callers whose backend set is fully
	// known up front and never needs pool.Pool's grow/shrink machinery.
	staticBalancer := newStaticBalancer(cfg.BackendAddresses)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		status, err := p.PollReady(ctx)
		if err != nil {
			log.Printf("p2cdemo: poll_ready failed: %v", err)
			http.Error(w, "discovery failed", http.StatusBadGateway)
			return
		}
		if status != balance.Ready {
			http.Error(w, "no backend ready", http.StatusServiceUnavailable)
			return
		}

		resp, err := p.Dispatch(ctx, r).Wait(ctx)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadGateway)
			return
		}
		defer resp.Body.Close()
		for k, vs := range resp.Header {
			for _, v := range vs {
				w.Header().Add(k, v)
			}
		}
		w.WriteHeader(resp.StatusCode)
		_, _ = io.Copy(w, resp.Body)
	})
	mux.HandleFunc("/static", func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		status, err := staticBalancer.PollReady(ctx)
		if err != nil {
			log.Printf("p2cdemo: static poll_ready failed: %v", err)
			http.Error(w, "discovery failed", http.StatusBadGateway)
			return
		}
		if status != balance.Ready {
			http.Error(w, "no backend ready", http.StatusServiceUnavailable)
			return
		}

		resp, err := staticBalancer.Dispatch(ctx, r).Wait(ctx)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadGateway)
			return
		}
		defer resp.Body.Close()
		for k, vs := range resp.Header {
			for _, v := range vs {
				w.Header().Add(k, v)
			}
		}
		w.WriteHeader(resp.StatusCode)
		_, _ = io.Copy(w, resp.Body)
	})

	srv := &http.Server{Addr: cfg.ListenAddr, Handler: mux}

	go func() {
		log.Printf("p2cdemo: listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("p2cdemo: server error: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	ctxTimeout, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctxTimeout)
}
