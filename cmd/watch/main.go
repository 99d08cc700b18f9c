package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/terminal-bench/ballotbox/internal/broadcast"
	"github.com/terminal-bench/ballotbox/internal/config"
	"github.com/terminal-bench/ballotbox/internal/election"
	"github.com/terminal-bench/ballotbox/internal/logging"
	"github.com/terminal-bench/ballotbox/pkg/messaging"
	"go.uber.org/zap"
)

// watch follows standings and simulation results published by the server
func main() {
	url := flag.String("nats", "", "NATS url (defaults to NATS_URL)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	logger, err := logging.New(cfg.Debug)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer logger.Sync()

	if *url == "" {
		*url = cfg.NATSURL
	}
	client, err := messaging.NewClient(messaging.Config{URL: *url, Name: "ballotbox-watch", MaxReconnects: -1})
	if err != nil {
		logger.Fatal("failed to connect", zap.Error(err))
	}
	defer client.Close()

	err = client.Subscribe(broadcast.SubjectStandings, func(e messaging.Event) {
		var snap broadcast.Snapshot
		if err := e.Decode(&snap); err != nil {
			logger.Warn("bad standings event", zap.Error(err))
			return
		}
		fmt.Printf("#%d %s\n", snap.Seq, snap.At.Format("15:04:05"))
		for i, c := range snap.Candidates {
			fmt.Printf("  %2d. %-30s %6d\n", i+1, c.Name, c.Votes)
		}
	})
	if err != nil {
		logger.Fatal("failed to subscribe", zap.String("subject", broadcast.SubjectStandings), zap.Error(err))
	}

	err = client.Subscribe(election.SubjectSimulationCompleted, func(e messaging.Event) {
		var result election.SimulationResult
		if err := e.Decode(&result); err != nil {
			logger.Warn("bad simulation event", zap.Error(err))
			return
		}
		fmt.Printf("simulation finished: %d voters, %d abstained\n", result.Voters, result.Abstained)
		for _, f := range result.Finalists {
			fmt.Printf("  finalist %-30s %6d\n", f.Name, f.Votes)
		}
	})
	if err != nil {
		logger.Fatal("failed to subscribe", zap.String("subject", election.SubjectSimulationCompleted), zap.Error(err))
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
}
