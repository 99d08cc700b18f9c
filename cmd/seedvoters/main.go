package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/terminal-bench/ballotbox/internal/config"
	"github.com/terminal-bench/ballotbox/internal/election"
	"github.com/terminal-bench/ballotbox/internal/ledger"
	"github.com/terminal-bench/ballotbox/internal/logging"
	"github.com/terminal-bench/ballotbox/internal/middleware"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

func main() {
	count := flag.Int("n", 100, "number of voters to generate")
	password := flag.String("password", "password123", "password given to every generated voter")
	tokens := flag.Bool("tokens", false, "print a one-hour bearer token next to each CNP")
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

	if cfg.DatabaseURL == "" {
		logger.Fatal("DATABASE_URL is required")
	}
	if *tokens && cfg.JWTSecret == "" {
		logger.Fatal("JWT_SECRET is required to print tokens")
	}

	store, err := ledger.NewPostgres(cfg)
	if err != nil {
		logger.Fatal("failed to open ledger", zap.Error(err))
	}
	defer store.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	if err := store.Migrate(ctx); err != nil {
		logger.Fatal("failed to migrate", zap.Error(err))
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(*password), bcrypt.DefaultCost)
	if err != nil {
		logger.Fatal("failed to hash password", zap.Error(err))
	}

	svc := election.NewService(store, nil, election.WithLogger(logger))
	result, err := svc.SeedVoters(ctx, *count, string(hash))
	if err != nil {
		logger.Fatal("voter generation failed", zap.Error(err))
	}

	for _, cnp := range result.CNPs {
		if !*tokens {
			fmt.Println(cnp)
			continue
		}
		token, err := middleware.IssueToken(cfg.JWTSecret, cnp, time.Hour)
		if err != nil {
			logger.Fatal("failed to issue token", zap.Error(err))
		}
		fmt.Printf("%s\t%s\n", cnp, token)
	}

	logger.Info("voter generation complete",
		zap.Int("created", len(result.CNPs)),
		zap.Int("requested", *count),
		zap.Int("attempts", result.Attempts))
}
