package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/terminal-bench/ballotbox/internal/broadcast"
	"github.com/terminal-bench/ballotbox/internal/config"
	"github.com/terminal-bench/ballotbox/internal/election"
	"github.com/terminal-bench/ballotbox/internal/handlers"
	"github.com/terminal-bench/ballotbox/internal/ledger"
	"github.com/terminal-bench/ballotbox/internal/middleware"
	"github.com/terminal-bench/ballotbox/internal/models"
	"github.com/terminal-bench/ballotbox/pkg/circuit"
	"go.uber.org/zap"
)

type downSink struct{}

func (downSink) Name() string { return "redis" }

func (downSink) Publish(context.Context, broadcast.Snapshot) error {
	return errors.New("connection refused")
}

func getHealth(t *testing.T, health gin.HandlerFunc) map[string]interface{} {
	t.Helper()
	router := gin.New()
	router.GET("/health", health)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestHealthHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)

	t.Run("should report sink states for the memory ledger", func(t *testing.T) {
		store := ledger.NewMemory()
		hub := broadcast.NewHub(store, broadcast.Config{})
		defer hub.Close()

		body := getHealth(t, healthHandler(hub, store, nil))
		assert.Equal(t, "ok", body["status"])
		assert.Equal(t, float64(0), body["observers"])
		assert.Equal(t, map[string]interface{}{}, body["sinks"])
		assert.NotContains(t, body, "db")
		assert.NotContains(t, body, "nats")
	})

	t.Run("should include pool stats for the postgres ledger", func(t *testing.T) {
		db, _, err := sqlmock.New()
		require.NoError(t, err)
		store := ledger.NewPostgresWithDB(db)
		defer store.Close()
		hub := broadcast.NewHub(ledger.NewMemory(), broadcast.Config{})
		defer hub.Close()

		body := getHealth(t, healthHandler(hub, store, nil))
		require.Contains(t, body, "db")
		assert.Contains(t, body["db"], "open")
		assert.Contains(t, body["db"], "in_use")
	})

	t.Run("should degrade once a sink breaker opens", func(t *testing.T) {
		store := ledger.NewMemory()
		hub := broadcast.NewHub(store, broadcast.Config{
			Sinks:   []broadcast.Sink{downSink{}},
			Breaker: circuit.Config{MaxFailures: 1, Timeout: time.Hour},
		})
		defer hub.Close()

		assert.Equal(t, "ok", getHealth(t, healthHandler(hub, store, nil))["status"])

		hub.Refresh(context.Background())
		require.Eventually(t, func() bool {
			return hub.SinkStates()["redis"] == circuit.StateOpen.String()
		}, 2*time.Second, 5*time.Millisecond)

		body := getHealth(t, healthHandler(hub, store, nil))
		assert.Equal(t, "degraded", body["status"])
		assert.Equal(t, map[string]interface{}{"redis": "open"}, body["sinks"])
	})
}

func TestSetupRouter(t *testing.T) {
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{
		LedgerDriver:   config.DriverMemory,
		JWTSecret:      "secret",
		AdminToken:     "admin",
		RateLimitRPS:   1,
		WSWriteTimeout: time.Second,
	}

	store, err := openLedger(cfg, zap.NewNop())
	require.NoError(t, err)
	mem := store.(*ledger.Memory)
	mem.AddCandidate(models.Candidate{ID: "a", Name: "Alice"})
	mem.AddVoter(models.Voter{CNP: "1960101123456"})

	hub := broadcast.NewHub(store, broadcast.Config{})
	defer hub.Close()
	svc := election.NewService(store, hub)
	h := handlers.NewElectionHandler(svc, store, nil, hub, cfg.WSWriteTimeout, nil)
	router := setupRouter(cfg, h, middleware.NewRateLimiter(cfg.RateLimitRPS), healthHandler(hub, store, nil))

	token, err := middleware.IssueToken(cfg.JWTSecret, "1960101123456", time.Hour)
	require.NoError(t, err)

	send := func(method, path, body string, headers map[string]string) int {
		req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
		for k, v := range headers {
			req.Header.Set(k, v)
		}
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w.Code
	}

	t.Run("should report health", func(t *testing.T) {
		assert.Equal(t, http.StatusOK, send(http.MethodGet, "/health", "", nil))
	})

	t.Run("should guard voter and admin routes", func(t *testing.T) {
		assert.Equal(t, http.StatusUnauthorized, send(http.MethodPost, "/api/v1/votes", `{"candidate_id":"a"}`, nil))
		assert.Equal(t, http.StatusForbidden, send(http.MethodPost, "/api/v1/simulation", "", nil))
	})

	t.Run("should rate limit votes per client", func(t *testing.T) {
		auth := map[string]string{"Authorization": "Bearer " + token}
		codes := []int{
			send(http.MethodPost, "/api/v1/votes", `{"candidate_id":"a"}`, auth),
			send(http.MethodPost, "/api/v1/votes", `{"candidate_id":"a"}`, auth),
			send(http.MethodPost, "/api/v1/votes", `{"candidate_id":"a"}`, auth),
		}
		assert.Equal(t, []int{http.StatusOK, http.StatusConflict, http.StatusTooManyRequests}, codes)
	})

	t.Run("should serve standings from the ledger", func(t *testing.T) {
		assert.Equal(t, http.StatusOK, send(http.MethodGet, "/api/v1/candidates", "", nil))
	})
}
