package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/terminal-bench/ballotbox/internal/broadcast"
	domainerrors "github.com/terminal-bench/ballotbox/internal/domain/errors"
	"github.com/terminal-bench/ballotbox/internal/election"
	"github.com/terminal-bench/ballotbox/internal/middleware"
	"github.com/terminal-bench/ballotbox/internal/models"
	"go.uber.org/zap"
)

const defaultHistoryLimit = 20

// Election is the subset of election.Service the HTTP layer drives
type Election interface {
	CastVote(ctx context.Context, voterCNP, candidateID string) (*models.Candidate, error)
	GenerateNews(ctx context.Context, voterCNP string) (*models.NewsItem, error)
	NewsFeed(ctx context.Context, voterCNP string, limit int) ([]models.NewsItem, error)
	RunSimulation(ctx context.Context) (*election.SimulationResult, error)
}

// StandingsReader reads candidates straight from the ledger
type StandingsReader interface {
	Standings(ctx context.Context) ([]models.Candidate, error)
}

// SnapshotCache serves standings written by the broadcast hub
type SnapshotCache interface {
	Latest(ctx context.Context) (*broadcast.Snapshot, error)
	History(ctx context.Context, limit int) ([]broadcast.Snapshot, error)
}

// LiveStandings upgrades a request into a standings subscription and reports the
// sequence number of the newest snapshot it has handed out
type LiveStandings interface {
	ServeWS(w http.ResponseWriter, r *http.Request, writeTimeout time.Duration)
	Seq() uint64
}

// ElectionHandler handles voting, news and simulation requests
type ElectionHandler struct {
	election       Election
	standings      StandingsReader
	cache          SnapshotCache
	live           LiveStandings
	wsWriteTimeout time.Duration
	logger         *zap.Logger
}

// NewElectionHandler creates a handler. cache and live may be nil.
func NewElectionHandler(e Election, standings StandingsReader, cache SnapshotCache, live LiveStandings, wsWriteTimeout time.Duration, logger *zap.Logger) *ElectionHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ElectionHandler{
		election:       e,
		standings:      standings,
		cache:          cache,
		live:           live,
		wsWriteTimeout: wsWriteTimeout,
		logger:         logger,
	}
}

type castVoteRequest struct {
	CandidateID string `json:"candidate_id" binding:"required"`
}

// Candidates returns the current standings. The cached snapshot is served only while
// it matches the newest one the live hub handed out; otherwise the ledger is read.
func (h *ElectionHandler) Candidates(c *gin.Context) {
	ctx := c.Request.Context()

	if h.cache != nil {
		snap, err := h.cache.Latest(ctx)
		switch {
		case err == nil && h.live != nil && snap.Seq != h.live.Seq():
			h.logger.Debug("standings cache behind hub",
				zap.Uint64("cached_seq", snap.Seq),
				zap.Uint64("hub_seq", h.live.Seq()))
		case err == nil:
			c.JSON(http.StatusOK, gin.H{"candidates": snap.Candidates, "seq": snap.Seq, "source": "cache"})
			return
		case !errors.Is(err, broadcast.ErrNoSnapshot):
			h.logger.Warn("standings cache unavailable", zap.Error(err))
		}
	}

	candidates, err := h.standings.Standings(ctx)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"candidates": candidates, "source": "ledger"})
}

// StandingsHistory returns recent cached snapshots, newest first
func (h *ElectionHandler) StandingsHistory(c *gin.Context) {
	if h.cache == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "standings history is not enabled"})
		return
	}

	limit, ok := parseLimit(c, defaultHistoryLimit)
	if !ok {
		return
	}

	history, err := h.cache.History(c.Request.Context(), limit)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"history": history})
}

// CastVote records the authenticated voter's ballot
func (h *ElectionHandler) CastVote(c *gin.Context) {
	cnp, ok := middleware.GetVoterCNP(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var req castVoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "candidate_id is required"})
		return
	}

	candidate, err := h.election.CastVote(c.Request.Context(), cnp, req.CandidateID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"candidate": candidate})
}

// GenerateNews fabricates a new story for the authenticated voter
func (h *ElectionHandler) GenerateNews(c *gin.Context) {
	cnp, ok := middleware.GetVoterCNP(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	item, err := h.election.GenerateNews(c.Request.Context(), cnp)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"news": item})
}

// NewsFeed lists the authenticated voter's stories, newest first
func (h *ElectionHandler) NewsFeed(c *gin.Context) {
	cnp, ok := middleware.GetVoterCNP(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	limit, ok := parseLimit(c, election.DefaultFeedLimit)
	if !ok {
		return
	}

	items, err := h.election.NewsFeed(c.Request.Context(), cnp, limit)
	if err != nil {
		h.writeError(c, err)
		return
	}
	if items == nil {
		items = []models.NewsItem{}
	}
	c.JSON(http.StatusOK, gin.H{"news": items})
}

// RunSimulation recomputes every tally from the news each voter has seen
func (h *ElectionHandler) RunSimulation(c *gin.Context) {
	result, err := h.election.RunSimulation(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// Subscribe upgrades to a websocket that receives every standings change
func (h *ElectionHandler) Subscribe(c *gin.Context) {
	if h.live == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "live standings are not enabled"})
		return
	}
	h.live.ServeWS(c.Writer, c.Request, h.wsWriteTimeout)
}

func parseLimit(c *gin.Context, fallback int) (int, bool) {
	raw := c.Query("limit")
	if raw == "" {
		return fallback, true
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
		return 0, false
	}
	return limit, true
}

func (h *ElectionHandler) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domainerrors.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, domainerrors.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error(), "retryable": domainerrors.Retryable(err)})
	case errors.Is(err, domainerrors.ErrPreconditionFailed):
		c.JSON(http.StatusPreconditionFailed, gin.H{"error": err.Error()})
	case errors.Is(err, domainerrors.ErrExhaustedRetries):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error(), "retryable": domainerrors.Retryable(err)})
	default:
		h.logger.Error("request failed",
			zap.String("path", c.FullPath()),
			zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
