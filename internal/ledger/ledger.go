package ledger

import (
	"context"

	"github.com/terminal-bench/ballotbox/internal/models"
)

// TxOptions controls the isolation of a ledger transaction
type TxOptions struct {
	// Exclusive blocks every concurrent candidate write for the lifetime of the
	// transaction and reads from a single snapshot.
	Exclusive bool
}

// Store is the durable home of candidates, voters and news items.
//
// Every mutation goes through WithTx. fn runs with exclusive access to the rows it
// locks; a nil return commits, an error or panic rolls back and the error is
// returned unchanged so callers can match it with errors.Is.
type Store interface {
	WithTx(ctx context.Context, opts TxOptions, fn func(tx Tx) error) error

	// Standings returns every candidate ordered by votes desc, name asc
	Standings(ctx context.Context) ([]models.Candidate, error)
	// NewsFeed returns a voter's news, newest first
	NewsFeed(ctx context.Context, voterCNP string, limit int) ([]models.NewsItem, error)

	Close() error
}

// Tx is the set of primitives available inside a transaction
type Tx interface {
	// LockVoter reads a voter row and holds it until the transaction ends
	LockVoter(ctx context.Context, cnp string) (*models.Voter, error)
	MarkVoted(ctx context.Context, cnp string) error
	InsertVoter(ctx context.Context, voter *models.Voter) error
	VoterIDs(ctx context.Context) ([]string, error)

	// AddVotes changes a tally and holds the candidate row until the transaction ends
	AddVotes(ctx context.Context, id string, delta int) (*models.Candidate, error)
	Candidates(ctx context.Context) ([]models.Candidate, error)
	Standings(ctx context.Context) ([]models.Candidate, error)
	ResetVotes(ctx context.Context) error
	// SetVotes writes absolute tallies for the given candidate ids in one batch
	SetVotes(ctx context.Context, votes map[string]int) error

	// NewsByVoter returns a voter's news in creation order
	NewsByVoter(ctx context.Context, cnp string) ([]models.NewsItem, error)
	InsertNews(ctx context.Context, item *models.NewsItem) error
}
