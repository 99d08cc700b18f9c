package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/terminal-bench/ballotbox/internal/config"
	domainerrors "github.com/terminal-bench/ballotbox/internal/domain/errors"
	"github.com/terminal-bench/ballotbox/internal/models"
)

const uniqueViolation = "23505"

// Postgres is the lib/pq backed ledger
type Postgres struct {
	db *sql.DB
}

// NewPostgres opens and pings the database named by cfg.DatabaseURL
func NewPostgres(cfg *config.Config) (*Postgres, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is nil")
	}

	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Postgres{db: db}, nil
}

// NewPostgresWithDB wraps an already opened handle
func NewPostgresWithDB(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

// Migrate creates missing tables
func (p *Postgres) Migrate(ctx context.Context) error {
	if _, err := p.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

// Close closes the database connection
func (p *Postgres) Close() error {
	if p.db != nil {
		return p.db.Close()
	}
	return nil
}

// PoolStats returns the current connection pool statistics
func (p *Postgres) PoolStats() sql.DBStats {
	return p.db.Stats()
}

// WithTx runs fn inside a database transaction.
//
// Exclusive transactions run at REPEATABLE READ and take an EXCLUSIVE lock on
// candidates before their first read, so the snapshot starts after every in-flight
// vote has committed and no vote can commit until this transaction ends.
func (p *Postgres) WithTx(ctx context.Context, opts TxOptions, fn func(tx Tx) error) error {
	txOpts := &sql.TxOptions{}
	if opts.Exclusive {
		txOpts.Isolation = sql.LevelRepeatableRead
	}

	tx, err := p.db.BeginTx(ctx, txOpts)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	// no-op once committed; also covers a panicking fn
	defer tx.Rollback()

	if opts.Exclusive {
		if _, err := tx.ExecContext(ctx, "LOCK TABLE candidates IN EXCLUSIVE MODE"); err != nil {
			return fmt.Errorf("failed to lock candidates: %w", err)
		}
	}

	if err := fn(&pgTx{tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}

// Standings reads every candidate ordered for display
func (p *Postgres) Standings(ctx context.Context) ([]models.Candidate, error) {
	return queryCandidates(ctx, p.db, standingsQuery)
}

// NewsFeed returns a voter's news, newest first
func (p *Postgres) NewsFeed(ctx context.Context, voterCNP string, limit int) ([]models.NewsItem, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT id, voter_cnp, candidate, is_positive, news_text, created_at
		 FROM fake_news WHERE voter_cnp = $1 ORDER BY created_at DESC LIMIT $2`,
		voterCNP, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query news feed: %w", err)
	}
	defer rows.Close()
	return scanNews(rows)
}

const (
	candidateColumns = `id, name, party, description, image, votes`
	standingsQuery   = `SELECT ` + candidateColumns + ` FROM candidates ORDER BY votes DESC, name ASC`
)

// queryer is satisfied by both *sql.DB and *sql.Tx
type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func queryCandidates(ctx context.Context, q queryer, query string) ([]models.Candidate, error) {
	rows, err := q.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query candidates: %w", err)
	}
	defer rows.Close()

	var candidates []models.Candidate
	for rows.Next() {
		var c models.Candidate
		if err := rows.Scan(&c.ID, &c.Name, &c.Party, &c.Description, &c.Image, &c.Votes); err != nil {
			return nil, fmt.Errorf("failed to scan candidate: %w", err)
		}
		candidates = append(candidates, c)
	}
	return candidates, rows.Err()
}

func scanNews(rows *sql.Rows) ([]models.NewsItem, error) {
	var items []models.NewsItem
	for rows.Next() {
		var n models.NewsItem
		if err := rows.Scan(&n.ID, &n.VoterCNP, &n.Candidate, &n.IsPositive, &n.Text, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan news: %w", err)
		}
		items = append(items, n)
	}
	return items, rows.Err()
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}

type pgTx struct {
	tx *sql.Tx
}

func (t *pgTx) LockVoter(ctx context.Context, cnp string) (*models.Voter, error) {
	var v models.Voter
	err := t.tx.QueryRowContext(ctx,
		`SELECT cnp, password, has_voted FROM voters WHERE cnp = $1 FOR UPDATE`,
		cnp,
	).Scan(&v.CNP, &v.PasswordHash, &v.HasVoted)

	if err == sql.ErrNoRows {
		return nil, domainerrors.ErrVoterNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock voter: %w", err)
	}
	return &v, nil
}

func (t *pgTx) MarkVoted(ctx context.Context, cnp string) error {
	result, err := t.tx.ExecContext(ctx,
		`UPDATE voters SET has_voted = TRUE WHERE cnp = $1`,
		cnp,
	)
	if err != nil {
		return fmt.Errorf("failed to mark voter: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return domainerrors.ErrVoterNotFound
	}
	return nil
}

func (t *pgTx) InsertVoter(ctx context.Context, voter *models.Voter) error {
	_, err := t.tx.ExecContext(ctx,
		`INSERT INTO voters (cnp, password, has_voted) VALUES ($1, $2, $3)`,
		voter.CNP, voter.PasswordHash, voter.HasVoted,
	)
	if isUniqueViolation(err) {
		return domainerrors.ErrDuplicateVoter
	}
	if err != nil {
		return fmt.Errorf("failed to insert voter: %w", err)
	}
	return nil
}

func (t *pgTx) VoterIDs(ctx context.Context) ([]string, error) {
	rows, err := t.tx.QueryContext(ctx, `SELECT cnp FROM voters ORDER BY cnp`)
	if err != nil {
		return nil, fmt.Errorf("failed to query voters: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan voter: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (t *pgTx) AddVotes(ctx context.Context, id string, delta int) (*models.Candidate, error) {
	var c models.Candidate
	err := t.tx.QueryRowContext(ctx,
		`UPDATE candidates SET votes = votes + $1 WHERE id = $2 RETURNING `+candidateColumns,
		delta, id,
	).Scan(&c.ID, &c.Name, &c.Party, &c.Description, &c.Image, &c.Votes)

	if err == sql.ErrNoRows {
		return nil, domainerrors.ErrCandidateNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to add votes: %w", err)
	}
	return &c, nil
}

func (t *pgTx) Candidates(ctx context.Context) ([]models.Candidate, error) {
	return queryCandidates(ctx, t.tx, `SELECT `+candidateColumns+` FROM candidates ORDER BY id`)
}

func (t *pgTx) Standings(ctx context.Context) ([]models.Candidate, error) {
	return queryCandidates(ctx, t.tx, standingsQuery)
}

func (t *pgTx) ResetVotes(ctx context.Context) error {
	if _, err := t.tx.ExecContext(ctx, `UPDATE candidates SET votes = 0`); err != nil {
		return fmt.Errorf("failed to reset votes: %w", err)
	}
	return nil
}

func (t *pgTx) SetVotes(ctx context.Context, votes map[string]int) error {
	if len(votes) == 0 {
		return nil
	}

	ids := make([]string, 0, len(votes))
	counts := make([]int64, 0, len(votes))
	for id, n := range votes {
		ids = append(ids, id)
		counts = append(counts, int64(n))
	}

	result, err := t.tx.ExecContext(ctx,
		`UPDATE candidates AS c SET votes = v.votes
		 FROM (SELECT UNNEST($1::text[]) AS id, UNNEST($2::bigint[]) AS votes) AS v
		 WHERE c.id = v.id`,
		pq.Array(ids), pq.Array(counts),
	)
	if err != nil {
		return fmt.Errorf("failed to write votes: %w", err)
	}
	if n, _ := result.RowsAffected(); int(n) != len(votes) {
		return fmt.Errorf("failed to write votes: %d of %d rows updated: %w", n, len(votes), domainerrors.ErrCandidateNotFound)
	}
	return nil
}

func (t *pgTx) NewsByVoter(ctx context.Context, cnp string) ([]models.NewsItem, error) {
	rows, err := t.tx.QueryContext(ctx,
		`SELECT id, voter_cnp, candidate, is_positive, news_text, created_at
		 FROM fake_news WHERE voter_cnp = $1 ORDER BY created_at, id`,
		cnp,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query news: %w", err)
	}
	defer rows.Close()
	return scanNews(rows)
}

func (t *pgTx) InsertNews(ctx context.Context, item *models.NewsItem) error {
	_, err := t.tx.ExecContext(ctx,
		`INSERT INTO fake_news (id, voter_cnp, candidate, is_positive, news_text, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		item.ID, item.VoterCNP, item.Candidate, item.IsPositive, item.Text, item.CreatedAt,
	)
	if isUniqueViolation(err) {
		return domainerrors.ErrDuplicateNews
	}
	if err != nil {
		return fmt.Errorf("failed to insert news: %w", err)
	}
	return nil
}
