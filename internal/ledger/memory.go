package ledger

import (
	"context"
	"errors"
	"sort"
	"sync"

	domainerrors "github.com/terminal-bench/ballotbox/internal/domain/errors"
	"github.com/terminal-bench/ballotbox/internal/models"
)

var errTxClosed = errors.New("transaction already finished")

// Memory is an in-process ledger. Transactions are fully serialized: one mutex is
// held from the start of WithTx until commit or rollback, and a rollback restores
// the state captured when the transaction began.
type Memory struct {
	mu         sync.Mutex
	candidates map[string]models.Candidate
	voters     map[string]models.Voter
	news       []models.NewsItem
}

// NewMemory creates an empty in-memory ledger
func NewMemory() *Memory {
	return &Memory{
		candidates: make(map[string]models.Candidate),
		voters:     make(map[string]models.Voter),
	}
}

// AddCandidate inserts or replaces a candidate outside of any transaction.
// Candidate management is owned by the admin surface, not the election core.
func (m *Memory) AddCandidate(c models.Candidate) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.candidates[c.ID] = c
}

// AddVoter inserts or replaces a voter outside of any transaction
func (m *Memory) AddVoter(v models.Voter) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.voters[v.CNP] = v
}

// AddNews appends a news item outside of any transaction
func (m *Memory) AddNews(item models.NewsItem) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.news = append(m.news, item)
}

// Voter returns a copy of a voter row
func (m *Memory) Voter(cnp string) (models.Voter, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.voters[cnp]
	return v, ok
}

// WithTx runs fn while holding the store lock. State is restored from a copy when fn
// returns an error or panics.
func (m *Memory) WithTx(ctx context.Context, opts TxOptions, fn func(tx Tx) error) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	saved := m.snapshot()
	tx := &memTx{m: m}

	defer func() {
		tx.done = true
		if r := recover(); r != nil {
			m.restore(saved)
			panic(r)
		}
		if err != nil {
			m.restore(saved)
		}
	}()

	return fn(tx)
}

// Standings returns every candidate ordered by votes desc, name asc
func (m *Memory) Standings(ctx context.Context) ([]models.Candidate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.standings(), nil
}

// NewsFeed returns up to limit of the voter's news, newest first
func (m *Memory) NewsFeed(ctx context.Context, voterCNP string, limit int) ([]models.NewsItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var items []models.NewsItem
	for i := len(m.news) - 1; i >= 0 && len(items) < limit; i-- {
		if m.news[i].VoterCNP == voterCNP {
			items = append(items, m.news[i])
		}
	}
	return items, nil
}

// Close is a no-op
func (m *Memory) Close() error {
	return nil
}

type memState struct {
	candidates map[string]models.Candidate
	voters     map[string]models.Voter
	news       []models.NewsItem
}

func (m *Memory) snapshot() memState {
	s := memState{
		candidates: make(map[string]models.Candidate, len(m.candidates)),
		voters:     make(map[string]models.Voter, len(m.voters)),
		news:       append([]models.NewsItem(nil), m.news...),
	}
	for k, v := range m.candidates {
		s.candidates[k] = v
	}
	for k, v := range m.voters {
		s.voters[k] = v
	}
	return s
}

func (m *Memory) restore(s memState) {
	m.candidates = s.candidates
	m.voters = s.voters
	m.news = s.news
}

func (m *Memory) standings() []models.Candidate {
	out := make([]models.Candidate, 0, len(m.candidates))
	for _, c := range m.candidates {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Votes != out[j].Votes {
			return out[i].Votes > out[j].Votes
		}
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// memTx operates on the ledger while WithTx holds its mutex
type memTx struct {
	m    *Memory
	done bool
}

func (t *memTx) check(ctx context.Context) error {
	if t.done {
		return errTxClosed
	}
	return ctx.Err()
}

func (t *memTx) LockVoter(ctx context.Context, cnp string) (*models.Voter, error) {
	if err := t.check(ctx); err != nil {
		return nil, err
	}
	v, ok := t.m.voters[cnp]
	if !ok {
		return nil, domainerrors.ErrVoterNotFound
	}
	return &v, nil
}

func (t *memTx) MarkVoted(ctx context.Context, cnp string) error {
	if err := t.check(ctx); err != nil {
		return err
	}
	v, ok := t.m.voters[cnp]
	if !ok {
		return domainerrors.ErrVoterNotFound
	}
	v.HasVoted = true
	t.m.voters[cnp] = v
	return nil
}

func (t *memTx) InsertVoter(ctx context.Context, voter *models.Voter) error {
	if err := t.check(ctx); err != nil {
		return err
	}
	if _, exists := t.m.voters[voter.CNP]; exists {
		return domainerrors.ErrDuplicateVoter
	}
	t.m.voters[voter.CNP] = *voter
	return nil
}

func (t *memTx) VoterIDs(ctx context.Context) ([]string, error) {
	if err := t.check(ctx); err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(t.m.voters))
	for id := range t.m.voters {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (t *memTx) AddVotes(ctx context.Context, id string, delta int) (*models.Candidate, error) {
	if err := t.check(ctx); err != nil {
		return nil, err
	}
	c, ok := t.m.candidates[id]
	if !ok {
		return nil, domainerrors.ErrCandidateNotFound
	}
	c.Votes += delta
	t.m.candidates[id] = c
	return &c, nil
}

func (t *memTx) Candidates(ctx context.Context) ([]models.Candidate, error) {
	if err := t.check(ctx); err != nil {
		return nil, err
	}
	out := make([]models.Candidate, 0, len(t.m.candidates))
	for _, c := range t.m.candidates {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (t *memTx) Standings(ctx context.Context) ([]models.Candidate, error) {
	if err := t.check(ctx); err != nil {
		return nil, err
	}
	return t.m.standings(), nil
}

func (t *memTx) ResetVotes(ctx context.Context) error {
	if err := t.check(ctx); err != nil {
		return err
	}
	for id, c := range t.m.candidates {
		c.Votes = 0
		t.m.candidates[id] = c
	}
	return nil
}

func (t *memTx) SetVotes(ctx context.Context, votes map[string]int) error {
	if err := t.check(ctx); err != nil {
		return err
	}
	for id := range votes {
		if _, ok := t.m.candidates[id]; !ok {
			return domainerrors.ErrCandidateNotFound
		}
	}
	for id, n := range votes {
		c := t.m.candidates[id]
		c.Votes = n
		t.m.candidates[id] = c
	}
	return nil
}

func (t *memTx) NewsByVoter(ctx context.Context, cnp string) ([]models.NewsItem, error) {
	if err := t.check(ctx); err != nil {
		return nil, err
	}
	var items []models.NewsItem
	for _, n := range t.m.news {
		if n.VoterCNP == cnp {
			items = append(items, n)
		}
	}
	return items, nil
}

func (t *memTx) InsertNews(ctx context.Context, item *models.NewsItem) error {
	if err := t.check(ctx); err != nil {
		return err
	}
	if _, ok := t.m.voters[item.VoterCNP]; !ok {
		return domainerrors.ErrVoterNotFound
	}
	for _, n := range t.m.news {
		if n.VoterCNP == item.VoterCNP && n.Text == item.Text {
			return domainerrors.ErrDuplicateNews
		}
	}
	t.m.news = append(t.m.news, *item)
	return nil
}
