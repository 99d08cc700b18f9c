package election

import (
	"context"
	"sort"
	"time"

	domainerrors "github.com/terminal-bench/ballotbox/internal/domain/errors"
	"github.com/terminal-bench/ballotbox/internal/ledger"
	"github.com/terminal-bench/ballotbox/internal/models"
	"go.uber.org/zap"
)

// SimulationResult is what RunSimulation reports and publishes
type SimulationResult struct {
	Finalists  []models.Finalist `json:"finalists"`
	Voters     int               `json:"voters"`
	Abstained  int               `json:"abstained"`
	VotesCast  int               `json:"votes_cast"`
	FinishedAt time.Time         `json:"finished_at"`
}

// RunSimulation throws away every tally and recomputes them from the news each voter
// has been shown, then reports the two leading candidates.
//
// It runs on a context detached from the caller: once started it either commits or
// rolls back as a whole.
func (s *Service) RunSimulation(ctx context.Context) (*SimulationResult, error) {
	ctx = context.WithoutCancel(ctx)
	start := time.Now()
	result := &SimulationResult{}

	err := s.store.WithTx(ctx, ledger.TxOptions{Exclusive: true}, func(tx ledger.Tx) error {
		candidates, err := tx.Candidates(ctx)
		if err != nil {
			return err
		}
		if len(candidates) == 0 {
			return domainerrors.ErrNoCandidates
		}

		voters, err := tx.VoterIDs(ctx)
		if err != nil {
			return err
		}
		if len(voters) == 0 {
			return domainerrors.ErrNoVoters
		}

		ids := candidateIDsByName(candidates)

		if err := tx.ResetVotes(ctx); err != nil {
			return err
		}

		aggregate := make(map[string]int)
		abstained := 0
		for _, cnp := range voters {
			news, err := tx.NewsByVoter(ctx, cnp)
			if err != nil {
				return err
			}
			name, ok := Favourite(Score(news, ids), s.rand)
			if !ok {
				abstained++
				continue
			}
			aggregate[ids[name]]++
		}

		if err := tx.SetVotes(ctx, aggregate); err != nil {
			return err
		}

		standings, err := tx.Standings(ctx)
		if err != nil {
			return err
		}

		result.Voters = len(voters)
		result.Abstained = abstained
		result.VotesCast = len(voters) - abstained
		result.Finalists = finalists(standings)
		return nil
	})
	if err != nil {
		s.logger.Error("simulation failed", zap.Error(err), zap.Duration("elapsed", time.Since(start)))
		return nil, err
	}
	result.FinishedAt = s.now()

	s.logger.Info("simulation completed",
		zap.Int("voters", result.Voters),
		zap.Int("abstained", result.Abstained),
		zap.Any("finalists", result.Finalists),
		zap.Duration("elapsed", time.Since(start)))

	s.refresh(ctx)
	if s.publisher != nil {
		if err := s.publisher.Publish(ctx, SubjectSimulationCompleted, result); err != nil {
			s.logger.Warn("failed to publish simulation result", zap.Error(err))
		}
	}
	return result, nil
}

// Score sums +1/-1 per news item for each candidate the voter has read about.
// Names missing from known are skipped: a candidate that no longer exists cannot
// receive a vote.
func Score(news []models.NewsItem, known map[string]string) map[string]int {
	scores := make(map[string]int)
	for _, n := range news {
		if _, ok := known[n.Candidate]; !ok {
			continue
		}
		scores[n.Candidate] += n.Sentiment().Weight()
	}
	return scores
}

// Favourite picks the candidate with the highest strictly positive score. Ties are
// broken by a uniform draw over the tied names in name order. ok is false when the
// voter abstains.
func Favourite(scores map[string]int, r Rand) (name string, ok bool) {
	best := 0
	var tied []string
	for candidate, score := range scores {
		switch {
		case score > best:
			best = score
			tied = append(tied[:0], candidate)
		case score == best && score > 0:
			tied = append(tied, candidate)
		}
	}
	if len(tied) == 0 {
		return "", false
	}
	if len(tied) == 1 {
		return tied[0], true
	}
	sort.Strings(tied)
	return tied[r.Intn(len(tied))], true
}

// candidateIDsByName maps display names to ids. News refers to candidates by name;
// when two candidates share a name the lowest id wins.
func candidateIDsByName(candidates []models.Candidate) map[string]string {
	ids := make(map[string]string, len(candidates))
	for _, c := range candidates {
		if existing, ok := ids[c.Name]; !ok || c.ID < existing {
			ids[c.Name] = c.ID
		}
	}
	return ids
}

func finalists(standings []models.Candidate) []models.Finalist {
	n := len(standings)
	if n > 2 {
		n = 2
	}
	out := make([]models.Finalist, 0, n)
	for _, c := range standings[:n] {
		out = append(out, models.Finalist{Name: c.Name, Votes: c.Votes})
	}
	return out
}
