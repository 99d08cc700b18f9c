package election

import (
	"context"
	"strings"

	"github.com/terminal-bench/ballotbox/internal/ledger"
	"github.com/terminal-bench/ballotbox/internal/models"
	"go.uber.org/zap"
)

// SeedResult reports a SeedVoters run
type SeedResult struct {
	CNPs     []string
	Attempts int
}

// SeedVoters registers up to n voters with random CNPs sharing passwordHash, all in
// one transaction. It draws at most 2n identifiers, so fewer than n voters may be
// created when draws collide with existing ones.
func (s *Service) SeedVoters(ctx context.Context, n int, passwordHash string) (*SeedResult, error) {
	if n <= 0 {
		return &SeedResult{}, nil
	}
	result := &SeedResult{}

	err := s.store.WithTx(ctx, ledger.TxOptions{}, func(tx ledger.Tx) error {
		existing, err := tx.VoterIDs(ctx)
		if err != nil {
			return err
		}
		taken := make(map[string]struct{}, len(existing)+n)
		for _, cnp := range existing {
			taken[cnp] = struct{}{}
		}

		result.CNPs = result.CNPs[:0]
		result.Attempts = 0
		for len(result.CNPs) < n && result.Attempts < 2*n {
			result.Attempts++
			cnp := s.randomCNP()
			if _, dup := taken[cnp]; dup {
				continue
			}

			// a concurrent registration aborts the whole batch
			if err := tx.InsertVoter(ctx, &models.Voter{CNP: cnp, PasswordHash: passwordHash}); err != nil {
				return err
			}
			taken[cnp] = struct{}{}
			result.CNPs = append(result.CNPs, cnp)
		}
		return nil
	})
	if err != nil {
		s.logger.Error("voter seeding failed", zap.Error(err))
		return nil, err
	}

	if len(result.CNPs) < n {
		s.logger.Warn("could not generate every requested voter",
			zap.Int("requested", n),
			zap.Int("created", len(result.CNPs)),
			zap.Int("attempts", result.Attempts))
	}
	return result, nil
}

func (s *Service) randomCNP() string {
	var b strings.Builder
	b.Grow(models.CNPLength)
	for i := 0; i < models.CNPLength; i++ {
		b.WriteByte(byte('0' + s.rand.Intn(10)))
	}
	return b.String()
}
