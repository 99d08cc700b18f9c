package election

import (
	"context"
	"errors"

	domainerrors "github.com/terminal-bench/ballotbox/internal/domain/errors"
	"github.com/terminal-bench/ballotbox/internal/ledger"
	"github.com/terminal-bench/ballotbox/internal/models"
	"go.uber.org/zap"
)

// CastVote records the voter's single vote for candidateID.
//
// The voter row is locked before hasVoted is read, so concurrent casts for the same
// voter queue behind each other and only the first sees hasVoted == false.
func (s *Service) CastVote(ctx context.Context, voterCNP, candidateID string) (*models.Candidate, error) {
	var updated *models.Candidate

	err := s.store.WithTx(ctx, ledger.TxOptions{}, func(tx ledger.Tx) error {
		voter, err := tx.LockVoter(ctx, voterCNP)
		if err != nil {
			return err
		}
		if voter.HasVoted {
			return domainerrors.ErrAlreadyVoted
		}

		candidate, err := tx.AddVotes(ctx, candidateID, 1)
		if err != nil {
			return err
		}
		if err := tx.MarkVoted(ctx, voterCNP); err != nil {
			return err
		}

		updated = candidate
		return nil
	})
	if err != nil {
		if errors.Is(err, domainerrors.ErrAlreadyVoted) || errors.Is(err, domainerrors.ErrNotFound) {
			s.logger.Debug("vote rejected",
				zap.String("voter", voterCNP),
				zap.String("candidate", candidateID),
				zap.Error(err))
		} else {
			s.logger.Error("vote failed",
				zap.String("voter", voterCNP),
				zap.String("candidate", candidateID),
				zap.Error(err))
		}
		return nil, err
	}

	s.logger.Info("vote cast",
		zap.String("voter", voterCNP),
		zap.String("candidate", candidateID),
		zap.Int("votes", updated.Votes))

	s.refresh(ctx)
	return updated, nil
}
