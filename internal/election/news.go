package election

import (
	"context"
	"errors"

	"github.com/google/uuid"
	domainerrors "github.com/terminal-bench/ballotbox/internal/domain/errors"
	"github.com/terminal-bench/ballotbox/internal/ledger"
	"github.com/terminal-bench/ballotbox/internal/models"
	"go.uber.org/zap"
)

// DefaultFeedLimit caps NewsFeed when the caller passes no limit
const DefaultFeedLimit = 100

// GenerateNews fabricates a story the voter has not seen before and stores it.
//
// The voter row stays locked from the duplicate scan until the insert, so two
// concurrent calls for one voter cannot both accept the same text.
func (s *Service) GenerateNews(ctx context.Context, voterCNP string) (*models.NewsItem, error) {
	var item *models.NewsItem
	attempts := 0

	err := s.store.WithTx(ctx, ledger.TxOptions{}, func(tx ledger.Tx) error {
		if _, err := tx.LockVoter(ctx, voterCNP); err != nil {
			return err
		}

		candidates, err := tx.Candidates(ctx)
		if err != nil {
			return err
		}
		if len(candidates) == 0 {
			return domainerrors.ErrNoCandidates
		}

		existing, err := tx.NewsByVoter(ctx, voterCNP)
		if err != nil {
			return err
		}

		for attempts < s.maxAttempts {
			attempts++

			sentiment := models.Sentiment(s.rand.Intn(2) == 0)
			candidate := candidates[s.rand.Intn(len(candidates))]
			templates := Templates(sentiment)
			text := Render(templates[s.rand.Intn(len(templates))], candidate.Name)

			if seen(existing, text) {
				continue
			}

			item = &models.NewsItem{
				ID:         uuid.New(),
				VoterCNP:   voterCNP,
				Candidate:  candidate.Name,
				IsPositive: bool(sentiment),
				Text:       text,
				CreatedAt:  s.now(),
			}
			return tx.InsertNews(ctx, item)
		}

		return domainerrors.ErrNewsExhausted
	})
	if err != nil {
		if errors.Is(err, domainerrors.ErrExhaustedRetries) {
			s.logger.Warn("news generation exhausted",
				zap.String("voter", voterCNP),
				zap.Int("attempts", attempts))
		} else {
			s.logger.Debug("news generation failed", zap.String("voter", voterCNP), zap.Error(err))
		}
		return nil, err
	}

	s.logger.Debug("news generated",
		zap.String("voter", voterCNP),
		zap.String("candidate", item.Candidate),
		zap.Bool("positive", item.IsPositive),
		zap.Int("attempts", attempts))
	return item, nil
}

// NewsFeed returns the voter's stories, newest first
func (s *Service) NewsFeed(ctx context.Context, voterCNP string, limit int) ([]models.NewsItem, error) {
	if limit <= 0 || limit > DefaultFeedLimit {
		limit = DefaultFeedLimit
	}
	return s.store.NewsFeed(ctx, voterCNP, limit)
}

func seen(existing []models.NewsItem, text string) bool {
	for _, n := range existing {
		if n.Text == text {
			return true
		}
	}
	return false
}
