package models

import (
	"time"

	"github.com/google/uuid"
)

// Sentiment is the polarity of a news item
type Sentiment bool

const (
	Positive Sentiment = true
	Negative Sentiment = false
)

// String returns "positive" or "negative"
func (s Sentiment) String() string {
	if s {
		return "positive"
	}
	return "negative"
}

// Weight is the score contribution of one news item
func (s Sentiment) Weight() int {
	if s {
		return 1
	}
	return -1
}

// NewsItem is a fabricated story shown to a single voter
type NewsItem struct {
	ID         uuid.UUID `json:"id" db:"id"`
	VoterCNP   string    `json:"voter_cnp" db:"voter_cnp"`
	Candidate  string    `json:"candidate" db:"candidate"`
	IsPositive bool      `json:"is_positive" db:"is_positive"`
	Text       string    `json:"news_text" db:"news_text"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

// Sentiment returns the item's polarity
func (n NewsItem) Sentiment() Sentiment {
	return Sentiment(n.IsPositive)
}
