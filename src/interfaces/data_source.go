package interfaces

import (
	"context"

	"marketfeed/src/models"
)

// IQuoteSource fetches raw ticks from an upstream provider. One Fetch call is
// one ingestion cycle; resilience (retry, breaker) wraps around it.
type IQuoteSource interface {
	Name() string
	Symbols() []string
	Fetch(ctx context.Context) ([]models.MTick, error)
}
