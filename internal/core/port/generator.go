package port

import (
	"context"

	"github.com/guillermoBallester/audiencelens/internal/core/domain"
)

// SQLGenerator turns a natural-language audience description into SQL
// text. Implementations must not retry; the caller decides what to do with
// a failure.
type SQLGenerator interface {
	Generate(ctx context.Context, prompt string, pol domain.Policy) (string, error)
}
