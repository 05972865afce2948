package usecase

import (
	"context"
	"errors"
	"fmt"

	"portfolio-chat/internal/domain"
)

// ErrGeneratorUnavailable is returned by UnavailableGenerator.
var ErrGeneratorUnavailable = errors.New("usecase: response generator unavailable")

// UnavailableGenerator stands in for a generator whose configuration could
// not be completed at startup. Every call fails, so chat replies degrade to
// ApologyMessage while canned intents keep working.
type UnavailableGenerator struct {
	Reason error
}

func (g UnavailableGenerator) Generate(context.Context, string) (string, error) {
	return "", g.err()
}

func (g UnavailableGenerator) GenerateMessages(context.Context, []domain.ChatMessage) (string, error) {
	return "", g.err()
}

func (g UnavailableGenerator) err() error {
	if g.Reason == nil {
		return ErrGeneratorUnavailable
	}
	return fmt.Errorf("%w: %v", ErrGeneratorUnavailable, g.Reason)
}
