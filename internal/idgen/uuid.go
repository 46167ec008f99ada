package idgen

import (
	"fmt"

	"github.com/google/uuid"
)

// UUID generates random version 4 UUIDs.
type UUID struct{}

func NewUUID() *UUID {
	return &UUID{}
}

func (g *UUID) Name() string { return StrategyUUID }

func (g *UUID) Generate() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("failed to generate UUID: %w", err)
	}
	return id.String(), nil
}

func (g *UUID) Validate(id string) error {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return fmt.Errorf("invalid UUID format: %w", err)
	}
	if parsed.Version() != 4 {
		return fmt.Errorf("expected UUID version 4, got %d", parsed.Version())
	}
	return nil
}
