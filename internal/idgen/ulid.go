package idgen

import (
	"crypto/rand"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
)

// ULID generates lexicographically sortable ids with millisecond precision.
type ULID struct{}

func NewULID() *ULID {
	return &ULID{}
}

func (g *ULID) Name() string { return StrategyULID }

func (g *ULID) Generate() (string, error) {
	id, err := ulid.New(ulid.Timestamp(time.Now()), rand.Reader)
	if err != nil {
		return "", fmt.Errorf("failed to generate ULID: %w", err)
	}
	return id.String(), nil
}

func (g *ULID) Validate(id string) error {
	if len(id) != ulid.EncodedSize {
		return fmt.Errorf("expected length %d, got %d", ulid.EncodedSize, len(id))
	}
	if _, err := ulid.Parse(id); err != nil {
		return fmt.Errorf("invalid ULID format: %w", err)
	}
	return nil
}
