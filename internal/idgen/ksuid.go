package idgen

import (
	"fmt"

	"github.com/segmentio/ksuid"
)

// KSUID generates K-sortable ids: lexical order follows creation second.
type KSUID struct{}

func NewKSUID() *KSUID {
	return &KSUID{}
}

func (g *KSUID) Name() string { return StrategyKSUID }

func (g *KSUID) Generate() (string, error) {
	id, err := ksuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("failed to generate KSUID: %w", err)
	}
	return id.String(), nil
}

func (g *KSUID) Validate(id string) error {
	if len(id) != 27 {
		return fmt.Errorf("expected length 27, got %d", len(id))
	}
	if _, err := ksuid.Parse(id); err != nil {
		return fmt.Errorf("invalid KSUID format: %w", err)
	}
	return nil
}
