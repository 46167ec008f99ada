package idgen

import (
	"fmt"
	"strings"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

const (
	DefaultNanoIDSize     = 21
	DefaultNanoIDAlphabet = "_-0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"
)

// NanoID generates compact random ids over a configurable alphabet.
type NanoID struct {
	size     int
	alphabet string
}

// NewNanoID creates a NanoID generator. size must be between 1 and 256 and
// alphabet must have at least 2 characters.
func NewNanoID(size int, alphabet string) (*NanoID, error) {
	if size < 1 || size > 256 {
		return nil, fmt.Errorf("nanoid size must be between 1 and 256, got %d", size)
	}
	if len(alphabet) < 2 {
		return nil, fmt.Errorf("nanoid alphabet must have at least 2 characters, got %d", len(alphabet))
	}
	return &NanoID{size: size, alphabet: alphabet}, nil
}

func (g *NanoID) Name() string { return StrategyNanoID }

func (g *NanoID) Generate() (string, error) {
	id, err := gonanoid.Generate(g.alphabet, g.size)
	if err != nil {
		return "", fmt.Errorf("failed to generate NanoID: %w", err)
	}
	return id, nil
}

func (g *NanoID) Validate(id string) error {
	if len(id) != g.size {
		return fmt.Errorf("expected length %d, got %d", g.size, len(id))
	}
	for _, c := range id {
		if !strings.ContainsRune(g.alphabet, c) {
			return fmt.Errorf("character '%c' not in alphabet", c)
		}
	}
	return nil
}
