// Package idgen generates identifiers for messages, rooms and attachments.
package idgen

import (
	"fmt"
	"strings"
)

// Strategy names accepted by New.
const (
	StrategyKSUID  = "ksuid"
	StrategyULID   = "ulid"
	StrategyUUID   = "uuid"
	StrategyNanoID = "nanoid"
	StrategyCUID2  = "cuid2"
)

// Generator produces unique string identifiers.
type Generator interface {
	Generate() (string, error)
	Validate(id string) error
	Name() string
}

// New returns the generator for the given strategy. An empty strategy
// selects KSUID, whose ids sort by creation time.
func New(strategy string) (Generator, error) {
	switch strings.ToLower(strategy) {
	case "", StrategyKSUID:
		return NewKSUID(), nil
	case StrategyULID:
		return NewULID(), nil
	case StrategyUUID:
		return NewUUID(), nil
	case StrategyNanoID:
		return NewNanoID(DefaultNanoIDSize, DefaultNanoIDAlphabet)
	case StrategyCUID2:
		return NewCUID2(DefaultCUID2Length)
	default:
		return nil, fmt.Errorf("unknown id strategy: %s", strategy)
	}
}

// MustGenerate calls Generate and panics on failure. Only the random source
// can fail, which leaves the process unable to do anything useful.
func MustGenerate(g Generator) string {
	id, err := g.Generate()
	if err != nil {
		panic(err)
	}
	return id
}
