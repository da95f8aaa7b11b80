package ocipack

import (
	"fmt"
	"strings"

	"github.com/ocipack/ocipack/types"
)

// Strategy selects where payload bytes are referenced from within the manifest.
type Strategy int

const (
	StrategyUndef       Strategy = iota // undefined strategy is the invalid zero value
	StrategySingleLayer                 // StrategySingleLayer bundles every payload into one layer with an empty config
	StrategyConfig                      // StrategyConfig bundles every payload into the config blob with no layers
	StrategyPerItem                     // StrategyPerItem stores each payload as its own titled layer
	StrategySubject                     // StrategySubject builds with a base strategy and links the result to a subject manifest
)

func (s Strategy) MarshalText() ([]byte, error) {
	var ret string
	switch s {
	case StrategySingleLayer:
		ret = "single-layer"
	case StrategyConfig:
		ret = "config"
	case StrategyPerItem:
		ret = "per-item"
	case StrategySubject:
		ret = "subject"
	}
	if ret == "" {
		return []byte{}, fmt.Errorf("unknown strategy value %d%.0w", int(s), types.ErrStrategyInvalid)
	}
	return []byte(ret), nil
}

func (s *Strategy) UnmarshalText(b []byte) error {
	switch strings.ToLower(strings.TrimSpace(string(b))) {
	default:
		return fmt.Errorf("unknown strategy \"%s\"%.0w", b, types.ErrStrategyInvalid)
	case "single-layer", "a":
		*s = StrategySingleLayer
	case "config", "b":
		*s = StrategyConfig
	case "per-item", "c":
		*s = StrategyPerItem
	case "subject", "d":
		*s = StrategySubject
	}
	return nil
}

// String returns the selector name of the strategy, or "undef".
func (s Strategy) String() string {
	b, err := s.MarshalText()
	if err != nil {
		return "undef"
	}
	return string(b)
}

// ParseStrategy converts a selector such as "per-item" or "c" into a [Strategy].
func ParseStrategy(selector string) (Strategy, error) {
	var s Strategy
	err := s.UnmarshalText([]byte(selector))
	return s, err
}

// StrategyNames lists the selector names of every strategy.
func StrategyNames() []string {
	return []string{
		StrategySingleLayer.String(),
		StrategyConfig.String(),
		StrategyPerItem.String(),
		StrategySubject.String(),
	}
}
