package strategy

import (
	"fmt"
	"log/slog"
	"strconv"

	"github.com/shopspring/decimal"
)

// ComponentConfig selects one calculator variant plus its numeric
// parameters. Unknown types and malformed parameters fail at construction;
// the quoting loop never dispatches on strings.
type ComponentConfig struct {
	Type   string            `mapstructure:"type"`
	Params map[string]string `mapstructure:"params"`
}

// Config selects all five pipeline components.
type Config struct {
	Volatility  ComponentConfig `mapstructure:"volatility"`
	Reservation ComponentConfig `mapstructure:"reservation"`
	Skew        ComponentConfig `mapstructure:"skew"`
	Spread      ComponentConfig `mapstructure:"spread"`
	Sizer       ComponentConfig `mapstructure:"sizer"`
}

// New builds an Engine from configuration. All component types are resolved
// here, once, at startup.
func New(cfg Config, logger *slog.Logger) (*Engine, error) {
	estimator, err := newEstimator(cfg.Volatility)
	if err != nil {
		return nil, fmt.Errorf("volatility estimator: %w", err)
	}
	reservation, err := newReservation(cfg.Reservation)
	if err != nil {
		return nil, fmt.Errorf("reservation calculator: %w", err)
	}
	skew, err := newSkew(cfg.Skew)
	if err != nil {
		return nil, fmt.Errorf("skew calculator: %w", err)
	}
	spread, err := newSpread(cfg.Spread)
	if err != nil {
		return nil, fmt.Errorf("spread calculator: %w", err)
	}
	sizer, err := newSizer(cfg.Sizer)
	if err != nil {
		return nil, fmt.Errorf("quote sizer: %w", err)
	}

	return NewEngine(estimator, reservation, skew, spread, sizer, logger), nil
}

func newEstimator(cfg ComponentConfig) (VolatilityEstimator, error) {
	switch cfg.Type {
	case "fixed":
		vol, err := decimalParam(cfg.Params, "volatility", "0.1")
		if err != nil {
			return nil, err
		}
		return NewFixedVolatility(vol), nil
	case "ewma":
		alpha, err := decimalParam(cfg.Params, "alpha", "0.1")
		if err != nil {
			return nil, err
		}
		initial, err := decimalParam(cfg.Params, "initial_volatility", "0.1")
		if err != nil {
			return nil, err
		}
		minSamples, err := intParam(cfg.Params, "min_samples", "10")
		if err != nil {
			return nil, err
		}
		return NewEWMAVolatility(alpha, initial, minSamples), nil
	default:
		return nil, fmt.Errorf("unknown type %q", cfg.Type)
	}
}

func newReservation(cfg ComponentConfig) (ReservationCalculator, error) {
	switch cfg.Type {
	case "avellaneda_stoikov":
		gamma, err := decimalParam(cfg.Params, "gamma", "0.1")
		if err != nil {
			return nil, err
		}
		return AvellanedaStoikovReservation{Gamma: gamma}, nil
	default:
		return nil, fmt.Errorf("unknown type %q", cfg.Type)
	}
}

func newSkew(cfg ComponentConfig) (SkewCalculator, error) {
	switch cfg.Type {
	case "linear":
		intensity, err := decimalParam(cfg.Params, "intensity", "0.01")
		if err != nil {
			return nil, err
		}
		return LinearSkew{Intensity: intensity}, nil
	default:
		return nil, fmt.Errorf("unknown type %q", cfg.Type)
	}
}

func newSpread(cfg ComponentConfig) (SpreadCalculator, error) {
	switch cfg.Type {
	case "fixed":
		base, err := decimalParam(cfg.Params, "base_spread", "0.04")
		if err != nil {
			return nil, err
		}
		min, err := decimalParam(cfg.Params, "min_spread", "0.02")
		if err != nil {
			return nil, err
		}
		return FixedSpread{Base: base, Min: min}, nil
	case "avellaneda_stoikov":
		gamma, err := decimalParam(cfg.Params, "gamma", "0.1")
		if err != nil {
			return nil, err
		}
		k, err := decimalParam(cfg.Params, "k", "1.5")
		if err != nil {
			return nil, err
		}
		min, err := decimalParam(cfg.Params, "min_half_spread", "0.01")
		if err != nil {
			return nil, err
		}
		max, err := decimalParam(cfg.Params, "max_half_spread", "0.10")
		if err != nil {
			return nil, err
		}
		return AvellanedaStoikovSpread{Gamma: gamma, K: k, Min: min, Max: max}, nil
	default:
		return nil, fmt.Errorf("unknown type %q", cfg.Type)
	}
}

func newSizer(cfg ComponentConfig) (QuoteSizer, error) {
	switch cfg.Type {
	case "asymmetric":
		return AsymmetricSizer{}, nil
	default:
		return nil, fmt.Errorf("unknown type %q", cfg.Type)
	}
}

func decimalParam(params map[string]string, key, fallback string) (decimal.Decimal, error) {
	raw, ok := params[key]
	if !ok {
		raw = fallback
	}
	v, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("param %s: %w", key, err)
	}
	return v, nil
}

func intParam(params map[string]string, key, fallback string) (int, error) {
	raw, ok := params[key]
	if !ok {
		raw = fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("param %s: %w", key, err)
	}
	return v, nil
}
