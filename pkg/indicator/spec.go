package indicator

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/StudioSol/set"
)

var (
	ErrUnknownIndicator = errors.New("unknown indicator")
	ErrInvalidSpec      = errors.New("invalid indicator spec")
)

// Kind is the closed set of indicators the engine knows how to compute
type Kind string

const (
	KindSMA       Kind = "SMA"
	KindEMA       Kind = "EMA"
	KindBollinger Kind = "BOLLINGER"
	KindVWAP      Kind = "VWAP"
)

// Spec selects an indicator and its parameters
type Spec struct {
	Kind       Kind
	Window     int
	Multiplier float64
}

// Presets offered by the dashboard
var (
	SMA20       = Spec{Kind: KindSMA, Window: 20}
	EMA20       = Spec{Kind: KindEMA, Window: 20}
	Bollinger20 = Spec{Kind: KindBollinger, Window: 20, Multiplier: 2}
	VWAP        = Spec{Kind: KindVWAP}

	// DefaultSpecs is the selection used when none is configured
	DefaultSpecs = []Spec{SMA20}
)

var windowedName = regexp.MustCompile(`^(SMA|EMA|BOLLINGER)(\d+)$`)

// Name returns the display name of the indicator, e.g. SMA20 or VWAP
func (s Spec) Name() string {
	if s.Kind == KindVWAP {
		return string(KindVWAP)
	}
	return fmt.Sprintf("%s%d", s.Kind, s.Window)
}

// Warmup returns the number of bars needed before the first defined value
func (s Spec) Warmup() int {
	if s.Kind == KindVWAP {
		return 1
	}
	return s.Window
}

// Validate checks the parameters against the indicator kind
func (s Spec) Validate() error {
	switch s.Kind {
	case KindSMA, KindEMA:
		if s.Window < 1 {
			return fmt.Errorf("%w: %s window must be >= 1", ErrInvalidSpec, s.Kind)
		}
	case KindBollinger:
		if s.Window < 1 {
			return fmt.Errorf("%w: %s window must be >= 1", ErrInvalidSpec, s.Kind)
		}
		if s.Multiplier < 0 {
			return fmt.Errorf("%w: %s multiplier must be >= 0", ErrInvalidSpec, s.Kind)
		}
	case KindVWAP:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownIndicator, s.Kind)
	}
	return nil
}

// ParseSpec parses names like SMA20, EMA50, BOLLINGER20 or VWAP.
// Bollinger bands parsed by name use a multiplier of 2.
func ParseSpec(name string) (Spec, error) {
	name = strings.ToUpper(strings.TrimSpace(name))
	if name == string(KindVWAP) {
		return VWAP, nil
	}

	match := windowedName.FindStringSubmatch(name)
	if match == nil {
		return Spec{}, fmt.Errorf("%w: %q", ErrUnknownIndicator, name)
	}

	window, err := strconv.Atoi(match[2])
	if err != nil {
		return Spec{}, fmt.Errorf("%w: %q", ErrInvalidSpec, name)
	}

	spec := Spec{Kind: Kind(match[1]), Window: window}
	if spec.Kind == KindBollinger {
		spec.Multiplier = Bollinger20.Multiplier
	}

	return spec, spec.Validate()
}

// ParseSpecs parses a selection, dropping duplicates but keeping order.
// An empty selection yields DefaultSpecs.
func ParseSpecs(names []string) ([]Spec, error) {
	selection := set.NewLinkedHashSetString()
	for _, name := range names {
		if name = strings.ToUpper(strings.TrimSpace(name)); name != "" {
			selection.Add(name)
		}
	}

	specs := make([]Spec, 0, len(names))
	for name := range selection.Iter() {
		spec, err := ParseSpec(name)
		if err != nil {
			return nil, err
		}
		specs = append(specs, spec)
	}

	if len(specs) == 0 {
		return append([]Spec(nil), DefaultSpecs...), nil
	}

	return specs, nil
}
