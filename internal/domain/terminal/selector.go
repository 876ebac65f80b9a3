package terminal

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/termstream/internal/infrastructure/logging"
	"github.com/GriffinCanCode/termstream/internal/infrastructure/resilience"
)

// Selection strategies. "auto" tries native first and falls back.
const (
	SelectAuto       = "auto"
	SelectNative     = "native"
	SelectSubprocess = "subprocess"
)

// nativeTripThreshold is how many consecutive native spawn failures open
// the circuit so later sessions skip straight to the fallback.
const nativeTripThreshold = 3

// Config controls backend selection and spawn defaults.
type Config struct {
	Strategy    string // "auto", "native", or "subprocess"
	Shell       string
	DefaultCols uint16
	DefaultRows uint16
}

// Result describes the backend chosen for one session. FallbackReason is
// set only when the subprocess backend replaced an unavailable native one.
type Result struct {
	Backend        Backend
	Strategy       Strategy
	FallbackReason string
}

// spawnFunc abstracts backend construction so tests can force failures.
type spawnFunc func(opts Options, log *logging.Logger) (Backend, error)

// Selector picks a backend per session: native pty first, subprocess when
// the pty path is unavailable. Backend unavailability is always recoverable
// via fallback; only a malformed configuration is an error.
type Selector struct {
	cfg     Config
	log     *logging.Logger
	breaker *resilience.Breaker

	spawnNative     spawnFunc
	spawnSubprocess spawnFunc
}

// NewSelector validates cfg and builds a selector. Repeated native spawn
// failures open a circuit breaker so sessions keep starting fast instead of
// re-probing a broken pty path on every create.
func NewSelector(cfg Config, log *logging.Logger) (*Selector, error) {
	switch cfg.Strategy {
	case SelectAuto, SelectNative, SelectSubprocess:
	default:
		return nil, fmt.Errorf("invalid terminal strategy %q: must be %q, %q, or %q",
			cfg.Strategy, SelectAuto, SelectNative, SelectSubprocess)
	}
	if cfg.DefaultCols == 0 {
		cfg.DefaultCols = DefaultCols
	}
	if cfg.DefaultRows == 0 {
		cfg.DefaultRows = DefaultRows
	}

	s := &Selector{
		cfg: cfg,
		log: log,
		spawnNative: func(opts Options, log *logging.Logger) (Backend, error) {
			b, err := NewNative(opts, log)
			if err != nil {
				return nil, err
			}
			return b, nil
		},
		spawnSubprocess: func(opts Options, log *logging.Logger) (Backend, error) {
			b, err := NewSubprocess(opts, log)
			if err != nil {
				return nil, err
			}
			return b, nil
		},
	}
	s.breaker = resilience.New("native-spawn", resilience.Settings{
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts resilience.Counts) bool {
			return counts.ConsecutiveFailures >= nativeTripThreshold
		},
		OnStateChange: func(name string, from, to resilience.State) {
			log.Warn("spawn breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})
	return s, nil
}

// Spawn creates a backend for one session according to the configured
// strategy, filling in shell and size defaults.
func (s *Selector) Spawn(opts Options) (*Result, error) {
	opts = s.applyDefaults(opts)

	switch s.cfg.Strategy {
	case SelectNative:
		b, err := s.spawnNative(opts, s.log)
		if err != nil {
			return nil, fmt.Errorf("native backend (forced): %w", err)
		}
		return &Result{Backend: b, Strategy: StrategyNative}, nil

	case SelectSubprocess:
		b, err := s.spawnSubprocess(opts, s.log)
		if err != nil {
			return nil, fmt.Errorf("subprocess backend (forced): %w", err)
		}
		return &Result{Backend: b, Strategy: StrategySubprocess}, nil
	}

	// Auto: native first, subprocess on any native failure.
	var native Backend
	err := s.breaker.Execute(func() error {
		b, spawnErr := s.spawnNative(opts, s.log)
		if spawnErr != nil {
			return spawnErr
		}
		native = b
		return nil
	})
	if err == nil {
		return &Result{Backend: native, Strategy: StrategyNative}, nil
	}

	reason := fallbackReason(err)
	s.log.Warn("native backend unavailable, falling back to subprocess",
		zap.String("reason", reason),
		zap.Error(err),
	)

	b, err := s.spawnSubprocess(opts, s.log)
	if err != nil {
		return nil, fmt.Errorf("subprocess fallback: %w", err)
	}
	return &Result{Backend: b, Strategy: StrategySubprocess, FallbackReason: reason}, nil
}

func (s *Selector) applyDefaults(opts Options) Options {
	if opts.Shell == "" {
		opts.Shell = s.cfg.Shell
	}
	if opts.Cols == 0 {
		opts.Cols = s.cfg.DefaultCols
	}
	if opts.Rows == 0 {
		opts.Rows = s.cfg.DefaultRows
	}
	return opts
}

// fallbackReason renders a native failure as the human-readable reason
// reported to clients.
func fallbackReason(err error) string {
	if errors.Is(err, resilience.ErrCircuitOpen) || errors.Is(err, resilience.ErrTooManyRequests) {
		return "native backend unavailable (circuit open)"
	}
	return fmt.Sprintf("native pty unavailable: %v", err)
}
