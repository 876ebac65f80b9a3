// Package id provides centralized ID generation for the terminal service.
//
// This package offers type-safe ULID generation with:
//   - Lexicographic sortability: session listings sort by creation time for free
//   - Prefixed types: type-specific prefixes for debugging (term_*, conn_*, req_*)
//   - Type safety: separate types prevent ID misuse
//   - Performance: one mutex around the entropy source, ~2μs per ULID
//
// Design Principles:
//   - ULIDs only: single ID format across the whole service
//   - Debuggable: prefixes make logs readable
//   - Zero conflicts: guaranteed uniqueness across transports
package id

import (
	"crypto/rand"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// ============================================================================
// Type-Safe ID Wrappers
// ============================================================================

// TerminalID identifies a terminal session
type TerminalID string

// ConnectionID identifies a transport connection (WebSocket or in-process)
type ConnectionID string

// RequestID identifies an API request
type RequestID string

// ============================================================================
// ID Prefixes (for debugging and type identification)
// ============================================================================

const (
	TerminalPrefix   = "term"
	ConnectionPrefix = "conn"
	RequestPrefix    = "req"
)

// ============================================================================
// ULID Generator
// ============================================================================

// Generator generates ULIDs with optional prefixes
type Generator struct {
	entropy   io.Reader
	entropyMu sync.Mutex // Protects entropy reader
}

var (
	// Default generator with cryptographically secure entropy
	defaultGenerator *Generator
	once             sync.Once
)

// Default returns the singleton generator instance
func Default() *Generator {
	once.Do(func() {
		defaultGenerator = NewGenerator()
	})
	return defaultGenerator
}

// NewGenerator creates a new ULID generator
func NewGenerator() *Generator {
	return &Generator{
		entropy: rand.Reader,
	}
}

// NewGeneratorWithEntropy creates a generator with custom entropy source
// Useful for testing with deterministic entropy
func NewGeneratorWithEntropy(entropy io.Reader) *Generator {
	return &Generator{
		entropy: entropy,
	}
}

// Generate creates a new ULID
func (g *Generator) Generate() ulid.ULID {
	g.entropyMu.Lock()
	defer g.entropyMu.Unlock()

	return ulid.MustNew(ulid.Timestamp(time.Now()), g.entropy)
}

// GenerateString creates a new ULID as a string
func (g *Generator) GenerateString() string {
	return g.Generate().String()
}

// GenerateWithPrefix creates a prefixed ULID string
func (g *Generator) GenerateWithPrefix(prefix string) string {
	return fmt.Sprintf("%s_%s", prefix, g.GenerateString())
}

// ============================================================================
// Typed ID Generators
// ============================================================================

// NewTerminalID generates a new terminal session ID
func NewTerminalID() TerminalID {
	return TerminalID(Default().GenerateWithPrefix(TerminalPrefix))
}

// NewConnectionID generates a new transport connection ID
func NewConnectionID() ConnectionID {
	return ConnectionID(Default().GenerateWithPrefix(ConnectionPrefix))
}

// NewRequestID generates a new request ID
func NewRequestID() RequestID {
	return RequestID(Default().GenerateWithPrefix(RequestPrefix))
}

// ============================================================================
// Type Conversion and Validation
// ============================================================================

// String methods for ID types
func (id TerminalID) String() string   { return string(id) }
func (id ConnectionID) String() string { return string(id) }
func (id RequestID) String() string    { return string(id) }

// IsValid checks if an ID string is a valid ULID
func IsValid(id string) bool {
	_, err := ulid.Parse(id)
	return err == nil
}

// Parse parses a ULID string
func Parse(id string) (ulid.ULID, error) {
	return ulid.Parse(id)
}

// Timestamp extracts the timestamp from a ULID
func Timestamp(id string) (time.Time, error) {
	parsed, err := Parse(id)
	if err != nil {
		return time.Time{}, err
	}
	return ulid.Time(parsed.Time()), nil
}
