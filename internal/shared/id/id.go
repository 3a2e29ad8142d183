// Package id generates identifiers for QC results and pipeline runs.
//
// Result IDs are prefixed ULIDs ("qcr_01HV..."): they sort by creation time,
// so results committed by one worker keep their order when a downstream
// store orders by ID. Run IDs are UUIDs stamped once per pipeline run.
package id

import (
	"crypto/rand"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// ResultID identifies one QC result
type ResultID string

// RunID identifies one pipeline run
type RunID string

const ResultPrefix = "qcr"

// Generator produces monotonic ULIDs.
type Generator struct {
	mu      sync.Mutex
	entropy *ulid.MonotonicEntropy
	now     func() time.Time
}

var (
	defaultGenerator *Generator
	once             sync.Once
)

// Default returns the process-wide generator
func Default() *Generator {
	once.Do(func() {
		defaultGenerator = NewGenerator()
	})
	return defaultGenerator
}

// NewGenerator creates a generator backed by crypto/rand.
func NewGenerator() *Generator {
	return NewGeneratorWithEntropy(rand.Reader)
}

// NewGeneratorWithEntropy creates a generator with a custom entropy source,
// for deterministic tests.
func NewGeneratorWithEntropy(entropy io.Reader) *Generator {
	return &Generator{
		entropy: ulid.Monotonic(entropy, 0),
		now:     time.Now,
	}
}

// Generate creates a ULID. IDs from one generator increase strictly, even
// within the same millisecond.
func (g *Generator) Generate() ulid.ULID {
	g.mu.Lock()
	defer g.mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(g.now()), g.entropy)
}

// GenerateWithPrefix creates a prefixed ULID string
func (g *Generator) GenerateWithPrefix(prefix string) string {
	return fmt.Sprintf("%s_%s", prefix, g.Generate().String())
}

// NewResultID creates a result ID from g.
func (g *Generator) NewResultID() ResultID {
	return ResultID(g.GenerateWithPrefix(ResultPrefix))
}

// NewResultID creates a result ID from the default generator.
func NewResultID() ResultID {
	return Default().NewResultID()
}

// NewRunID creates a run ID.
func NewRunID() RunID {
	return RunID(uuid.NewString())
}

func (id ResultID) String() string { return string(id) }
func (id RunID) String() string    { return string(id) }

// Timestamp extracts the creation time from a result ID.
func (id ResultID) Timestamp() (time.Time, error) {
	raw := strings.TrimPrefix(string(id), ResultPrefix+"_")
	parsed, err := ulid.Parse(raw)
	if err != nil {
		return time.Time{}, err
	}
	return ulid.Time(parsed.Time()), nil
}

// IsValid checks if a string is a bare ULID
func IsValid(s string) bool {
	_, err := ulid.Parse(s)
	return err == nil
}
