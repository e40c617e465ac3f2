package testutil

// FixedTraceGenerator returns the same trace id every time, so log output
// of a test run is byte-identical across runs.
//
// Thread-safety: FixedTraceGenerator is stateless and safe for concurrent use.
type FixedTraceGenerator struct {
	token string
}

// NewFixedTraceGenerator creates a generator returning token.
// If token is empty, Generate returns "test-trace-default".
func NewFixedTraceGenerator(token string) *FixedTraceGenerator {
	if token == "" {
		token = "test-trace-default"
	}
	return &FixedTraceGenerator{token: token}
}

// Generate returns the fixed trace id.
//
// Implements manager.TraceGenerator.
func (g *FixedTraceGenerator) Generate() string {
	return g.token
}
