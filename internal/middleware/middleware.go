package middleware

import "net/http"

// Middleware wraps the next handler and returns a new handler.
type Middleware func(http.Handler) http.Handler

// Stage is one named unit of request processing. A stage may pass the
// request through or terminate the chain with a complete response; it must
// never leave a response partially written.
type Stage struct {
	Name string
	Wrap Middleware
}

// Stage names. The pipeline order over these names is a binding contract:
// CORS preflight must be resolved before quota is spent, and quota must be
// spent before validation work runs.
const (
	StageSecurityHeaders = "security_headers"
	StageCORS            = "cors"
	StageRateLimit       = "rate_limit"
	StageValidation      = "validation"
)

// Pipeline is an explicit, ordered list of stages. The order is declared
// data, not call-site sequence, so it can be asserted independently of
// wiring code.
type Pipeline struct {
	stages []Stage
}

// NewPipeline creates a pipeline running stages in the given order, first
// stage outermost. Stages with a nil Wrap are ignored.
func NewPipeline(stages ...Stage) *Pipeline {
	out := make([]Stage, 0, len(stages))
	for _, s := range stages {
		if s.Wrap == nil {
			continue
		}
		out = append(out, s)
	}
	return &Pipeline{stages: out}
}

// Names returns the stage names in execution order.
func (p *Pipeline) Names() []string {
	names := make([]string, len(p.stages))
	for i, s := range p.stages {
		names[i] = s.Name
	}
	return names
}

// Handler composes the stages around the endpoint.
func (p *Pipeline) Handler(endpoint http.Handler) http.Handler {
	if endpoint == nil {
		panic("middleware: nil endpoint handler")
	}
	h := endpoint
	for i := len(p.stages) - 1; i >= 0; i-- {
		h = p.stages[i].Wrap(h)
	}
	return h
}
