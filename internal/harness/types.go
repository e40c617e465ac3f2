package harness

// TraceEvent records one executed step.
type TraceEvent struct {
	Seq        int     `json:"seq"`
	Op         string  `json:"op"`
	Entity     string  `json:"entity"`
	ID         int64   `json:"id,omitempty"`
	Query      string  `json:"query,omitempty"` // DQL of compiled filters
	Params     []any   `json:"params,omitempty"`
	MaxResults *int    `json:"max_results,omitempty"`
	Count      int     `json:"count"`
	IDs        []int64 `json:"ids,omitempty"`
	Error      string  `json:"error,omitempty"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true when every expectation and assertion held.
	Pass bool `json:"pass"`

	// Trace contains executed steps in order. Setup is not traced.
	Trace []TraceEvent `json:"trace"`

	// Errors contains failed expectations. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds a failure and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddTrace appends an event, numbering it.
func (r *Result) AddTrace(ev TraceEvent) {
	ev.Seq = len(r.Trace) + 1
	r.Trace = append(r.Trace, ev)
}
