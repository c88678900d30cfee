package admission

import "sync/atomic"

// Holder publishes the current Gate. Reloading builds a new Gate and swaps it
// in; evaluations already running keep the Gate they loaded.
type Holder struct {
	current atomic.Pointer[Gate]
}

// NewHolder creates a Holder serving g.
func NewHolder(g *Gate) *Holder {
	h := &Holder{}
	h.current.Store(g)
	return h
}

// Load returns the current Gate.
func (h *Holder) Load() *Gate {
	return h.current.Load()
}

// Swap installs g and returns the previous Gate.
func (h *Holder) Swap(g *Gate) *Gate {
	return h.current.Swap(g)
}

// Evaluate evaluates req with the current Gate.
func (h *Holder) Evaluate(req *Request) (*CostReport, error) {
	return h.Load().Evaluate(req)
}
