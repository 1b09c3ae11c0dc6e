// Package pipeline runs fixed sequences of dependent steps. Each intent the
// bot understands maps to one pipeline; a step's output is recorded into a
// per-run Context so later steps can read it. The executor owns no
// concurrency: a run is strictly sequential on the caller's goroutine.
package pipeline

import "fmt"

// Context accumulates step outputs for a single pipeline run. Slots are keyed
// by step ID and written exactly once, by the executor, when the step
// succeeds. A step may therefore only ever observe outputs of steps that ran
// before it. The context dies with the run and is never shared across
// messages.
type Context struct {
	outputs map[string]any
	order   []string
}

func NewContext() *Context {
	return &Context{outputs: make(map[string]any)}
}

// Output returns the recorded output of an earlier step.
func (c *Context) Output(id string) (any, bool) {
	v, ok := c.outputs[id]
	return v, ok
}

// Completed lists the IDs of steps whose outputs are recorded, in run order.
func (c *Context) Completed() []string {
	out := make([]string, len(c.order))
	copy(out, c.order)
	return out
}

// record writes a step's output. Writing the same slot twice means two steps
// share an ID, which is a pipeline definition bug.
func (c *Context) record(id string, v any) error {
	if _, exists := c.outputs[id]; exists {
		return fmt.Errorf("pipeline: duplicate step id %q", id)
	}
	c.outputs[id] = v
	c.order = append(c.order, id)
	return nil
}

// output reads a typed step output from the context. The second return is
// false when the slot is missing or holds a different type.
func output[T any](c *Context, id string) (T, bool) {
	v, ok := c.outputs[id]
	if !ok {
		var zero T
		return zero, false
	}
	t, ok := v.(T)
	return t, ok
}
