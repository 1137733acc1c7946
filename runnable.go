package probsheet

import "fmt"

// Runnable provides a chainable interface for engine operations. wraps
// the standard Engine and tracks errors internally
type Runnable struct {
	engine  *Engine
	err     error
	printLn func(string)
}

// NewRunnable creates a new Runnable around a fresh engine. printLn is
// required and will be used for all logging operations (Log,
// CheckError)
func NewRunnable(cfg *Config, printLn func(string)) *Runnable {
	engine, err := New(cfg)
	return &Runnable{
		engine:  engine,
		err:     err,
		printLn: printLn,
	}
}

// AddSheet adds a new sheet (chainable)
func (r *Runnable) AddSheet(name string) *Runnable {
	if r.err != nil {
		return r // no-op if there's already an error
	}
	_, r.err = r.engine.AddSheet(name)
	return r
}

// Set sets a cell's raw contents (chainable)
func (r *Runnable) Set(address, raw string) *Runnable {
	if r.err != nil {
		return r // no-op if there's already an error
	}
	r.err = r.engine.Set(address, raw)
	return r
}

// Remove removes a cell (chainable)
func (r *Runnable) Remove(address string) *Runnable {
	if r.err != nil {
		return r
	}
	addr, err := r.engine.resolveAddressText(address)
	if err != nil {
		r.err = err
		return r
	}
	r.engine.SetEmpty(addr)
	return r
}

// SetBatch sets multiple cells at once (chainable)
func (r *Runnable) SetBatch(cells map[string]string) *Runnable {
	if r.err != nil {
		return r
	}
	for address, raw := range cells {
		if err := r.engine.Set(address, raw); err != nil {
			r.err = err
			return r
		}
	}
	return r
}

// Recompute recalculates all dirty and volatile cells (chainable)
func (r *Runnable) Recompute() *Runnable {
	if r.err != nil {
		return r
	}
	r.engine.Recompute()
	return r
}

// Value is a helper to get a single value from the chain.
// example: v := NewRunnable(nil, print).AddSheet("S").Set("A1", "10").Recompute().Value("A1")
func (r *Runnable) Value(address string) Value {
	if r.err != nil {
		return nil
	}
	v, err := r.engine.Get(address)
	if err != nil {
		r.err = err
		return nil
	}
	return v
}

// Values is a helper to get multiple values from the chain
func (r *Runnable) Values(addresses ...string) []Value {
	if r.err != nil {
		return nil
	}
	out := make([]Value, len(addresses))
	for i, address := range addresses {
		v, err := r.engine.Get(address)
		if err != nil {
			r.err = err
			return nil
		}
		out[i] = v
	}
	return out
}

// Run executes a final recompute and returns the engine and any
// error. typically the last method in the chain
func (r *Runnable) Run() (*Engine, error) {
	if r.err != nil {
		return nil, r.err
	}
	r.engine.Recompute()
	return r.engine, nil
}

// RunOrPanic executes a final recompute and panics if there's an
// error. useful for examples and tests where you want to fail fast
func (r *Runnable) RunOrPanic() *Engine {
	engine, err := r.Run()
	if err != nil {
		panic(err)
	}
	return engine
}

// Error returns the current error state
func (r *Runnable) Error() error {
	return r.err
}

// Must panics if there's an error (chainable). useful for ensuring
// critical operations succeed
func (r *Runnable) Must() *Runnable {
	if r.err != nil {
		panic(r.err)
	}
	return r
}

// Then allows conditional execution based on current error state
func (r *Runnable) Then(fn func(*Runnable) *Runnable) *Runnable {
	if r.err != nil {
		return r
	}
	return fn(r)
}

// OnError allows error handling in the chain
func (r *Runnable) OnError(fn func(error) error) *Runnable {
	if r.err != nil {
		r.err = fn(r.err)
	}
	return r
}

// Log logs the formatted value of a cell using the provided printLn
// function (chainable)
func (r *Runnable) Log(address string) *Runnable {
	if r.err != nil {
		return r
	}
	addr, err := r.engine.resolveAddressText(address)
	if err != nil {
		r.err = err
		return r
	}
	text := r.engine.GetCellFormatted(addr)
	if text == "" {
		text = "<empty>"
	}
	r.printLn(fmt.Sprintf("%s: %s", address, text))
	return r
}

// CheckError logs the current error using the printLn function
// (chainable)
func (r *Runnable) CheckError() *Runnable {
	if r.err != nil {
		r.printLn(fmt.Sprintf("ERROR: %v", r.err))
	} else {
		r.printLn("No errors")
	}
	return r
}

// Engine returns the underlying engine. use with caution as it
// bypasses error tracking.
func (r *Runnable) Engine() *Engine {
	return r.engine
}
