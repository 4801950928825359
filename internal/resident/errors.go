package resident

import "fmt"

// UnknownModelError reports a model key with no configured loader. It is
// returned before the slot is touched and maps to a client error.
type UnknownModelError struct {
	Key string
}

func (e *UnknownModelError) Error() string {
	return fmt.Sprintf("unknown model %q", e.Key)
}

// LoadError reports a failed loader invocation. The slot is left empty and
// the key is not remembered as broken; the next acquisition retries the
// load from scratch.
type LoadError struct {
	Key string
	Err error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load model %q: %v", e.Key, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// DisposalError reports a failed eviction. It is logged and never returned
// to callers; the slot is cleared regardless so one misbehaving disposal
// cannot wedge all future loads.
type DisposalError struct {
	Key string
	Err error
}

func (e *DisposalError) Error() string {
	return fmt.Sprintf("dispose model %q: %v", e.Key, e.Err)
}

func (e *DisposalError) Unwrap() error { return e.Err }

// InvocationError reports a failed synthesis call on an already-acquired
// handle. Residency state is unaffected.
type InvocationError struct {
	Key string
	Err error
}

func (e *InvocationError) Error() string {
	return fmt.Sprintf("invoke model %q: %v", e.Key, e.Err)
}

func (e *InvocationError) Unwrap() error { return e.Err }
