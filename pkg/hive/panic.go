package hive

import "fmt"

// Panic wraps a recovered panic value together with the optional detail that
// was attached to the task that panicked. Equality is defined as identity of
// the payload's runtime type plus equality of details — the payload itself
// is never compared, since arbitrary recovered values need not be
// comparable.
type Panic struct {
	Payload any
	Detail  any
}

// Equal reports whether two Panics carry the same payload type and detail.
func (p Panic) Equal(other Panic) bool {
	return fmt.Sprintf("%T", p.Payload) == fmt.Sprintf("%T", other.Payload) && p.Detail == other.Detail
}

// Resume re-raises the captured payload, losing the original goroutine's
// stack (Go has no resume_unwind) but preserving the payload value.
func (p Panic) Resume() {
	panic(p.Payload)
}

// safeCall invokes f under a recover boundary. It never lets the calling
// goroutine die: any panic raised by f is converted into a Panic value.
func safeCall[O any](detail any, f func() O) (result O, pan *Panic) {
	defer func() {
		if r := recover(); r != nil {
			pan = &Panic{Payload: r, Detail: detail}
		}
	}()
	result = f()
	return result, nil
}
