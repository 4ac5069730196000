package delegate

import "weak"

// Binding is the unit of delegate ownership. The page side holds the
// *Binding strongly for exactly as long as the delegate should stay
// reachable; the registry only ever stores weak references to it, so an
// association can never keep a collected delegate alive.
type Binding struct {
	d Delegate
}

// NewBinding wraps a delegate for association. The caller keeps the returned
// pointer alive for the page's lifetime.
func NewBinding(d Delegate) *Binding {
	return &Binding{d: d}
}

// Delegate returns the wrapped delegate.
func (b *Binding) Delegate() Delegate {
	return b.d
}

// WeakRef returns a non-owning reference to this binding.
func (b *Binding) WeakRef() Ref {
	return Ref{ptr: weak.Make(b)}
}

// Ref is a weak reference to a Binding. The zero Ref is permanently
// unreachable, which is how pending associations are represented.
type Ref struct {
	ptr weak.Pointer[Binding]
}

// Get resolves the reference. The second return is false when no binding was
// ever attached or the binding has been collected.
func (r Ref) Get() (Delegate, bool) {
	b := r.ptr.Value()
	if b == nil {
		return nil, false
	}
	return b.d, true
}
