package cdc

// Freeze carries a value of type T from a source domain to a destination
// domain without handshake.
type Freeze[T comparable] struct {
	Name string

	src    T // source domain register
	s1, s2 T // destination synchronizer stages
	out    T
}

// NewFreeze returns a Freeze whose source and destination both hold init.
func NewFreeze[T comparable](name string, init T) *Freeze[T] {
	return &Freeze[T]{
		Name: name,
		src:  init,
		s1:   init,
		s2:   init,
		out:  init,
	}
}

// Set updates the source value. Source domain.
func (f *Freeze[T]) Set(v T) { f.src = v }

// Source returns the source value. Source domain.
func (f *Freeze[T]) Source() T { return f.src }

// Tick samples the source. Destination domain, once per clock.
func (f *Freeze[T]) Tick() {
	f.s2 = f.s1
	f.s1 = f.src
	if f.s1 == f.s2 {
		f.out = f.s1
	}
}

// Get returns the last stable sampled value. Destination domain.
func (f *Freeze[T]) Get() T { return f.out }

// Force sets both sides to v at once. It is meant for power-up, when no
// domain is running.
func (f *Freeze[T]) Force(v T) {
	f.src, f.s1, f.s2, f.out = v, v, v, v
}
