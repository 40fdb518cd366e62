package events

import (
	"iter"
)

// Traceinf is an infinite trace. Events are pulled lazily from the
// underlying sequence, which is consumed once; events already pulled are
// kept so prefixes can be observed any number of times.
type Traceinf struct {
	next func() (Event, bool)
	stop func()
	seen []Event
	done bool
}

// NewTraceinf wraps a sequence of events. The sequence should not end; if
// it does, observations are truncated where it ended.
func NewTraceinf(seq iter.Seq[Event]) *Traceinf {
	next, stop := iter.Pull(seq)
	return &Traceinf{next: next, stop: stop}
}

func (tr *Traceinf) fill(n int) {
	for !tr.done && len(tr.seen) < n {
		ev, ok := tr.next()
		if !ok {
			tr.done = true
			tr.stop()
			return
		}
		tr.seen = append(tr.seen, ev)
	}
}

// Take returns the first n events, or fewer if the sequence ended.
func (tr *Traceinf) Take(n int) Trace {
	tr.fill(n)
	n = max(0, min(n, len(tr.seen)))
	return Eapp(Trace(tr.seen[:n]))
}

// At returns the i-th event.
func (tr *Traceinf) At(i int) (Event, bool) {
	tr.fill(i + 1)
	if i < 0 || i >= len(tr.seen) {
		return nil, false
	}
	return tr.seen[i], true
}

// Close releases the underlying sequence. Observed events stay available.
func (tr *Traceinf) Close() {
	if !tr.done {
		tr.done = true
		tr.stop()
	}
}

// all replays T from its first event.
func (tr *Traceinf) all() iter.Seq[Event] {
	return func(yield func(Event) bool) {
		for i := 0; ; i++ {
			ev, ok := tr.At(i)
			if !ok || !yield(ev) {
				return
			}
		}
	}
}

// Eappinf prepends a finite trace to an infinite one.
func Eappinf(t Trace, T *Traceinf) *Traceinf {
	t = Eapp(t)
	return NewTraceinf(func(yield func(Event) bool) {
		for _, ev := range t {
			if !yield(ev) {
				return
			}
		}
		for ev := range T.all() {
			if !yield(ev) {
				return
			}
		}
	})
}

// Forever repeats t endlessly. t must not be empty.
func Forever(t Trace) *Traceinf {
	if len(t) == 0 {
		panic("events: Forever of the empty trace")
	}
	t = Eapp(t)
	return NewTraceinf(func(yield func(Event) bool) {
		for {
			for _, ev := range t {
				if !yield(ev) {
					return
				}
			}
		}
	})
}

// Chunks is an infinite chain of nonempty finite traces, unfolded on
// demand.
type Chunks func() (Trace, Chunks)

// Cons puts chunk in front of rest.
func Cons(chunk Trace, rest func() Chunks) Chunks {
	return func() (Trace, Chunks) { return chunk, rest() }
}

// Unfold builds the chain whose i-th chunk is f(i).
func Unfold(f func(i int) Trace) Chunks {
	var from func(i int) Chunks
	from = func(i int) Chunks {
		return func() (Trace, Chunks) { return f(i), from(i + 1) }
	}
	return from(0)
}

// Flatten concatenates the chunks into one infinite trace. It panics when
// it meets an empty chunk.
func Flatten(c Chunks) *Traceinf {
	return NewTraceinf(func(yield func(Event) bool) {
		for cur := c; cur != nil; {
			chunk, rest := cur()
			if len(chunk) == 0 {
				panic("events: empty chunk in Flatten")
			}
			for _, ev := range chunk {
				if !yield(ev) {
					return
				}
			}
			cur = rest
		}
	})
}

// Bisim compares the first n events of two infinite traces.
func Bisim(T1, T2 *Traceinf, n int) bool {
	return T1.Take(n).Equal(T2.Take(n))
}
