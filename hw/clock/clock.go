// Package clock drives a set of independently clocked domains.
//
// Each domain is a step function called once per rising edge of its clock.
// Time is kept in picoseconds so that typical arcade clock frequencies map to
// integer periods. When several domains have an edge at the same instant they
// are stepped in registration order, which lets the machine express its
// dependency order (memory before reset gating before CPU before video).
package clock

import (
	"fmt"

	"arcore/emu/log"
)

// Picosecond-based time.
type Time uint64

const (
	Picosecond  Time = 1
	Nanosecond       = 1000 * Picosecond
	Microsecond      = 1000 * Nanosecond
	Millisecond      = 1000 * Microsecond
	Second           = 1000 * Millisecond
)

func (t Time) String() string {
	switch {
	case t >= Second:
		return fmt.Sprintf("%gs", float64(t)/float64(Second))
	case t >= Millisecond:
		return fmt.Sprintf("%gms", float64(t)/float64(Millisecond))
	case t >= Microsecond:
		return fmt.Sprintf("%gµs", float64(t)/float64(Microsecond))
	case t >= Nanosecond:
		return fmt.Sprintf("%gns", float64(t)/float64(Nanosecond))
	}
	return fmt.Sprintf("%dps", uint64(t))
}

// Domain is a clock domain registered in a Scheduler.
type Domain struct {
	Name   string
	Period Time

	step  func()
	next  Time
	ticks uint64
	order int
}

// Ticks returns the number of steps executed by the domain.
func (d *Domain) Ticks() uint64 { return d.ticks }

// Hz returns the domain frequency.
func (d *Domain) Hz() uint64 { return uint64(Second / d.Period) }

// Scheduler calls domain step functions in time order.
type Scheduler struct {
	domains []*Domain
	now     Time
}

// Add registers a new domain running at hz, whose first edge happens at the
// current time. Domains must be added in dependency order.
func (s *Scheduler) Add(name string, hz uint64, step func()) *Domain {
	if hz == 0 || Time(hz) > Second {
		panic(fmt.Sprintf("clock: invalid frequency %d Hz for domain %q", hz, name))
	}
	d := &Domain{
		Name:   name,
		Period: Second / Time(hz),
		step:   step,
		next:   s.now,
		order:  len(s.domains),
	}
	s.domains = append(s.domains, d)

	log.ModClock.DebugZ("added clock domain").
		String("name", name).
		Uint64("hz", hz).
		Uint64("period_ps", uint64(d.Period)).
		End()
	return d
}

// Now returns the current time.
func (s *Scheduler) Now() Time { return s.now }

// Step advances time to the next clock edge and steps all the domains having
// an edge at that instant. It returns the new time.
func (s *Scheduler) Step() Time {
	if len(s.domains) == 0 {
		return s.now
	}

	next := s.domains[0].next
	for _, d := range s.domains[1:] {
		next = min(next, d.next)
	}
	s.now = next

	for _, d := range s.domains {
		if d.next == next {
			d.step()
			d.ticks++
			d.next += d.Period
		}
	}
	return s.now
}

// RunFor steps the scheduler until dur has elapsed.
func (s *Scheduler) RunFor(dur Time) {
	s.RunUntil(s.now + dur)
}

// RunUntil steps the scheduler until all edges before t have been processed.
func (s *Scheduler) RunUntil(t Time) {
	for s.nextEdge() < t {
		s.Step()
	}
}

// RunWhile steps the scheduler as long as cond returns true, or until limit
// has elapsed. It reports whether cond became false.
func (s *Scheduler) RunWhile(cond func() bool, limit Time) bool {
	end := s.now + limit
	for cond() {
		if s.nextEdge() >= end {
			return false
		}
		s.Step()
	}
	return true
}

func (s *Scheduler) nextEdge() Time {
	if len(s.domains) == 0 {
		return ^Time(0)
	}
	next := s.domains[0].next
	for _, d := range s.domains[1:] {
		next = min(next, d.next)
	}
	return next
}

// AddLogContext adds the current time to log entries.
func (s *Scheduler) AddLogContext(z *log.EntryZ) {
	z.Uint64("t_ns", uint64(s.now/Nanosecond))
}
