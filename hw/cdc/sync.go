package cdc

import (
	"fmt"

	"arcore/emu/log"
)

type stamped[T any] struct {
	v   T
	age int
}

// Sync carries requests of type Req from a source domain to a destination
// domain, and responses of type Resp back.
type Sync[Req, Resp any] struct {
	Name string

	depth  int // max requests in flight
	stages int // synchronizer latency, in receiving domain ticks

	reqs     []stamped[Req]
	resps    []stamped[Resp]
	accepted int // accepted by destination, not yet responded
	inflight int // issued, response not yet taken

	issued    uint64
	completed uint64
}

// NewSync returns a crossing allowing depth requests in flight, each message
// becoming visible after stages ticks of the receiving domain. Use stages=0
// only when both sides share the same clock.
func NewSync[Req, Resp any](name string, depth, stages int) *Sync[Req, Resp] {
	if depth < 1 || stages < 0 {
		panic(fmt.Sprintf("cdc: invalid sync %q depth=%d stages=%d", name, depth, stages))
	}
	return &Sync[Req, Resp]{
		Name:   name,
		depth:  depth,
		stages: stages,
	}
}

// Source side.

// Ready reports whether a request can be issued. Source domain.
func (s *Sync[Req, Resp]) Ready() bool { return s.inflight < s.depth }

// InFlight returns the number of requests whose response has not been taken
// yet. Source domain.
func (s *Sync[Req, Resp]) InFlight() int { return s.inflight }

// Issue sends a request. It returns false, and the request is not sent, if
// the crossing is not ready. Source domain.
func (s *Sync[Req, Resp]) Issue(r Req) bool {
	if !s.Ready() {
		return false
	}
	s.reqs = append(s.reqs, stamped[Req]{v: r})
	s.inflight++
	s.issued++
	log.ModCDC.DebugZ("request issued").
		String("sync", s.Name).
		Int("inflight", s.inflight).
		End()
	return true
}

// Response returns the oldest response, if one is visible. Source domain.
func (s *Sync[Req, Resp]) Response() (Resp, bool) {
	var zero Resp
	if len(s.resps) == 0 || s.resps[0].age < s.stages {
		return zero, false
	}
	r := s.resps[0].v
	s.resps[0] = stamped[Resp]{}
	s.resps = s.resps[1:]
	s.inflight--
	s.completed++
	return r, true
}

// TickSrc ages responses. Source domain, once per clock.
func (s *Sync[Req, Resp]) TickSrc() {
	for i := range s.resps {
		s.resps[i].age++
	}
}

// Destination side.

// TickDst ages requests. Destination domain, once per clock.
func (s *Sync[Req, Resp]) TickDst() {
	for i := range s.reqs {
		s.reqs[i].age++
	}
}

// Pending returns the oldest visible request without removing it.
// Destination domain.
func (s *Sync[Req, Resp]) Pending() (Req, bool) {
	var zero Req
	if len(s.reqs) == 0 || s.reqs[0].age < s.stages {
		return zero, false
	}
	return s.reqs[0].v, true
}

// Accept removes and returns the oldest visible request. The destination
// must later call Respond exactly once for it, in acceptance order.
// Destination domain.
func (s *Sync[Req, Resp]) Accept() (Req, bool) {
	r, ok := s.Pending()
	if !ok {
		return r, false
	}
	s.reqs[0] = stamped[Req]{}
	s.reqs = s.reqs[1:]
	s.accepted++
	return r, true
}

// Respond sends the response to the oldest accepted request. Destination
// domain.
func (s *Sync[Req, Resp]) Respond(r Resp) {
	if s.accepted == 0 {
		panic(fmt.Sprintf("cdc: %s: respond without accepted request", s.Name))
	}
	s.accepted--
	s.resps = append(s.resps, stamped[Resp]{v: r})
}

// Stats returns the number of issued and completed requests.
func (s *Sync[Req, Resp]) Stats() (issued, completed uint64) {
	return s.issued, s.completed
}

// Clear empties the crossing. It is meant for power-up, when no domain is
// running.
func (s *Sync[Req, Resp]) Clear() {
	clear(s.reqs)
	clear(s.resps)
	s.reqs = s.reqs[:0]
	s.resps = s.resps[:0]
	s.accepted = 0
	s.inflight = 0
}
