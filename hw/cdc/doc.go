// Package cdc implements the two primitives used to move data between clock
// domains.
//
// Freeze is a handshake-free crossing for slowly changing, level-like values
// (readiness, configuration, page pointers). The destination samples the
// source through two synchronizer stages and only updates its output once two
// consecutive samples agree.
//
// Sync is a request/response crossing for memory-port traffic. Requests and
// responses travel through FIFOs whose entries become visible to the other
// side after a fixed number of that side's clock ticks. The number of
// requests in flight is bounded and the source is only ready when a slot is
// free, so nothing is ever dropped and responses come back in request order.
//
// Every value crossing a domain boundary in the machine goes through one of
// these two types. Each method documents which side (domain) may call it.
package cdc
