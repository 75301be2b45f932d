package memsys

import "arcore/hw/cdc"

// Request is a memory request issued by a client on its port. Addresses are
// byte offsets within the client's region and must be word aligned.
type Request struct {
	Addr  uint32
	Write bool
	Data  uint16 // write data
	Len   int    // burst length in words (0 means 1); writes fill Len words with Data
}

func (r Request) words() int { return max(r.Len, 1) }

// Response answers a Request. Data holds the words read (nil for writes).
type Response struct {
	Addr  uint32
	Write bool
	Data  []uint16
}

// Port is the memory port of a client, crossing from the client's domain to
// the memory (system) domain.
type Port = cdc.Sync[Request, Response]

// SyncStages is the synchronizer latency of ports crossing clock domains.
const SyncStages = 2

// NewPort returns a port for a client allowing depth requests in flight. If
// crossing is false the client runs in the system domain.
func NewPort(name string, depth int, crossing bool) *Port {
	stages := 0
	if crossing {
		stages = SyncStages
	}
	return cdc.NewSync[Request, Response](name, depth, stages)
}

// Client is the client end of a Port, owned by the client's domain. After a
// Reset it discards the responses to the requests issued before it.
type Client struct {
	Port *Port

	stale int
}

// Tick must be called once per client clock, including when the client is
// held in reset.
func (c *Client) Tick() { c.Port.TickSrc() }

// Reset forgets the requests currently in flight.
func (c *Client) Reset() { c.stale = c.Port.InFlight() }

// Ready reports whether a request can be issued.
func (c *Client) Ready() bool { return c.Port.Ready() }

// Idle reports whether no request is in flight.
func (c *Client) Idle() bool { return c.Port.InFlight() == 0 }

// Issue sends a request, returning false if the port is not ready.
func (c *Client) Issue(r Request) bool { return c.Port.Issue(r) }

// Response returns the next response to a request issued since the last
// Reset.
func (c *Client) Response() (Response, bool) {
	for {
		r, ok := c.Port.Response()
		if !ok {
			return r, false
		}
		if c.stale > 0 {
			c.stale--
			continue
		}
		return r, true
	}
}
