package loader

// Session is a download to be played by a Feeder.
type Session struct {
	Index TargetIndex
	Data  []byte
}

// Feeder plays download sessions on the loader lines, the way the host
// controller does: Active is raised one clock before the first write, one
// byte is written every Spacing clocks, and Active falls one clock after the
// last write. Consecutive sessions are separated by Gap idle clocks.
type Feeder struct {
	Spacing int // clocks between writes (min 1)
	Gap     int // idle clocks between sessions

	queue []Session
	pos   int // next byte in queue[0]
	state feedState
	wait  int
}

type feedState uint8

const (
	feedIdle feedState = iota
	feedStart
	feedData
	feedEnd
)

// Queue appends sessions to play.
func (f *Feeder) Queue(s ...Session) {
	f.queue = append(f.queue, s...)
}

// Done reports whether all queued sessions have been played.
func (f *Feeder) Done() bool {
	return len(f.queue) == 0 && f.state == feedIdle
}

// Next returns the loader lines for the next system clock.
func (f *Feeder) Next() Signals {
	if f.wait > 0 {
		f.wait--
		if f.state == feedIdle {
			return Signals{}
		}
		return Signals{Active: true, Index: f.queue[0].Index}
	}

	switch f.state {
	case feedIdle:
		if len(f.queue) == 0 {
			return Signals{}
		}
		f.state = feedStart
		f.pos = 0
		return Signals{Active: true, Index: f.queue[0].Index}

	case feedStart, feedData:
		cur := f.queue[0]
		if f.pos >= len(cur.Data) {
			f.state = feedEnd
			return Signals{Active: true, Index: cur.Index}
		}
		f.state = feedData
		s := Signals{
			Active: true,
			Index:  cur.Index,
			Write:  true,
			Addr:   uint32(f.pos),
			Data:   cur.Data[f.pos],
		}
		f.pos++
		f.wait = max(f.Spacing, 1) - 1
		return s

	case feedEnd:
		f.queue[0] = Session{}
		f.queue = f.queue[1:]
		f.state = feedIdle
		f.wait = f.Gap
		return Signals{}
	}
	panic("unreachable")
}
