package romset

import (
	"fmt"

	"arcore/hw/loader"
	"arcore/hw/memsys"
)

// Session order. The end of the ROM download starts the CPU, so ROM comes
// last for the other data to be in memory by then.
var sessionOrder = []loader.TargetIndex{loader.NVRAM, loader.VideoData, loader.ROM}

// Sessions returns the download sessions delivering the ROM set to a machine
// with the given memory layout. The game configuration session, if the set
// specifies a game, comes first, followed by NVRAM, video data and ROM.
//
// Each stream places parts at their region offset, regions sharing a target
// being concatenated in layout order. A stream ends with its last loaded
// byte, the bytes between parts are zero.
func (rs *RomSet) Sessions(layout memsys.Layout) ([]loader.Session, error) {
	type span struct {
		start, end uint32
		file       string
	}
	streams := make(map[loader.TargetIndex][]byte)
	spans := make(map[loader.TargetIndex][]span)

	for _, p := range rs.Parts {
		start, size, idx, err := regionStream(layout, p.Region)
		if err != nil {
			return nil, fmt.Errorf("part %s: %w", p.File, err)
		}
		n := uint32(len(p.data))
		if uint64(p.Offset)+uint64(n) > uint64(size) {
			return nil, fmt.Errorf("part %s: [%#x,%#x) exceeds region %s size %#x",
				p.File, p.Offset, uint64(p.Offset)+uint64(n), p.Region, size)
		}

		s := span{start: start + p.Offset, end: start + p.Offset + n, file: p.File}
		for _, o := range spans[idx] {
			if s.start < o.end && o.start < s.end {
				return nil, fmt.Errorf("part %s overlaps part %s", p.File, o.file)
			}
		}
		spans[idx] = append(spans[idx], s)

		buf := streams[idx]
		if int(s.end) > len(buf) {
			buf = append(buf, make([]byte, int(s.end)-len(buf))...)
		}
		copy(buf[s.start:], p.data)
		streams[idx] = buf
	}

	if len(streams[loader.ROM]) == 0 {
		return nil, fmt.Errorf("no ROM data")
	}

	var sessions []loader.Session
	if rs.Game != nil {
		sessions = append(sessions, loader.Session{Index: loader.GameConfig, Data: []byte{*rs.Game}})
	}
	for _, idx := range sessionOrder {
		if buf := streams[idx]; len(buf) > 0 {
			sessions = append(sessions, loader.Session{Index: idx, Data: buf})
		}
	}
	return sessions, nil
}

// regionStream returns where the named region starts in its download stream.
func regionStream(layout memsys.Layout, name string) (start, size uint32, idx loader.TargetIndex, err error) {
	r, ok := layout.Region(name)
	if !ok {
		return 0, 0, 0, fmt.Errorf("unknown region %q", name)
	}
	idx, ok = r.LoadIndex()
	if !ok {
		return 0, 0, 0, fmt.Errorf("region %q is not a download target", name)
	}
	for _, o := range layout.Regions {
		if o.Name == name {
			break
		}
		if oi, ok := o.LoadIndex(); ok && oi == idx {
			start += o.Size
		}
	}
	return start, r.Size, idx, nil
}
