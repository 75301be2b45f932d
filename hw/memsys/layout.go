package memsys

import (
	"fmt"
	"strings"

	"arcore/hw/loader"
)

// Standard region names. Each memory client of the machine owns one region.
const (
	RegionProgramROM = "cpu_rom"
	RegionNVRAM      = "nvram"
	RegionTile0      = "tile0"
	RegionTile1      = "tile1"
	RegionTile2      = "tile2"
	RegionSpriteROM  = "sprite_rom"
	RegionSoundROM   = "sound_rom"
	RegionVideoData  = "video_data"
	RegionSpriteFB   = "sprite_fb"
	RegionSystemFB   = "system_fb"
)

// Backend names.
const (
	DDR   = "ddr"
	SDRAM = "sdram"
)

// Region is an area of a backend owned by a memory client.
type Region struct {
	Name    string `toml:"name"`
	Backend string `toml:"backend"` // "ddr" or "sdram"
	Base    uint32 `toml:"base"`
	Size    uint32 `toml:"size"`

	// Load is the download target filling this region ("rom", "nvram",
	// "video") or empty. Regions sharing a target are filled in order, so
	// that the download stream is their concatenation.
	Load string `toml:"load"`

	// Clear zeroes the region during the initialization following a ROM
	// download.
	Clear bool `toml:"clear"`
}

// LoadIndex returns the download target of the region.
func (r Region) LoadIndex() (loader.TargetIndex, bool) {
	switch strings.ToLower(r.Load) {
	case "rom":
		return loader.ROM, true
	case "nvram":
		return loader.NVRAM, true
	case "video":
		return loader.VideoData, true
	}
	return 0, false
}

// Layout describes the backends and the regions they hold.
type Layout struct {
	DDRSize   int      `toml:"ddr_size"`
	SDRAMSize int      `toml:"sdram_size"`
	Regions   []Region `toml:"regions"`
}

// Region returns the region with the given name.
func (l *Layout) Region(name string) (Region, bool) {
	for _, r := range l.Regions {
		if r.Name == name {
			return r, true
		}
	}
	return Region{}, false
}

// StreamSize returns the number of bytes of the download stream for idx.
func (l *Layout) StreamSize(idx loader.TargetIndex) int {
	n := 0
	for _, r := range l.Regions {
		if ri, ok := r.LoadIndex(); ok && ri == idx {
			n += int(r.Size)
		}
	}
	return n
}

func (l *Layout) backendSize(name string) (int, bool) {
	switch name {
	case DDR:
		return l.DDRSize, true
	case SDRAM:
		return l.SDRAMSize, true
	}
	return 0, false
}

// Check verifies the layout consistency.
func (l *Layout) Check() error {
	if l.DDRSize <= 0 || l.DDRSize%2 != 0 {
		return fmt.Errorf("invalid ddr size %d", l.DDRSize)
	}
	if l.SDRAMSize <= 0 || l.SDRAMSize%2 != 0 {
		return fmt.Errorf("invalid sdram size %d", l.SDRAMSize)
	}

	seen := make(map[string]bool)
	for i, r := range l.Regions {
		if r.Name == "" {
			return fmt.Errorf("region #%d has no name", i)
		}
		if seen[r.Name] {
			return fmt.Errorf("duplicate region %q", r.Name)
		}
		seen[r.Name] = true

		size, ok := l.backendSize(r.Backend)
		if !ok {
			return fmt.Errorf("region %q: unknown backend %q", r.Name, r.Backend)
		}
		if r.Size == 0 || r.Size%2 != 0 || r.Base%2 != 0 {
			return fmt.Errorf("region %q: base and size must be even and size non-zero", r.Name)
		}
		if uint64(r.Base)+uint64(r.Size) > uint64(size) {
			return fmt.Errorf("region %q: [%#x,%#x) exceeds %s size %#x", r.Name, r.Base, r.Base+r.Size, r.Backend, size)
		}
		if _, ok := r.LoadIndex(); r.Load != "" && !ok {
			return fmt.Errorf("region %q: unknown load target %q", r.Name, r.Load)
		}
		for _, o := range l.Regions[:i] {
			if o.Backend == r.Backend && r.Base < o.Base+o.Size && o.Base < r.Base+r.Size {
				return fmt.Errorf("region %q overlaps region %q", r.Name, o.Name)
			}
		}
	}
	return nil
}

// DefaultLayout returns the layout of the reference board.
func DefaultLayout() Layout {
	const (
		kb = 1 << 10
		mb = 1 << 20
	)
	return Layout{
		DDRSize:   8 * mb,
		SDRAMSize: 2 * mb,
		Regions: []Region{
			{Name: RegionProgramROM, Backend: DDR, Base: 0x000000, Size: 1 * mb, Load: "rom"},
			{Name: RegionSoundROM, Backend: DDR, Base: 0x100000, Size: 256 * kb, Load: "rom"},
			{Name: RegionTile0, Backend: DDR, Base: 0x200000, Size: 1 * mb, Load: "rom"},
			{Name: RegionTile1, Backend: DDR, Base: 0x300000, Size: 1 * mb, Load: "rom"},
			{Name: RegionTile2, Backend: DDR, Base: 0x400000, Size: 1 * mb, Load: "rom"},
			{Name: RegionSpriteROM, Backend: DDR, Base: 0x500000, Size: 2 * mb, Load: "rom"},
			{Name: RegionVideoData, Backend: DDR, Base: 0x700000, Size: 64 * kb, Load: "video"},
			{Name: RegionNVRAM, Backend: SDRAM, Base: 0x000000, Size: 64 * kb, Load: "nvram"},
			{Name: RegionSpriteFB, Backend: SDRAM, Base: 0x040000, Size: 2 * 320 * 240 * 2, Clear: true},
			{Name: RegionSystemFB, Backend: SDRAM, Base: 0x100000, Size: 2 * 320 * 240 * 2, Clear: true},
		},
	}
}
