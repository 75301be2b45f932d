// Package romset reads game ROM sets. A ROM set is a TOML file listing the
// files (parts) making up a game and the memory regions they are loaded in.
//
//	name = "blaster"
//	game = 5
//	archive = "blaster.zip"
//
//	[[parts]]
//	file = "prog.bin"
//	region = "cpu_rom"
//	crc32 = "1b2f60aa"
//
//	[[parts]]
//	file = "voice.wav"
//	region = "sound_rom"
//	offset = 0x100
//
// Part files are looked up in archive, if any, then in the directory of the
// ROM set file. Wav files are converted to the 8-bit PCM format played by
// the sound core.
package romset

import (
	"archive/zip"
	"fmt"
	"hash/crc32"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"golang.org/x/sync/errgroup"

	"arcore/emu/log"
)

// Part is a file loaded at some offset of a memory region.
type Part struct {
	File   string `toml:"file"`
	Region string `toml:"region"`
	Offset uint32 `toml:"offset"`
	Skip   int    `toml:"skip"`  // bytes skipped at the start of the file
	Size   int    `toml:"size"`  // bytes kept after skip (0: all)
	CRC32  string `toml:"crc32"` // of the kept bytes, hexadecimal

	data []byte
}

// Data returns the part contents, once loaded.
func (p *Part) Data() []byte { return p.data }

// RomSet describes a game.
type RomSet struct {
	Name    string `toml:"name"`
	Game    *uint8 `toml:"game"` // game index sent through the config session
	Archive string `toml:"archive"`
	Parts   []Part `toml:"parts"`

	dir string
}

// Open decodes the ROM set file at path and loads all its parts.
func Open(path string) (*RomSet, error) {
	rs := new(RomSet)
	if _, err := toml.DecodeFile(path, rs); err != nil {
		return nil, fmt.Errorf("romset: %w", err)
	}
	rs.dir = filepath.Dir(path)
	if rs.Name == "" {
		rs.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	if err := rs.load(); err != nil {
		return nil, fmt.Errorf("romset %s: %w", rs.Name, err)
	}
	return rs, nil
}

func (rs *RomSet) load() error {
	if len(rs.Parts) == 0 {
		return fmt.Errorf("no parts")
	}

	var arch *zip.ReadCloser
	if rs.Archive != "" {
		var err error
		arch, err = zip.OpenReader(rs.path(rs.Archive))
		if err != nil {
			return err
		}
		defer arch.Close()
	}

	var g errgroup.Group
	g.SetLimit(runtime.NumCPU())

	for i := range rs.Parts {
		p := &rs.Parts[i]
		g.Go(func() error {
			buf, err := rs.readFile(arch, p.File)
			if err != nil {
				return fmt.Errorf("part %s: %w", p.File, err)
			}
			if isWav(p.File) {
				if buf, err = decodeWav(buf); err != nil {
					return fmt.Errorf("part %s: %w", p.File, err)
				}
			}
			if err := p.setData(buf); err != nil {
				return fmt.Errorf("part %s: %w", p.File, err)
			}
			log.ModLoader.DebugZ("loaded part").
				String("file", p.File).
				String("region", p.Region).
				Size("size", len(p.data)).
				End()
			return nil
		})
	}
	return g.Wait()
}

func (rs *RomSet) path(name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(rs.dir, name)
}

// readFile reads name from the archive, falling back to the file system.
func (rs *RomSet) readFile(arch *zip.ReadCloser, name string) ([]byte, error) {
	if arch != nil {
		for _, f := range arch.File {
			if f.Name != name && filepath.Base(f.Name) != name {
				continue
			}
			rc, err := f.Open()
			if err != nil {
				return nil, err
			}
			defer rc.Close()
			return io.ReadAll(rc)
		}
	}
	return os.ReadFile(rs.path(name))
}

func (p *Part) setData(buf []byte) error {
	if p.Skip < 0 || p.Skip > len(buf) {
		return fmt.Errorf("skip %d out of file bounds (%d bytes)", p.Skip, len(buf))
	}
	buf = buf[p.Skip:]
	if p.Size > 0 {
		if p.Size > len(buf) {
			return fmt.Errorf("size %d exceeds available data (%d bytes)", p.Size, len(buf))
		}
		buf = buf[:p.Size]
	}
	if len(buf) == 0 {
		return fmt.Errorf("empty part")
	}

	if p.CRC32 != "" {
		want, err := strconv.ParseUint(strings.TrimPrefix(strings.ToLower(p.CRC32), "0x"), 16, 32)
		if err != nil {
			return fmt.Errorf("invalid crc32 %q", p.CRC32)
		}
		if got := crc32.ChecksumIEEE(buf); got != uint32(want) {
			return fmt.Errorf("crc32 mismatch: got %08x, want %08x", got, want)
		}
	}
	p.data = buf
	return nil
}

// PrintInfos writes a summary of the ROM set.
func (rs *RomSet) PrintInfos(w io.Writer) {
	fmt.Fprintf(w, "name:    %s\n", rs.Name)
	if rs.Game != nil {
		fmt.Fprintf(w, "game:    %d\n", *rs.Game)
	} else {
		fmt.Fprintf(w, "game:    (fallback)\n")
	}
	if rs.Archive != "" {
		fmt.Fprintf(w, "archive: %s\n", rs.Archive)
	}
	fmt.Fprintf(w, "parts:\n")
	for _, p := range rs.Parts {
		fmt.Fprintf(w, "  %-20s %-12s offset=%#08x size=%#08x crc32=%08x\n",
			p.File, p.Region, p.Offset, len(p.data), crc32.ChecksumIEEE(p.data))
	}
}

// NewPart returns a part holding data, to be loaded at offset of region.
func NewPart(region string, offset uint32, data []byte) Part {
	return Part{Region: region, Offset: offset, data: data}
}

func isWav(name string) bool {
	return strings.EqualFold(filepath.Ext(name), ".wav")
}
