package emu

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/BurntSushi/toml"

	"arcore/emu/log"
	"arcore/hw"
	"arcore/hw/cores"
	"arcore/hw/fbuf"
	"arcore/hw/gamecfg"
	"arcore/hw/memsys"
	"arcore/hw/video"
)

type Config struct {
	Clocks   hw.Clocks         `toml:"clocks"`
	Video    VideoConfig       `toml:"video"`
	Options  hw.Options        `toml:"options"`
	Audio    AudioConfig       `toml:"audio"`
	Input    InputConfig       `toml:"input"`
	Memory   memsys.Layout     `toml:"memory"`
	Loader   LoaderConfig      `toml:"loader"`
	Cores    CoresConfig       `toml:"cores"`
	Variants []gamecfg.Variant `toml:"variants"`
}

type VideoConfig struct {
	Timing video.TimingConfig `toml:"timing"`
	Burst  int                `toml:"burst"` // frame buffer display burst, in words
	Scale  int                `toml:"scale"` // screenshot scale factor
	Label  bool               `toml:"label"` // print frame number on screenshots
}

type AudioConfig struct {
	SampleRate int  `toml:"sample_rate"`
	Disable    bool `toml:"disable"`
}

type InputConfig struct {
	HoldFrames int   `toml:"hold_frames"` // frames a control stays pressed after a key press
	DIP        uint8 `toml:"dip"`         // DIP switches
}

// LoaderConfig controls the pace of the host download.
type LoaderConfig struct {
	Spacing int `toml:"spacing"` // system clocks between bytes
	Gap     int `toml:"gap"`     // idle system clocks between sessions
}

// CoresConfig selects the cores plugged in the machine.
type CoresConfig struct {
	CPU        string `toml:"cpu"`        // "painter" or "none"
	Sound      string `toml:"sound"`      // "pcm" or "none"
	Compositor string `toml:"compositor"` // "overlay" or "system"

	TileSize   int    `toml:"tile_size"`
	SpriteSize int    `toml:"sprite_size"`
	PCMDivider int    `toml:"pcm_divider"`
	PCMBlock   uint32 `toml:"pcm_block"`
}

const DefaultFileMode = os.FileMode(0755)

var ConfigDir = sync.OnceValue(func() string {
	cfgdir, err := os.UserConfigDir()
	if err != nil {
		log.ModEmu.Fatalf("failed to get user config directory: %v", err)
	}

	dir := filepath.Join(cfgdir, "arcore")
	if err := os.MkdirAll(dir, DefaultFileMode); err != nil {
		log.ModEmu.Fatalf("failed to create directory %s: %v", dir, err)
	}
	return dir
})

const cfgFilename = "config.toml"

// DefaultConfig returns the configuration of the reference board, running
// the reference cores.
func DefaultConfig() Config {
	hwcfg := hw.DefaultConfig()
	return Config{
		Clocks: hwcfg.Clocks,
		Video: VideoConfig{
			Timing: hwcfg.Timing,
			Burst:  hwcfg.Frame.Burst,
			Scale:  2,
		},
		Audio:  AudioConfig{SampleRate: 48000},
		Input:  InputConfig{HoldFrames: DefaultHoldFrames},
		Memory: hwcfg.Layout,
		Loader: LoaderConfig{Spacing: 4, Gap: 16},
		Cores: CoresConfig{
			CPU:        "painter",
			Sound:      "pcm",
			Compositor: "overlay",
			TileSize:   8,
			SpriteSize: 16,
			PCMDivider: 1000,
			PCMBlock:   0x1000,
		},
	}
}

// Check validates the configuration. Cosmetic settings are fixed in place.
func (cfg *Config) Check() error {
	if cfg.Video.Scale < 1 {
		log.ModEmu.Warnf("Invalid video scale %d, fallback to 1", cfg.Video.Scale)
		cfg.Video.Scale = 1
	}
	if cfg.Audio.SampleRate <= 0 {
		log.ModEmu.Warnf("Invalid audio sample rate %d, disabling audio", cfg.Audio.SampleRate)
		cfg.Audio.Disable = true
	}
	if err := cfg.Video.Timing.Check(); err != nil {
		return fmt.Errorf("video timing: %w", err)
	}
	if err := cfg.Memory.Check(); err != nil {
		return fmt.Errorf("memory: %w", err)
	}
	if _, err := cfg.Cores.build(); err != nil {
		return err
	}
	return nil
}

type machineCores struct {
	cpu  hw.CPUCore
	snd  hw.SoundCore
	comp hw.Compositor
}

func (cc CoresConfig) build() (machineCores, error) {
	var mc machineCores
	switch cc.CPU {
	case "painter":
		mc.cpu = &cores.Painter{TileSize: cc.TileSize, SpriteSize: cc.SpriteSize}
	case "", "none":
	default:
		return mc, fmt.Errorf("unknown cpu core %q", cc.CPU)
	}
	switch cc.Sound {
	case "pcm":
		mc.snd = &cores.PCM{Divider: cc.PCMDivider, BlockSize: cc.PCMBlock}
	case "", "none":
	default:
		return mc, fmt.Errorf("unknown sound core %q", cc.Sound)
	}
	switch cc.Compositor {
	case "overlay":
		mc.comp = cores.Overlay{}
	case "", "system":
	default:
		return mc, fmt.Errorf("unknown compositor %q", cc.Compositor)
	}
	return mc, nil
}

// Machine returns the machine configuration, with freshly created cores.
func (cfg *Config) Machine() (hw.Config, error) {
	mc, err := cfg.Cores.build()
	if err != nil {
		return hw.Config{}, err
	}
	return hw.Config{
		Clocks: cfg.Clocks,
		Timing: cfg.Video.Timing,
		Layout: cfg.Memory,
		Frame: fbuf.Config{
			Width:  cfg.Video.Timing.HVisible,
			Height: cfg.Video.Timing.VVisible,
			Burst:  cfg.Video.Burst,
		},
		Variants:   cfg.Variants,
		CPU:        mc.cpu,
		Sound:      mc.snd,
		Compositor: mc.comp,
	}, nil
}

// LoadConfigOrDefault loads the configuration at path, or in the arcore
// config directory if path is empty. Settings missing from the file keep
// their default value. A missing default file gives the default
// configuration.
func LoadConfigOrDefault(path string) (Config, error) {
	def := DefaultConfig()
	cfg := def
	// Arrays are decoded in place: keep the defaults apart.
	cfg.Memory.Regions = nil
	explicit := path != ""
	if !explicit {
		path = filepath.Join(ConfigDir(), cfgFilename)
	}

	_, err := toml.DecodeFile(path, &cfg)
	switch {
	case err == nil:
		log.ModEmu.InfoZ("loaded config").String("path", path).End()
		if len(cfg.Memory.Regions) == 0 {
			cfg.Memory.Regions = def.Memory.Regions
		}
	case !explicit && errors.Is(err, fs.ErrNotExist):
		cfg = def
	default:
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, cfg.Check()
}

// SaveConfig writes cfg at path, or in the arcore config directory if path is
// empty.
func SaveConfig(cfg Config, path string) error {
	buf, err := toml.Marshal(cfg)
	if err != nil {
		return err
	}
	if path == "" {
		path = filepath.Join(ConfigDir(), cfgFilename)
	}
	return os.WriteFile(path, buf, 0644)
}
