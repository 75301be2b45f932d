package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/alecthomas/kong"

	"arcore/emu/log"
)

type mode byte

const (
	runMode         mode = iota // Run a ROM set
	romsetInfosMode             // Show ROM set infos
	configMode                  // Show or save configuration
	versionMode                 // Show arcore version
)

type (
	CLI struct {
		Run         Run         `cmd:"" help:"Run ROM set in emulator." default:"withargs"`
		RomsetInfos RomsetInfos `cmd:"" help:"Show ROM set infos." name:"romset-infos"`
		Config      ConfigCmd   `cmd:"" help:"Show the configuration, optionally save it."`
		Version     Version     `cmd:"" help:"Show arcore version."`

		Log logModMask `help:"${log_help}" placeholder:"mod0,mod1,..."`

		mode mode
	}

	Run struct {
		RomSet string `arg:"" name:"/path/to/romset.toml" help:"${romset_help}" required:"true" type:"existingfile"`

		Config     string   `name:"config" help:"${config_help}" type:"existingfile"`
		Frames     int      `name:"frames" help:"Number of frames to run, 0 runs until interrupted." default:"0"`
		Fallback   int      `name:"fallback-game" help:"Game index used when the ROM set has none. (default: from config)" default:"-1"`
		Rotate     bool     `name:"rotate" help:"Rotate the display."`
		Keys       bool     `name:"keys" help:"${keys_help}"`
		Screenshot string   `name:"screenshot" help:"Save the last frame as png." type:"path"`
		Wav        string   `name:"wav" help:"Record audio output as wav." type:"path"`
		Status     *outfile `name:"status" help:"Write status JSON when done." placeholder:"FILE|stdout|stderr"`
		CPUProfile string   `name:"cpuprofile" help:"${cpuprofile_help}" type:"path"`
		Port       int      `name:"port" help:"Serve remote control on this localhost port, 0 disables it." default:"0"`
	}

	RomsetInfos struct {
		RomSet string `arg:"" name:"/path/to/romset.toml" type:"existingfile"`
		Config string `name:"config" help:"${config_help}" type:"existingfile"`
	}

	ConfigCmd struct {
		Config string `name:"config" help:"${config_help}" type:"existingfile"`
		Save   bool   `name:"save" help:"Save the configuration into the arcore config directory."`
	}

	Version struct{}
)

var vars = kong.Vars{
	"romset_help":     "ROM set description file.",
	"config_help":     "Configuration file. (default: config.toml in the arcore config directory)",
	"keys_help":       "Read player controls from the terminal.",
	"cpuprofile_help": "Write CPU profile to file.",
	"log_help":        "Enable logging for specified modules.",
}

func parseArgs(args []string) CLI {
	var cfg CLI
	parser, err := kong.New(&cfg,
		kong.Name("arcore"),
		kong.Description("Arcade machine core emulator."),
		kong.UsageOnError(),
		kong.Help(printHelp),
		vars)
	if err != nil {
		panic(err)
	}

	ctx, err := parser.Parse(args)
	checkf(err, "failed to parse command line")
	checkf(ctx.Error, "failed to parse command line")

	switch ctx.Command() {
	case "romset-infos </path/to/romset.toml>":
		cfg.mode = romsetInfosMode
	case "config":
		cfg.mode = configMode
	case "version":
		cfg.mode = versionMode
	default:
		cfg.mode = runMode
	}
	return cfg
}

func printHelp(options kong.HelpOptions, ctx *kong.Context) error {
	if err := kong.DefaultHelpPrinter(options, ctx); err != nil {
		return err
	}
	if strings.HasPrefix(ctx.Command(), "run") {
		loggingHelp := `
Log modules:
  The --log flag accepts a comma-separated list of modules.

  Valid log modules are:
%s

  As a special case, the following values are accepted:
    - no                     Disable all logging.
    - all                    Enable all logs.
`
		var strs []string
		for _, m := range log.ModuleNames() {
			strs = append(strs, "    - "+m)
		}

		fmt.Fprintf(os.Stderr, loggingHelp, strings.Join(strs, "\n"))
	}

	return nil
}

type logModMask log.ModuleMask

// Decode decodes a comma-separated list of module names into a module mask.
//
// Implements kong.MapperValue interface.
func (lm logModMask) Decode(ctx *kong.DecodeContext) error {
	nolog := false
	allLogs := false

	tok := ctx.Scan.Pop()
	for _, v := range strings.Split(tok.Value.(string), ",") {
		switch v {
		case "all":
			allLogs = true
		case "no":
			nolog = true
		default:
			mod, ok := log.ModuleByName(v)
			if !ok {
				return fmt.Errorf("unknown log module %s", v)
			}
			lm |= logModMask(mod.Mask())
		}
	}

	if nolog {
		if allLogs {
			return fmt.Errorf("cannot use 'all' and 'no' together")
		}
		if lm != 0 {
			return fmt.Errorf("cannot combine 'no' with other log modules")
		}
		log.Disable()
		return nil
	}

	if allLogs {
		lm = logModMask(log.ModuleMaskAll)
	}

	log.EnableDebugModules(log.ModuleMask(lm))
	return nil
}

type outfile struct {
	w     io.Writer
	name  string
	close func() error
}

// Decode decodes FILE|stdout|stderr into an io.WriteCloser
// that writes to that file.
//
// Implements kong.MapperValue interface.
func (f *outfile) Decode(ctx *kong.DecodeContext) error {
	tok := ctx.Scan.Pop()
	f.name = tok.Value.(string)
	f.close = func() error { return nil }

	switch f.name {
	case "stdout":
		f.w = os.Stdout
	case "stderr":
		f.w = os.Stderr
	default:
		fd, err := os.Create(f.name)
		if err != nil {
			return err
		}
		f.w = fd
		f.close = fd.Close
	}
	return nil
}

func (f *outfile) String() string              { return f.name }
func (f *outfile) Write(p []byte) (int, error) { return f.w.Write(p) }
func (f *outfile) Close() error                { return f.close() }

func checkf(err error, format string, args ...any) {
	if err == nil {
		return
	}
	fatalf(format+".\n"+err.Error(), args...)
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "fatal error:")
	fmt.Fprintf(os.Stderr, "\n\t%s\n", fmt.Sprintf(format, args...))
	os.Exit(1)
}
