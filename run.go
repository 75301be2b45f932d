package main

import (
	"fmt"
	"os"
	"os/signal"
	"runtime/pprof"

	"github.com/BurntSushi/toml"

	"arcore/emu"
	"arcore/emu/log"
	"arcore/emu/rpc"
	"arcore/hw/clock"
	"arcore/romset"
)

// readyTimeout is the emulated time given to the machine for the download
// and memory initialization.
const readyTimeout = 10 * clock.Second

// emuMain runs the emulator with the given ROM set.
func emuMain(args Run) {
	cfg, err := emu.LoadConfigOrDefault(args.Config)
	checkf(err, "failed to load configuration")
	if args.Fallback >= 0 {
		if args.Fallback > 0xFF {
			fatalf("invalid fallback game %d", args.Fallback)
		}
		cfg.Options.FallbackGame = uint8(args.Fallback)
	}
	cfg.Options.Rotate = cfg.Options.Rotate || args.Rotate

	rs, err := romset.Open(args.RomSet)
	checkf(err, "failed to read ROM set")

	emulator, err := emu.Launch(rs, cfg)
	checkf(err, "failed to start emulator")

	if args.Wav != "" {
		f, err := os.Create(args.Wav)
		checkf(err, "failed to create wav file")
		defer f.Close()
		checkf(emulator.RecordAudio(f), "failed to record audio")
	}

	if args.Keys {
		kb, err := emu.StartKeyboard(os.Stdin)
		checkf(err, "failed to read keyboard")
		kb.HoldFrames = cfg.Input.HoldFrames
		kb.DIP = cfg.Input.DIP
		emulator.SetInput(kb)
		defer kb.Stop()
	}

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, os.Interrupt)
	go func() {
		<-sigc
		emulator.Stop()
	}()

	if args.Port != 0 {
		srv, err := rpc.NewServer(args.Port, emulator)
		checkf(err, "failed to start rpc server")
		defer srv.Close()
	}

	if args.CPUProfile != "" {
		f, err := os.Create(args.CPUProfile)
		checkf(err, "failed to create cpu profile file")
		checkf(pprof.StartCPUProfile(f), "failed to start cpu profile")
		defer func() {
			pprof.StopCPUProfile()
			f.Close()
			fmt.Println("CPU profile written to", args.CPUProfile)
		}()
	}

	if !emulator.WaitReady(readyTimeout) {
		log.ModEmu.WarnZ("Machine not ready").Stringer("after", readyTimeout).End()
	} else {
		emulator.Run(args.Frames)
	}

	if err := emulator.Close(); err != nil {
		log.ModEmu.WarnZ("Failed to terminate audio recording").Error("err", err).End()
	}

	if args.Screenshot != "" {
		if img := emulator.Frame(); img == nil {
			log.ModEmu.WarnZ("No frame to save").End()
		} else if err := emu.SaveAsPNG(img, args.Screenshot); err != nil {
			log.ModEmu.WarnZ("Failed to save screenshot").String("path", args.Screenshot).Error("err", err).End()
		}
	}

	if args.Status != nil {
		defer args.Status.Close()
		checkf(emu.WriteStatus(args.Status, emulator.Status()), "failed to write status")
	}
}

func romsetInfosMain(args RomsetInfos) {
	rs, err := romset.Open(args.RomSet)
	checkf(err, "failed to read ROM set")
	rs.PrintInfos(os.Stdout)

	cfg, err := emu.LoadConfigOrDefault(args.Config)
	checkf(err, "failed to load configuration")
	sessions, err := rs.Sessions(cfg.Memory)
	checkf(err, "ROM set doesn't fit the memory layout")

	fmt.Println("sessions:")
	for _, s := range sessions {
		fmt.Printf("  %-10s %#08x bytes\n", s.Index, len(s.Data))
	}
}

func configMain(args ConfigCmd) {
	cfg, err := emu.LoadConfigOrDefault(args.Config)
	checkf(err, "failed to load configuration")

	if args.Save {
		checkf(emu.SaveConfig(cfg, ""), "failed to save configuration")
		fmt.Println("configuration saved in", emu.ConfigDir())
		return
	}
	checkf(toml.NewEncoder(os.Stdout).Encode(cfg), "failed to encode configuration")
}
