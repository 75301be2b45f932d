package main

import (
	"fmt"
	"os"
	"runtime/debug"
)

func main() {
	cfg := parseArgs(os.Args[1:])

	switch cfg.mode {
	case versionMode:
		printVersion()
	case romsetInfosMode:
		romsetInfosMain(cfg.RomsetInfos)
	case configMode:
		configMain(cfg.Config)
	case runMode:
		emuMain(cfg.Run)
	}
}

func printVersion() {
	version := "(devel)"
	if bi, ok := debug.ReadBuildInfo(); ok && bi.Main.Version != "" {
		version = bi.Main.Version
	}
	fmt.Println("arcore", version)
}
