package main

import (
	"fmt"
	"os"
	"runtime/pprof"

	"github.com/veandco/go-sdl2/sdl"

	"gsynth/emu"
	"gsynth/gs"
	"gsynth/gsdump"
)

// emuMain replays the dump with a renderer, in a window or headless.
func emuMain(args Run) {
	var exitcode int
	sdl.Main(func() {
		f, err := os.Open(args.DumpPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error opening dump: %s\n", err)
			exitcode = 1
			return
		}
		defer f.Close()

		reader, err := gsdump.NewReader(f)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error reading dump: %s\n", err)
			exitcode = 1
			return
		}

		cfg := emu.LoadConfigOrDefault()
		if args.Renderer != "" {
			cfg.Render.Renderer = args.Renderer
		}
		if args.Threads >= 0 {
			cfg.Render.ExtraThreads = args.Threads
		}
		if args.Scale > 0 {
			cfg.Video.Scale = args.Scale
		}
		if args.Monitor != 0 {
			cfg.Video.Monitor = args.Monitor
		}

		var dev gs.Device
		if args.Headless {
			dev = &gs.NullDevice{}
		} else {
			gldev := emu.NewGLDevice("gsynth", cfg.Video.Scale, cfg.Video.Monitor)
			gldev.SetVSync(!cfg.Video.DisableVSync)
			dev = gldev
		}

		emulator, err := emu.Launch(reader, dev, cfg)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to start replay: %v\n", err)
			exitcode = 1
			return
		}
		emulator.SetLoopDump(!args.Once && !args.Headless)

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

		emulator.Run()
	})
	os.Exit(exitcode)
}

// infosMain prints dump metadata without replaying it.
func infosMain(args Infos) {
	f, err := os.Open(args.DumpPath)
	checkf(err, "error opening dump")
	defer f.Close()

	reader, err := gsdump.NewReader(f)
	checkf(err, "error reading dump")

	infos, err := gsdump.Scan(reader)
	checkf(err, "error scanning dump")

	if args.JSON {
		checkf(infos.WriteJSON(os.Stdout), "error writing json")
		return
	}
	infos.WriteText(os.Stdout)
}
