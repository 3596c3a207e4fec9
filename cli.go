package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/alecthomas/kong"

	"gsynth/emu/log"
)

type mode byte

const (
	runMode     mode = iota // Replay a dump
	infosMode               // Show dump infos
	versionMode             // Show gsynth version
)

type (
	CLI struct {
		Run     Run     `cmd:"" help:"Replay a GS dump in the emulator. (default command)" default:"true"`
		Infos   Infos   `cmd:"" help:"Show GS dump infos."`
		Version Version `cmd:"" help:"Show gsynth version."`

		Log logModMask `help:"${log_help}" placeholder:"mod0,mod1,..."`

		mode mode
	}

	Run struct {
		DumpPath string `arg:"" name:"/path/to/dump" help:"${dumppath_help}" required:"true" type:"existingfile"`

		Renderer   string `name:"renderer" help:"Renderer to use (sw or hw)." enum:"sw,hw," default:""`
		Threads    int    `name:"threads" help:"Extra rasterizer threads." default:"-1"`
		Scale      int    `name:"scale" help:"Window scale factor." default:"0"`
		Monitor    int32  `name:"monitor" help:"Monitor index to use." default:"0"`
		Headless   bool   `name:"headless" help:"Replay without a window."`
		Once       bool   `name:"once" help:"Replay the dump once instead of looping."`
		CPUProfile string `name:"cpuprofile" help:"${cpuprofile_help}" type:"path"`
	}

	Infos struct {
		DumpPath string `arg:"" name:"/path/to/dump" type:"existingfile"`
		JSON     bool   `name:"json" help:"Output machine-readable JSON."`
	}

	Version struct{}
)

var vars = kong.Vars{
	"dumppath_help":   "Recorded GS register stream to replay.",
	"cpuprofile_help": "Write CPU profile to file. (only when replaying a dump)",
	"log_help":        "Enable logging for specified modules.",
}

func parseArgs(args []string) CLI {
	var cfg CLI
	parser, err := kong.New(&cfg,
		kong.Name("gsynth"),
		kong.Description("Graphics synthesizer emulator."),
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
	case "infos </path/to/dump>":
		cfg.mode = infosMode
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
