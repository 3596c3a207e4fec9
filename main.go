// Command gsynth replays recorded graphics-synthesizer register streams.
package main

import (
	"fmt"
	"os"
)

var version = "devel"

func main() {
	cli := parseArgs(os.Args[1:])

	switch cli.mode {
	case runMode:
		emuMain(cli.Run)
	case infosMode:
		infosMain(cli.Infos)
	case versionMode:
		fmt.Println("gsynth", version)
	}
}
