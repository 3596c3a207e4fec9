package emu

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/BurntSushi/toml"
	"github.com/kirsle/configdir"

	"gsynth/emu/log"
)

type Config struct {
	Video     VideoConfig     `toml:"video"`
	Render    RenderConfig    `toml:"render"`
	Emulation EmulationConfig `toml:"emulation"`
}

type VideoConfig struct {
	DisableVSync bool  `toml:"disable_vsync"`
	Scale        int   `toml:"scale"`
	Monitor      int32 `toml:"monitor"`
}

type EmulationConfig struct {
	// FrameCap paces replay at the given frames per second. 0 replays as
	// fast as the renderer allows.
	FrameCap int `toml:"frame_cap"`
}

type RenderConfig struct {
	// Renderer selects the draw path: "sw" or "hw".
	Renderer string `toml:"renderer"`

	// ExtraThreads is the number of rasterizer workers beyond the
	// caller thread. 0 draws inline.
	ExtraThreads int `toml:"extrathreads"`

	// AutoFlush splits draw batches when a primitive samples the
	// render target it is writing to.
	AutoFlush bool `toml:"autoflush"`
}

var ConfigDir string = sync.OnceValue(func() string {
	dir := configdir.LocalConfig("gsynth")
	if err := configdir.MakePath(dir); err != nil {
		log.ModEmu.Fatalf("failed to create directory %s: %v", dir, err)
	}
	return dir
})()

const cfgFilename = "config.toml"

func defaultConfig() Config {
	return Config{
		Video: VideoConfig{Scale: 1},
		Render: RenderConfig{
			Renderer:     "sw",
			ExtraThreads: 2,
			AutoFlush:    true,
		},
	}
}

// LoadConfigOrDefault loads the configuration from the gsynth config
// directory, or provide a default one.
func LoadConfigOrDefault() Config {
	var cfg Config
	_, err := toml.DecodeFile(filepath.Join(ConfigDir, cfgFilename), &cfg)
	if err != nil {
		return defaultConfig()
	}
	return cfg
}

// SaveConfig into gsynth config directory.
func SaveConfig(cfg Config) error {
	buf, err := toml.Marshal(cfg)
	if err != nil {
		return err
	}

	return os.WriteFile(filepath.Join(ConfigDir, cfgFilename), buf, 0644)
}
