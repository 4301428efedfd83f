package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"

	"tablecast/internal/config"
)

const (
	AppName    = "tablecast"
	AppID      = "com.tablecast.relay"
	AppVersion = "1.0.0"
)

var app = &cli.App{
	Name:            AppName,
	Usage:           "relay a perspective-corrected camera view with the background removed",
	Version:         AppVersion,
	HideHelpCommand: true,
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "load configuration from `FILE`",
			EnvVars: []string{"TABLECAST_CONFIG"},
		},
		&cli.StringFlag{
			Name:    "device",
			Aliases: []string{"d"},
			Usage:   "capture device index, video file, stream URL or still image",
			EnvVars: []string{"TABLECAST_DEVICE"},
		},
		&cli.StringFlag{
			Name:    "depth",
			Usage:   "16-bit depth image registered to the capture device",
			EnvVars: []string{"TABLECAST_DEPTH"},
		},
		&cli.StringFlag{
			Name:    "sink",
			Usage:   "where corrected frames go: window or web",
			EnvVars: []string{"TABLECAST_SINK"},
		},
		&cli.StringFlag{
			Name:    "listen",
			Usage:   "address of the web viewer",
			EnvVars: []string{"TABLECAST_LISTEN"},
		},
		&cli.StringFlag{
			Name:    "calibration",
			Usage:   "file the perspective transform is persisted to",
			EnvVars: []string{"TABLECAST_CALIBRATION"},
		},
		&cli.IntFlag{
			Name:    "width",
			Usage:   "output width in pixels",
			EnvVars: []string{"TABLECAST_WIDTH"},
		},
		&cli.IntFlag{
			Name:    "height",
			Usage:   "output height in pixels",
			EnvVars: []string{"TABLECAST_HEIGHT"},
		},
		&cli.BoolFlag{
			Name:    "no-filter",
			Usage:   "start with background filtering off",
			EnvVars: []string{"TABLECAST_NO_FILTER"},
		},
		&cli.StringFlag{
			Name:    "log-level",
			Usage:   "debug, info, warn or error",
			EnvVars: []string{"TABLECAST_LOG_LEVEL"},
		},
		&cli.StringFlag{
			Name:    "log-file",
			Usage:   "also write logs to `FILE`, rotated by size",
			EnvVars: []string{"TABLECAST_LOG_FILE"},
		},
	},
	Action: func(c *cli.Context) error {
		cfg, err := loadConfig(c)
		if err != nil {
			return err
		}
		application, err := NewApplication(cfg)
		if err != nil {
			return err
		}
		return application.Run()
	},
}

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "load .env: %v\n", err)
		os.Exit(1)
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", AppName, err)
		os.Exit(1)
	}
}

// loadConfig reads the config file and lets explicitly set flags win.
func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, err
	}

	if c.IsSet("device") {
		cfg.Capture.Device = c.String("device")
	}
	if c.IsSet("depth") {
		cfg.Depth.File = c.String("depth")
	}
	if c.IsSet("sink") {
		cfg.Sink.Kind = c.String("sink")
	}
	if c.IsSet("listen") {
		cfg.Sink.Listen = c.String("listen")
	}
	if c.IsSet("calibration") {
		cfg.Calibration.File = c.String("calibration")
	}
	if c.IsSet("width") {
		cfg.Output.Width = c.Int("width")
	}
	if c.IsSet("height") {
		cfg.Output.Height = c.Int("height")
	}
	if c.Bool("no-filter") {
		cfg.Filter.Enabled = false
	}
	if c.IsSet("log-level") {
		cfg.Log.Level = c.String("log-level")
	}
	if c.IsSet("log-file") {
		cfg.Log.File = c.String("log-file")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
