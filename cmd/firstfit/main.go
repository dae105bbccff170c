package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/chzyer/readline"

	"github.com/KevoDB/firstfit/pkg/common/log"
	"github.com/KevoDB/firstfit/pkg/config"
	"github.com/KevoDB/firstfit/pkg/render"
	"github.com/KevoDB/firstfit/pkg/simulator"
	"github.com/KevoDB/firstfit/pkg/telemetry"
)

// Command completer for readline
var completer = readline.NewPrefixCompleter(
	readline.PcItem(".help"),
	readline.PcItem(".menu"),
	readline.PcItem(".stats"),
	readline.PcItem(".redraw",
		readline.PcItem("on"),
		readline.PcItem("off"),
	),
	readline.PcItem(".save"),
	readline.PcItem(".exit"),
	readline.PcItem("ALLOC"),
	readline.PcItem("FREE"),
	readline.PcItem("DISPLAY"),
	readline.PcItem("FRAG"),
	readline.PcItem("VIS"),
)

// Options holds the command line settings
type Options struct {
	ConfigPath string
	Total      int
	Blocks     string
	Policy     string
	Width      int
	LogLevel   string
	Telemetry  bool
	NoRedraw   bool

	// set records which flags were given explicitly
	set map[string]bool
}

func main() {
	opts, err := parseFlags(flag.CommandLine, os.Args[1:])
	if err != nil {
		os.Exit(2)
	}
	os.Exit(run(opts))
}

// parseFlags parses command line flags and returns Options
func parseFlags(fs *flag.FlagSet, args []string) (Options, error) {
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "firstfit - an interactive first-fit memory allocation simulator\n\n")
		fmt.Fprintf(fs.Output(), "Usage: firstfit [options]\n\n")
		fmt.Fprintf(fs.Output(), "Without -blocks or a config file the block layout is read interactively.\n\n")
		fmt.Fprintf(fs.Output(), "Options:\n")
		fs.PrintDefaults()
		fmt.Fprintf(fs.Output(), "\nStart firstfit and type .help for the command list\n")
	}

	var opts Options
	fs.StringVar(&opts.ConfigPath, "config", "", "Path to a JSON session config")
	fs.IntVar(&opts.Total, "total", 0, "Total memory size in units (defaults to the block sum)")
	fs.StringVar(&opts.Blocks, "blocks", "", `Block sizes, e.g. "100 500 200 300 600"`)
	fs.StringVar(&opts.Policy, "policy", "", "Allocation policy: strict or legacy")
	fs.IntVar(&opts.Width, "width", 0, "Width of the allocation bar in columns")
	fs.StringVar(&opts.LogLevel, "log-level", "", "Log level: debug, info, warn, error")
	fs.BoolVar(&opts.Telemetry, "telemetry", false, "Enable OpenTelemetry export (see FIRSTFIT_TELEMETRY_*)")
	fs.BoolVar(&opts.NoRedraw, "no-redraw", false, "Do not redraw the bar after each change")

	if err := fs.Parse(args); err != nil {
		return opts, err
	}

	opts.set = make(map[string]bool)
	fs.Visit(func(f *flag.Flag) {
		opts.set[f.Name] = true
	})
	return opts, nil
}

// buildConfig layers the config file, the environment and flags, in that
// order. The layout may still be missing afterwards.
func buildConfig(opts Options) (*config.Config, error) {
	cfg := config.NewDefaultConfig()
	if opts.ConfigPath != "" {
		loaded, err := config.LoadConfig(opts.ConfigPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", opts.ConfigPath, err)
		}
		cfg = loaded
	}
	cfg.LoadFromEnv()

	var sizes []int
	if opts.Blocks != "" {
		parsed, err := config.ParseBlockSizes(opts.Blocks)
		if err != nil {
			return nil, err
		}
		sizes = parsed
	}

	cfg.Update(func(c *config.Config) {
		if sizes != nil {
			c.BlockSizes = sizes
			c.TotalMemory = 0
		}
		if opts.set["total"] {
			c.TotalMemory = opts.Total
		}
		if opts.set["policy"] {
			c.Policy = opts.Policy
		}
		if opts.set["width"] {
			c.BarWidth = opts.Width
		}
		if opts.set["log-level"] {
			c.LogLevel = opts.LogLevel
		}
		if opts.NoRedraw {
			c.AutoRedraw = false
		}
	})

	// a total left unset defaults to the block sum
	if cfg.HasLayout() {
		total, layout := cfg.Layout()
		if total == 0 {
			cfg.SetLayout(0, layout)
		}
	}
	return cfg, nil
}

func newLogger(level string, out io.Writer) (*log.StandardLogger, error) {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	return log.NewStandardLogger(log.WithLevel(lvl), log.WithOutput(out)), nil
}

// run wires the session together and drives the REPL. It returns the
// process exit code.
func run(opts Options) int {
	cfg, err := buildConfig(opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	logger, err := newLogger(cfg.LogLevel, os.Stderr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	log.SetDefaultLogger(logger)

	historyFile := filepath.Join(os.TempDir(), ".firstfit_history")
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "firstfit> ",
		HistoryFile:     historyFile,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
		AutoComplete:    completer,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing readline: %s\n", err)
		return 1
	}
	defer rl.Close()

	out := rl.Stdout()
	fmt.Fprintln(out, "Welcome to the First Fit Memory Allocator")

	if !cfg.HasLayout() {
		total, sizes, err := promptLayout(rl, out)
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, readline.ErrInterrupt) {
				fmt.Fprintln(out, goodbye)
				return 0
			}
			fmt.Fprintf(os.Stderr, "Error reading input: %s\n", err)
			return 1
		}
		cfg.SetLayout(total, sizes)
	}

	telCfg := telemetry.DefaultConfig()
	telCfg.LoadFromEnv()
	if opts.Telemetry {
		telCfg.Enabled = true
	}
	tel, err := telemetry.New(telCfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing telemetry: %v\n", err)
		return 1
	}

	session, err := simulator.New(cfg,
		simulator.WithLogger(logger),
		simulator.WithTelemetry(tel),
	)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		tel.Shutdown(context.Background())
		return 1
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := session.Close(ctx); err != nil {
			logger.Error("failed to flush telemetry: %v", err)
		}
	}()

	redrawer := render.NewRedrawer(out, render.Bar{Width: cfg.BarWidth}, logger)
	redrawer.SetEnabled(cfg.AutoRedraw)
	session.Subscribe(redrawer)

	r := &repl{
		in:       rl,
		out:      out,
		session:  session,
		redrawer: redrawer,
		cfg:      cfg,
		bar:      render.Bar{Width: cfg.BarWidth},
	}
	r.printMenu()
	return r.loop(context.Background())
}
