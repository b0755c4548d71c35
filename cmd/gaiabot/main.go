package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"

	"github.com/roelfdiedericks/gaiabot/internal/bot"
	"github.com/roelfdiedericks/gaiabot/internal/bus"
	"github.com/roelfdiedericks/gaiabot/internal/config"
	"github.com/roelfdiedericks/gaiabot/internal/llm"
	"github.com/roelfdiedericks/gaiabot/internal/logging"
	"github.com/roelfdiedericks/gaiabot/internal/metrics"
	"github.com/roelfdiedericks/gaiabot/internal/paths"
	"github.com/roelfdiedericks/gaiabot/internal/types"
	"github.com/roelfdiedericks/gaiabot/internal/world"
)

const version = "0.1.0"

// CLI is the command line.
type CLI struct {
	Config string `help:"Config file (default ~/.gaiabot/gaiabot.json)" short:"c" type:"path"`
	Debug  bool   `help:"Debug logging" short:"d"`
	Trace  bool   `help:"Trace logging"`

	Run      RunCmd      `cmd:"" default:"1" help:"Connect to the world and serve chat"`
	Classify ClassifyCmd `cmd:"" help:"Route one chat line offline and print the decision"`
	Init     InitCmd     `cmd:"" help:"Write a default config file"`
	Version  VersionCmd  `cmd:"" help:"Print version"`
}

// setup loads config and initialises logging.
func (c *CLI) setup() (*config.Config, string) {
	cfg, path, err := config.Load(c.Config)
	if err != nil {
		logging.Init(logging.DefaultConfig())
		logging.L_fatal("failed to load config", "error", err)
	}

	level := logging.ParseLevel(cfg.LogLevel)
	switch {
	case c.Trace:
		level = logging.LevelTrace
	case c.Debug:
		level = logging.LevelDebug
	}
	logging.Init(&logging.Config{
		Level:      level,
		TimeFormat: "15:04:05",
		ShowCaller: level >= logging.LevelDebug,
	})
	return cfg, path
}

func newProvider(cfg *config.Config) llm.Provider {
	provider, err := llm.NewProvider(cfg.Agent.Name, cfg.LLM.ProviderConfig)
	if err != nil {
		logging.L_warn("model provider unavailable", "type", cfg.LLM.Type, "error", err)
		return nil
	}
	return provider
}

// RunCmd serves the bot until interrupted.
type RunCmd struct{}

func (r *RunCmd) Run(cli *CLI) error {
	cfg, path := cli.setup()
	logging.L_info("gaiabot starting", "version", version, "world", cfg.World.URL)

	if cfg.Metrics.DBPath != config.MetricsDisabled {
		dbPath := cfg.Metrics.DBPath
		if dbPath == "" {
			var err error
			if dbPath, err = metrics.DefaultDBPath(); err != nil {
				logging.L_warn("metrics: no data dir", "error", err)
			}
		}
		if dbPath != "" {
			m := metrics.GetInstance()
			if err := m.Persist(dbPath, cfg.Metrics.Flush); err != nil {
				logging.L_warn("metrics: persistence disabled", "error", err)
			} else {
				defer m.Close()
			}
		}
	}

	events := bus.Default()
	if path != "" {
		w, err := config.NewWatcher(path, events, config.DefaultDebounce)
		if err != nil {
			logging.L_warn("config watcher unavailable", "error", err)
		} else {
			w.Start()
			defer w.Stop()
		}
	}

	client := world.NewClient(world.ClientConfig{
		URL:            cfg.World.URL,
		Token:          cfg.World.Token,
		Username:       cfg.World.Username,
		Insecure:       cfg.World.Insecure,
		ReconnectDelay: time.Duration(cfg.World.ReconnectDelayMs) * time.Millisecond,
		RequestTimeout: time.Duration(cfg.World.RequestTimeoutMs) * time.Millisecond,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		logging.SetShuttingDown()
		logging.L_info("shutting down")
	}()

	b := bot.New(cfg, client, newProvider(cfg), events)
	return b.Run(ctx)
}

// ClassifyCmd routes a single line with no world attached.
type ClassifyCmd struct {
	Text   string `arg:"" help:"Chat line"`
	Sender string `help:"Sender name" default:"player"`
}

func (c *ClassifyCmd) Run(cli *CLI) error {
	cfg, _ := cli.setup()

	offline := world.Offline{Name: cfg.World.Username}
	router := bot.BuildRouter(cfg, offline, nil, newProvider(cfg))
	router.Dispatcher.MarkReady()

	d := router.Dispatcher.Dispatch(context.Background(), types.NewMessage(c.Sender, c.Text))
	fmt.Println(d.String())
	if d.Kind == types.DecisionInvoke {
		if ann := router.Registry.Announcement(d.Action, d.Params); ann != "" {
			fmt.Printf("announce: %s\n", ann)
		}
	}
	return nil
}

// InitCmd writes the default config.
type InitCmd struct {
	Force bool `help:"Overwrite an existing file"`
}

func (i *InitCmd) Run(cli *CLI) error {
	path := cli.Config
	if path == "" {
		var err error
		if path, err = paths.DefaultConfigFile(); err != nil {
			return err
		}
	}
	if err := paths.EnsureParentDir(path); err != nil {
		return err
	}
	if _, err := os.Stat(path); err == nil && !i.Force {
		return fmt.Errorf("%s exists (use --force)", path)
	}
	if err := config.Save(path, config.Default()); err != nil {
		return err
	}
	fmt.Printf("wrote %s\n", path)
	return nil
}

// VersionCmd prints the version.
type VersionCmd struct{}

func (v *VersionCmd) Run() error {
	fmt.Printf("gaiabot %s\n", version)
	return nil
}

func main() {
	cli := &CLI{}
	ctx := kong.Parse(cli,
		kong.Name("gaiabot"),
		kong.Description("Chat-driven intent router for a game agent"),
		kong.UsageOnError(),
	)
	ctx.FatalIfErrorf(ctx.Run(cli))
}
