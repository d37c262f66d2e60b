package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/dverna/wisp/internal"
	"github.com/dverna/wisp/internal/engine"
	"github.com/dverna/wisp/internal/index"
	"github.com/dverna/wisp/internal/linktree"
	"github.com/dverna/wisp/internal/mcpserver"
	"github.com/dverna/wisp/internal/noteservice"
	"github.com/dverna/wisp/internal/storage"
	pkgconfig "github.com/dverna/wisp/pkg/config"
)

func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	cfg := internal.NewDefaultConfig()
	if err := pkgconfig.LoadIfExists(cmd.String("config"), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

func serve(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := internal.Run(ctx, internal.WithConfig(cfg)); err != nil {
		return fmt.Errorf("app run error: %w", err)
	}
	return nil
}

// offlineEngine builds the link graph straight from the vault, without
// the SQLite index or HTTP server. Used by the one-shot commands.
func offlineEngine(cfg *internal.Config) (*engine.Engine, error) {
	store, err := storage.NewFS(cfg.Vault.Path)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}
	eng := engine.New(cfg.Layout, cfg.Viewport.Config)
	eng.SetBounds(cfg.Viewport.Rows, cfg.Viewport.Cols)

	metas, err := store.List("")
	if err != nil {
		return nil, fmt.Errorf("list vault: %w", err)
	}
	for _, m := range metas {
		data, err := store.Read(m.Identity)
		if err != nil {
			continue
		}
		if _, err := eng.UpsertNote(m.Identity, string(data)); err != nil {
			return nil, fmt.Errorf("load %s: %w", m.Identity, err)
		}
	}
	return eng, nil
}

// offlineService builds the full service stack for one-shot commands
// that mutate the vault.
func offlineService(cfg *internal.Config) (*noteservice.Service, func(), error) {
	store, err := storage.NewFS(cfg.Vault.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("init storage: %w", err)
	}
	db, err := index.Open(cfg.SQLite.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("init index: %w", err)
	}
	eng := engine.New(cfg.Layout, cfg.Viewport.Config)
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	if err := index.Sync(db, store, eng, logger); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("sync: %w", err)
	}
	return noteservice.NewService(store, db, eng), func() { db.Close() }, nil
}

func graphCmd(_ context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	eng, err := offlineEngine(cfg)
	if err != nil {
		return err
	}
	eng.StepN(int(cmd.Int("steps")))
	if cmd.Bool("dot") {
		fmt.Print(eng.ExportDOT())
		return nil
	}
	fmt.Print(engine.Render(eng.Snapshot()))
	return nil
}

func treeCmd(_ context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	mode, err := linktree.ParseSortMode(cmd.String("sort"))
	if err != nil {
		return fmt.Errorf("--sort must be alpha or links")
	}
	eng, err := offlineEngine(cfg)
	if err != nil {
		return err
	}
	fmt.Print(linktree.Render(eng.TreeSnapshot(mode)))
	return nil
}

func resolveCmd(ctx context.Context, cmd *cli.Command) error {
	identity := cmd.Args().First()
	if identity == "" {
		return fmt.Errorf("usage: wisp resolve <identity>")
	}
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	svc, cleanup, err := offlineService(cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	res, err := svc.Resolve(ctx, identity)
	if err != nil {
		return err
	}
	if res.Created {
		fmt.Printf("created: %s\n", res.Identity)
	} else {
		fmt.Printf("exists: %s\n", res.Identity)
	}
	return nil
}

func mcpCmd(_ context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	svc, cleanup, err := offlineService(cfg)
	if err != nil {
		return err
	}
	defer cleanup()
	return mcpserver.New(svc).ServeStdio()
}

func main() {
	configFlag := &cli.StringFlag{
		Name:        "config",
		Aliases:     []string{"c"},
		Usage:       "Path to config file",
		DefaultText: "config/config.yaml",
		Value:       "config/config.yaml",
		Sources:     cli.EnvVars("APP_CONFIG_FILE"),
	}

	cmd := &cli.Command{
		Name:   "wisp",
		Usage:  "Linked-notes service with a live force-directed link graph",
		Action: serve,
		Flags:  []cli.Flag{configFlag},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the HTTP server (default)",
				Action: serve,
				Flags:  []cli.Flag{configFlag},
			},
			{
				Name:   "graph",
				Usage:  "Render the link graph to stdout and exit",
				Action: graphCmd,
				Flags: []cli.Flag{
					configFlag,
					&cli.IntFlag{
						Name:  "steps",
						Usage: "Simulation steps to run before rendering",
						Value: 200,
					},
					&cli.BoolFlag{
						Name:  "dot",
						Usage: "Emit Graphviz DOT instead of a character grid",
					},
				},
			},
			{
				Name:   "tree",
				Usage:  "Print the link hierarchy as an indented forest",
				Action: treeCmd,
				Flags: []cli.Flag{
					configFlag,
					&cli.StringFlag{
						Name:  "sort",
						Usage: "Sibling order: alpha or links",
						Value: "alpha",
					},
				},
			},
			{
				Name:      "resolve",
				Usage:     "Follow a link target, creating a skeleton note if it is a stub",
				ArgsUsage: "<identity>",
				Action:    resolveCmd,
				Flags:     []cli.Flag{configFlag},
			},
			{
				Name:   "mcp",
				Usage:  "Serve Wisp tools over MCP on stdin/stdout",
				Action: mcpCmd,
				Flags:  []cli.Flag{configFlag},
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
