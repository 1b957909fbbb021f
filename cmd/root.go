package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/agentic-research/blocktree/internal/config"
	"github.com/agentic-research/blocktree/internal/content"
	"github.com/agentic-research/blocktree/internal/editor"
	"github.com/agentic-research/blocktree/internal/prefs"
)

// Version is set at build time.
var Version = "dev"

var (
	configPath string
	dbPath     string
	logLevel   string
	logFormat  string
	outputJSON bool

	logger *slog.Logger
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config.hcl (default: user config dir)")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "Path to the preference database")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "Log format: text or json")
	rootCmd.PersistentFlags().BoolVar(&outputJSON, "json", false, "Print machine-readable JSON")
}

var rootCmd = &cobra.Command{
	Use:           "blocktree",
	Short:         "Inspect and edit the block trees of hosted CMS pages",
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		l, err := newLogger(cmd.ErrOrStderr(), logLevel, logFormat)
		if err != nil {
			return err
		}
		logger = l
		slog.SetDefault(l)
		return nil
	},
}

func newLogger(w io.Writer, level, format string) (*slog.Logger, error) {
	var lv slog.Level
	if err := lv.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid --log-level %q", level)
	}
	opts := &slog.HandlerOptions{Level: lv}
	switch strings.ToLower(format) {
	case "text", "":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("invalid --log-format %q", format)
	}
}

// env bundles what most commands need.
type env struct {
	cfg   config.Config
	store *prefs.Store
	svc   *editor.Service
}

func (e *env) Close() {
	if e.store != nil {
		_ = e.store.Close()
	}
}

func resolvedConfigPath() string {
	if configPath != "" {
		return configPath
	}
	return config.DefaultPath()
}

// openStore opens the preference database. --db wins; otherwise the path
// comes from the config file and environment, which cannot depend on the
// record stored in the database itself.
func openStore() (*prefs.Store, error) {
	path := dbPath
	if path == "" {
		pre, err := config.Load(resolvedConfigPath(), config.Record{})
		if err != nil {
			return nil, err
		}
		path = pre.DBPath
	}
	return prefs.Open(path)
}

func loadConfig(ctx context.Context, store *prefs.Store) (config.Config, error) {
	rec, err := store.Config(ctx)
	if err != nil {
		return config.Config{}, err
	}
	cfg, err := config.Load(resolvedConfigPath(), rec)
	if err != nil {
		return config.Config{}, err
	}
	if dbPath != "" {
		cfg.DBPath = dbPath
	}
	return cfg, nil
}

// setup loads configuration, opens the store and builds the editor service.
// When load is set the page list is fetched as well.
func setup(ctx context.Context, load bool, opts ...editor.Option) (*env, error) {
	store, err := openStore()
	if err != nil {
		return nil, err
	}
	e := &env{store: store}
	if e.cfg, err = loadConfig(ctx, store); err != nil {
		e.Close()
		return nil, err
	}
	if err := e.cfg.Validate(); err != nil {
		e.Close()
		return nil, fmt.Errorf("configuration incomplete (run 'blocktree config set'): %w", err)
	}

	client := content.NewClient(e.cfg, content.WithLogger(logger))
	opts = append([]editor.Option{editor.WithStore(store), editor.WithLogger(logger)}, opts...)
	e.svc = editor.New(client, opts...)
	if load {
		if err := e.svc.Load(ctx); err != nil {
			e.Close()
			return nil, err
		}
	}
	return e, nil
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
