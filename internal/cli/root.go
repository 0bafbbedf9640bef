package cli

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/nhle/autoreply/internal/model"
)

// rootOptions is shared by every subcommand. cfg and logger are filled in
// before any subcommand runs.
type rootOptions struct {
	configPath string
	envFile    string
	verbose    bool

	cfg    *model.AppConfig
	logger *slog.Logger
}

// NewRoot builds the autoreply command tree.
func NewRoot() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:   "autoreply",
		Short: "Summarize unread mail with an LLM agent and send auto-replies",
		Long: `autoreply checks the inbox for unread messages, asks an LLM agent for
a short summary of each one and answers the sender with a fixed reply.

Running autoreply without a subcommand is the same as "autoreply run".`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.load(cmd.ErrOrStderr())
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOnce(cmd, opts, runFlags{})
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", model.DefaultConfigPath(), "path to the YAML config file")
	flags.StringVar(&opts.envFile, "env-file", ".env", "dotenv file loaded before reading the environment")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(
		runCmd(opts),
		historyCmd(opts),
		credsCmd(opts),
	)
	return root
}

// load reads the dotenv file, the config and sets up logging.
func (o *rootOptions) load(logOut io.Writer) error {
	if o.envFile != "" {
		if err := godotenv.Load(o.envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("loading %s: %w", o.envFile, err)
		}
	}

	cfg, err := model.LoadConfig(o.configPath)
	if err != nil {
		return err
	}
	o.cfg = cfg

	level, err := parseLevel(cfg.Log.Level)
	if err != nil {
		return err
	}
	if o.verbose {
		level = slog.LevelDebug
	}

	o.logger = slog.New(slog.NewTextHandler(logOut, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(o.logger)

	return nil
}

// parseLevel maps a config level name to a slog level. Empty means info.
func parseLevel(name string) (slog.Level, error) {
	var level slog.Level
	if strings.TrimSpace(name) == "" {
		return slog.LevelInfo, nil
	}
	if err := level.UnmarshalText([]byte(name)); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid log level %q", name)
	}
	return level, nil
}
