package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/born-ml/seqneck/internal/config"
)

const version = "v0.1.0-dev"

// dotEnvFile is read from the working directory when present.
const dotEnvFile = ".env"

type globalOptions struct {
	configPath string
	verbose    bool
	logger     *slog.Logger
}

// NewCLI returns the root command.
func NewCLI() *cobra.Command {
	opts := &globalOptions{}

	rootCmd := &cobra.Command{
		Use:           "seqneck",
		Short:         "Sequence necks for text recognition models",
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true
			opts.logger = newLogger(cmd.ErrOrStderr(), opts.verbose)
			return loadDotEnv(dotEnvFile)
		},
	}

	rootCmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "YAML or TOML config file")
	rootCmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Enable debug logging")

	cobra.EnableCommandSorting = false

	rootCmd.AddCommand(
		newDescribeCmd(opts),
		newRunCmd(opts),
		newVersionCmd(),
	)

	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "seqneck %s\n", version)
		},
	}
}

func newLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// loadDotEnv loads path into the environment. A missing file is not an error.
func loadDotEnv(path string) error {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	} else if err != nil {
		return fmt.Errorf("failed to check %s: %w", path, err)
	}

	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("could not load %s: %w", path, err)
	}
	return nil
}

func (o *globalOptions) loadConfig() (config.Config, error) {
	if o.configPath == "" {
		return config.Config{}, errors.New("no config file given (use -c)")
	}

	cfg, err := config.Load(o.configPath)
	if err != nil {
		return config.Config{}, err
	}

	o.logger.Debug("loaded config", "path", o.configPath, "backend", cfg.Backend, "neck", cfg.Neck.Type)
	return cfg, nil
}
