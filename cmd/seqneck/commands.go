package main

import (
	"errors"

	"github.com/spf13/cobra"
)

func newDescribeCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "describe",
		Short: "Show the configured neck and its state dict",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}

			return dispatch(task{ctx: cmd.Context(), cfg: cfg, out: cmd.OutOrStdout(), logger: opts.logger})
		},
	}
}

func newRunCmd(opts *globalOptions) *cobra.Command {
	fwd := &forwardOptions{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Decode a random feature map and print the output shape",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if fwd.batch <= 0 || fwd.width <= 0 || fwd.repeat <= 0 {
				return errors.New("--batch, --width and --repeat must be positive")
			}
			if fwd.height < 0 {
				return errors.New("--height must not be negative")
			}

			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}

			return dispatch(task{ctx: cmd.Context(), cfg: cfg, out: cmd.OutOrStdout(), logger: opts.logger, forward: fwd})
		},
	}

	cmd.Flags().IntVar(&fwd.batch, "batch", 1, "Batch size")
	cmd.Flags().IntVar(&fwd.height, "height", 0, "Feature map height (0 uses the height the neck expects)")
	cmd.Flags().IntVar(&fwd.width, "width", 32, "Feature map width")
	cmd.Flags().StringVar(&fwd.save, "save", "", "Write a checkpoint after the forward pass")
	cmd.Flags().IntVar(&fwd.repeat, "repeat", 1, "Number of independent batches to decode")
	cmd.Flags().IntVar(&fwd.workers, "workers", 0, "Concurrent decode calls (0 uses one per CPU)")

	return cmd
}
