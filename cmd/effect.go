package cmd

import (
	"context"
	"fmt"
	"maps"
	"os"
	"os/signal"
	"slices"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/smazurov/effectnode/internal/config"
	"github.com/smazurov/effectnode/internal/logging"
	"github.com/spf13/cobra"
)

// CreateEffectCmd creates the effect command and its subcommands.
func CreateEffectCmd() *cobra.Command {
	var hardwareFile string

	cmd := &cobra.Command{
		Use:   "effect",
		Short: "Inspect and run effects without the server",
	}
	cmd.PersistentFlags().StringVar(&hardwareFile, "hardware", "effects.toml", "Hardware descriptor file")

	cmd.AddCommand(
		createEffectListCmd(&hardwareFile),
		createEffectRunCmd(&hardwareFile),
		createRotateCmd(&hardwareFile),
	)
	return cmd
}

func createEffectListCmd(hardwareFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List effects and axes in the hardware file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			hw, err := config.LoadHardware(*hardwareFile)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tTYPE\tREGISTER\tMASK")
			for _, name := range hw.EffectNames() {
				ec := hw.Effects[name]
				fmt.Fprintf(w, "%s\t%s\t%s\t%#x\n", name, ec.Kind, ec.Register, ec.Mask)
			}
			for _, name := range slices.Sorted(maps.Keys(hw.Axes)) {
				fmt.Fprintf(w, "%s\taxis\t%s\t-\n", name, hw.Axes[name].Register)
			}
			return w.Flush()
		},
	}
}

func createEffectRunCmd(hardwareFile *string) *cobra.Command {
	var duration time.Duration

	cmd := &cobra.Command{
		Use:   "run [effect]",
		Short: "Run one effect until interrupted",
		Long: `Builds the board, starts the named effect and stops it again on Ctrl-C or ` +
			`when --duration elapses. Useful for checking wiring on a new board.`,
		Args: cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			logging.Initialize(logging.Config{Level: "info", Format: "text"})
			logger := logging.GetLogger("effects").With("effect", args[0])

			board, err := openBoard(*hardwareFile, logging.GetLogger("device"))
			if err != nil {
				return err
			}
			defer board.Close()

			ctrl, err := board.Controller(args[0])
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			if duration > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, duration)
				defer cancel()
			}

			if err := ctrl.Start(); err != nil {
				return err
			}
			<-ctx.Done()

			if err := ctrl.Stop(); err != nil {
				return err
			}
			s := ctrl.Status()
			logger.Info("Effect finished", "ticks", s.Ticks, "forced_stops", s.Forced)
			return nil
		},
	}

	cmd.Flags().DurationVar(&duration, "duration", 0, "Stop after this long (0 runs until interrupted)")
	return cmd
}

func createRotateCmd(hardwareFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "rotate [axis] [degrees]",
		Short: "Rotate a stepper axis and wait for it to finish",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var degrees float64
			if _, err := fmt.Sscanf(args[1], "%g", &degrees); err != nil {
				return fmt.Errorf("invalid angle %q: %w", args[1], err)
			}

			logging.Initialize(logging.Config{Level: "info", Format: "text"})
			board, err := openBoard(*hardwareFile, logging.GetLogger("device"))
			if err != nil {
				return err
			}
			defer board.Close()

			steps, err := board.Rotate(args[0], degrees)
			if err != nil {
				return err
			}

			axis, _ := board.Effects().Axis(args[0])
			for axis.Controller().Status().TaskAlive {
				time.Sleep(10 * time.Millisecond)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s rotated %g degrees in %d steps\n", args[0], degrees, steps)
			return nil
		},
	}
}
