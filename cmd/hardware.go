package cmd

import (
	"fmt"
	"os"

	"github.com/smazurov/effectnode/internal/config"
	"github.com/spf13/cobra"
)

// CreateHardwareCmd creates the hardware command.
func CreateHardwareCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "hardware",
		Short: "Create and check hardware descriptor files",
	}

	var force bool
	initCmd := &cobra.Command{
		Use:   "init [path]",
		Short: "Write the default board layout",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := os.Stat(args[0]); err == nil && !force {
				return fmt.Errorf("%s already exists, use --force to overwrite", args[0])
			}
			if err := config.SaveHardware(args[0], config.DefaultHardware()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", args[0])
			return nil
		},
	}
	initCmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite an existing file")

	checkCmd := &cobra.Command{
		Use:   "check [path]",
		Short: "Validate a hardware descriptor",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := os.Stat(args[0]); err != nil {
				return err
			}
			hw, err := config.LoadHardware(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d registers, %d effects, %d axes, infrared %t\n",
				args[0], len(hw.Registers), len(hw.Effects), len(hw.Axes), hw.Infrared != nil)
			return nil
		},
	}

	cmd.AddCommand(initCmd, checkCmd)
	return cmd
}
