package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/smazurov/effectnode/internal/uart"
	"github.com/spf13/cobra"
)

// CreatePortsCmd creates the ports command.
func CreatePortsCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "ports",
		Short: "List serial ports",
		Long:  `Lists the serial ports on this host, e.g. to find the device path of the infrared transceiver.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ports, err := uart.ListPorts()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(ports)
			}

			if len(ports) == 0 {
				fmt.Fprintln(out, "No serial ports found")
				return nil
			}

			w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "PORT\tUSB\tVID:PID\tPRODUCT")
			for _, p := range ports {
				id := "-"
				if p.IsUSB {
					id = p.VID + ":" + p.PID
				}
				fmt.Fprintf(w, "%s\t%t\t%s\t%s\n", p.Name, p.IsUSB, id, p.Product)
			}
			return w.Flush()
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print as JSON")
	cmd.SetErr(os.Stderr)
	return cmd
}
