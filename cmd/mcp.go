package cmd

import (
	"github.com/mark3labs/mcp-go/server"
	"github.com/smazurov/effectnode/internal/config"
	"github.com/smazurov/effectnode/internal/logging"
	"github.com/smazurov/effectnode/internal/tools"
	"github.com/smazurov/effectnode/internal/version"
	"github.com/spf13/cobra"
)

// CreateMCPCmd creates the mcp command.
func CreateMCPCmd() *cobra.Command {
	var configFile string
	var hardwareFile string
	var logLevel string

	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Serve device tools over MCP stdio",
		Long: `Builds the board from the hardware file and serves the lamp, motor and infrared tools ` +
			`to an MCP client over stdin/stdout. Logs go to stderr and the journal.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			logCfg := config.LoadLoggingConfig(configFile)
			if cmd.Flags().Changed("log-level") {
				logCfg.Level = logLevel
			}
			// stdout carries the protocol
			logCfg.Console = "stderr"
			logging.Initialize(logCfg)
			logger := logging.GetLogger("tools")

			board, err := openBoard(hardwareFile, logging.GetLogger("device"))
			if err != nil {
				return err
			}
			defer board.Close()

			if err := board.Start(); err != nil {
				logger.Warn("Board started with errors", "error", err)
			}

			s := tools.NewServer(board, version.Version, logger)
			logger.Info("Serving MCP over stdio", "hardware", hardwareFile)
			return server.ServeStdio(s)
		},
	}

	cmd.Flags().StringVarP(&configFile, "config", "c", "config.toml", "Service config file ([logging] section is used)")
	cmd.Flags().StringVar(&hardwareFile, "hardware", "effects.toml", "Hardware descriptor file")
	cmd.Flags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	return cmd
}
