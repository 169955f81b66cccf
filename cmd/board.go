package cmd

import (
	"fmt"
	"log/slog"

	"github.com/smazurov/effectnode/internal/config"
	"github.com/smazurov/effectnode/internal/device"
	"github.com/smazurov/effectnode/internal/output"
	"github.com/smazurov/effectnode/internal/uart"
)

// openBoard loads the hardware descriptor and builds a board on real drivers.
func openBoard(path string, logger *slog.Logger) (*device.Board, error) {
	hw, err := config.LoadHardware(path)
	if err != nil {
		return nil, err
	}

	board, err := device.Build(hw, device.Options{
		Factory:  output.NewFactory(logger),
		OpenPort: uart.Open,
		Logger:   logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build board from %s: %w", path, err)
	}
	return board, nil
}
