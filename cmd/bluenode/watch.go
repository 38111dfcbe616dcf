package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/srg/bluenode/internal/device/goble"
	"github.com/srg/bluenode/manager"
)

// watchCmd represents the watch command
var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Continuously scan and show a live node table",
	Long: `Scan in the background and keep a live table of discovered nodes on
screen, refreshed once a second, until the duration elapses or Ctrl+C is
pressed.`,
	RunE: runWatch,
}

var (
	watchDuration     time.Duration
	watchShowWarnings bool
	watchVerbose      bool
)

func init() {
	watchCmd.Flags().DurationVarP(&watchDuration, "duration", "d", time.Hour, "How long to keep watching")
	watchCmd.Flags().BoolVar(&watchShowWarnings, "show-warnings", false, "Report advertisements that could not be decoded")
	watchCmd.Flags().BoolVar(&watchVerbose, "verbose", false, "Enable debug logging")
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("show-warnings") {
		cfg.ShowWarnings = watchShowWarnings
	}

	logger, err := configureLogger(cmd, cfg, "verbose")
	if err != nil {
		return err
	}
	cmd.SilenceUsage = true

	driver, err := goble.NewDriver(logger)
	if err != nil {
		return fmt.Errorf("failed to open BLE adapter: %w", err)
	}

	m, err := manager.New(driver, logger)
	if err != nil {
		return err
	}
	defer func() { _ = m.Close() }()

	if _, err := m.StartDiscovery(cfg.ShowWarnings, watchDuration); err != nil {
		return err
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	redraw := func() error {
		clearScreen(os.Stdout)
		fmt.Println("Watching for BLE nodes (Ctrl+C to stop)")
		fmt.Println()
		return displayNodes(os.Stdout, m, "table")
	}
	if err := redraw(); err != nil {
		return err
	}

	for {
		select {
		case <-sigCh:
			fmt.Println("\nCtrl+C pressed, stopping discovery...")
			_, err := m.StopDiscovery()
			if derr := redraw(); derr != nil {
				return derr
			}
			return err

		case <-ticker.C:
			// The scan worker self-stops at the deadline; notice and exit.
			if !m.IsDiscovering() {
				return redraw()
			}
			if err := redraw(); err != nil {
				return err
			}
		}
	}
}
