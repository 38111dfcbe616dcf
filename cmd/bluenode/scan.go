package main

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/srg/bluenode/internal/device/goble"
	"github.com/srg/bluenode/internal/features"
	"github.com/srg/bluenode/internal/node"
	"github.com/srg/bluenode/manager"
)

// scanCmd represents the scan command
var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan for BLE nodes",
	Long: `Scan for and display Bluetooth Low Energy nodes in the vicinity.

The scan runs for a fixed duration and then prints every node seen, with its
name, address, RSSI, and - for nodes advertising a device identity payload -
the decoded feature list.`,
	RunE: runScan,
}

var (
	scanDuration     time.Duration
	scanFormat       string
	scanShowWarnings bool
	scanVerbose      bool
)

func init() {
	scanCmd.Flags().DurationVarP(&scanDuration, "duration", "d", 0, "Scan duration (default from config)")
	scanCmd.Flags().StringVarP(&scanFormat, "format", "f", "", "Output format (table, json, csv)")
	scanCmd.Flags().BoolVar(&scanShowWarnings, "show-warnings", false, "Report advertisements that could not be decoded")
	scanCmd.Flags().BoolVar(&scanVerbose, "verbose", false, "Enable debug logging")
}

func runScan(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if scanFormat != "" {
		cfg.OutputFormat = scanFormat
	}
	if scanDuration > 0 {
		cfg.ScanTimeout = scanDuration
	}
	if cmd.Flags().Changed("show-warnings") {
		cfg.ShowWarnings = scanShowWarnings
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := configureLogger(cmd, cfg, "verbose")
	if err != nil {
		return err
	}

	// All arguments validated - don't show usage on runtime errors
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

	interactive := term.IsTerminal(int(os.Stdout.Fd()))

	// On a terminal, announce nodes as they appear and show a countdown;
	// when piped, emit only the final result.
	var progress *progressPrinter
	if interactive && cfg.OutputFormat == "table" {
		m.AddListener(&announcingListener{})
		progress = newProgressPrinter("Scanning for BLE nodes", cfg.ScanTimeout)
		progress.Start()
		defer progress.Stop()
	}

	_, err = m.Discover(cfg.ShowWarnings, cfg.ScanTimeout)

	// The countdown must be gone before anything renders below it.
	if progress != nil {
		progress.Stop()
	}
	if err != nil {
		logger.WithError(err).Error("scan failed")
		return err
	}

	return displayNodes(os.Stdout, m, cfg.OutputFormat)
}

// announcingListener prints each new node as it is discovered. It only ever
// writes; it never calls back into the discovery lifecycle.
type announcingListener struct{}

func (*announcingListener) OnDiscoveryChange(_ *manager.Manager, enabled bool) {
	if !enabled {
		fmt.Print(clearLineSequence)
	}
}

func (*announcingListener) OnNodeDiscovered(m *manager.Manager, n *node.Node) {
	name := color.New(color.FgCyan).Sprint(n.Name())
	fmt.Printf("%s+ %s [%s] %d dBm\n", clearLineSequence, name, n.Tag(), n.RSSI())
}

func displayNodes(w io.Writer, m *manager.Manager, format string) error {
	nodes := m.Nodes()
	sort.Slice(nodes, func(i, j int) bool {
		return nodes[i].Name() < nodes[j].Name()
	})

	switch format {
	case "json":
		return displayNodesJSON(w, m, nodes)
	case "csv":
		return displayNodesCSV(w, m, nodes)
	default:
		return displayNodesTable(w, m, nodes)
	}
}

func featureList(m *manager.Manager, n *node.Node) []features.Kind {
	if n.DeviceID() == 0 {
		return nil
	}
	return m.NodeFeatureKinds(n)
}

func joinKinds(kinds []features.Kind) string {
	parts := make([]string, len(kinds))
	for i, k := range kinds {
		parts[i] = string(k)
	}
	return strings.Join(parts, ",")
}

func displayNodesTable(out io.Writer, m *manager.Manager, nodes []*node.Node) error {
	if len(nodes) == 0 {
		fmt.Fprintln(out, "No nodes discovered")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tADDRESS\tRSSI\tDEVICE\tFEATURES\tLAST SEEN")
	fmt.Fprintln(w, strings.Repeat("-", 80))

	for _, n := range nodes {
		name := n.Name()
		if len(name) > 20 {
			name = name[:17] + "..."
		}

		deviceCol := "-"
		if id := n.DeviceID(); id != 0 {
			deviceCol = fmt.Sprintf("0x%02X", id)
		}

		featureCol := joinKinds(featureList(m, n))
		if len(featureCol) > 40 {
			featureCol = featureCol[:37] + "..."
		}

		lastSeen := time.Since(n.LastSeen()).Truncate(time.Second)

		fmt.Fprintf(w, "%s\t%s\t%d dBm\t%s\t%s\t%s ago\n",
			name, n.Tag(), n.RSSI(), deviceCol, featureCol, lastSeen)
	}

	return w.Flush()
}

type nodeRecord struct {
	Name     string          `json:"name"`
	Address  string          `json:"address"`
	RSSI     int             `json:"rssi"`
	DeviceID uint8           `json:"device_id,omitempty"`
	Features []features.Kind `json:"features,omitempty"`
	LastSeen time.Time       `json:"last_seen"`
}

func displayNodesJSON(w io.Writer, m *manager.Manager, nodes []*node.Node) error {
	records := make([]nodeRecord, len(nodes))
	for i, n := range nodes {
		records[i] = nodeRecord{
			Name:     n.Name(),
			Address:  n.Tag(),
			RSSI:     n.RSSI(),
			DeviceID: n.DeviceID(),
			Features: featureList(m, n),
			LastSeen: n.LastSeen(),
		}
	}
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(records)
}

func displayNodesCSV(w io.Writer, m *manager.Manager, nodes []*node.Node) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"name", "address", "rssi", "device_id", "features", "last_seen"}); err != nil {
		return err
	}
	for _, n := range nodes {
		record := []string{
			n.Name(),
			n.Tag(),
			strconv.Itoa(n.RSSI()),
			strconv.Itoa(int(n.DeviceID())),
			joinKinds(featureList(m, n)),
			n.LastSeen().Format(time.RFC3339),
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func clearScreen(w io.Writer) {
	fmt.Fprint(w, "\033[2J\033[H")
}
