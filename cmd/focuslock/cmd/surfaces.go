package cmd

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"
)

var surfacesCmd = &cobra.Command{
	Use:   "surfaces",
	Short: "List the display surfaces the orchestrator would use",
	Long: `Enumerate display surfaces from the configured layout file, or
from the controlling terminal when no layout is configured.

Examples:
  focuslock surfaces
  focuslock surfaces --layout ./displays.yaml`,
	RunE: runSurfaces,
}

func init() {
	surfacesCmd.Flags().String("config", "", "config file (default: XDG config dir)")
	surfacesCmd.Flags().String("layout", "", "display layout file (overrides config)")
	rootCmd.AddCommand(surfacesCmd)
}

func runSurfaces(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")
	layoutPath, _ := cmd.Flags().GetString("layout")

	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	if layoutPath != "" {
		cfg.LayoutPath = layoutPath
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	registry, watcher, err := buildRegistry(cfg, logger)
	if err != nil {
		return err
	}
	if watcher != nil {
		defer watcher.Close()
	}

	descs := registry.Enumerate(cmd.Context())
	if len(descs) == 0 {
		fmt.Println("no display surfaces available")
		return nil
	}

	fmt.Printf("%-12s %-10s %-12s %s\n", "ID", "SIZE", "POSITION", "ROLE")
	for _, d := range descs {
		role := "follower"
		if d.Primary {
			role = "primary"
		}
		fmt.Printf("%-12s %-10s %-12s %s\n",
			d.ID,
			fmt.Sprintf("%dx%d", d.Bounds.Width, d.Bounds.Height),
			fmt.Sprintf("%d,%d", d.Bounds.X, d.Bounds.Y),
			role)
	}
	return nil
}
