package cmd

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/greenforestpath/focuslock/internal/reward"
)

var xpCmd = &cobra.Command{
	Use:   "xp",
	Short: "Show total XP and recent awards from the ledger",
	Long: `Query the XP ledger written by the orchestrator.

Examples:
  focuslock xp
  focuslock xp --limit 20
  focuslock xp --ledger ./ledger.db`,
	RunE: runXP,
}

func init() {
	xpCmd.Flags().String("ledger", "", "ledger database path (default: data dir)")
	xpCmd.Flags().Int("limit", 10, "number of recent awards to show")
	rootCmd.AddCommand(xpCmd)
}

func runXP(cmd *cobra.Command, args []string) error {
	ledgerPath, _ := cmd.Flags().GetString("ledger")
	limit, _ := cmd.Flags().GetInt("limit")

	if ledgerPath == "" {
		ledgerPath = reward.DefaultLedgerPath()
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ledger, err := reward.OpenLedger(ledgerPath, logger)
	if err != nil {
		return fmt.Errorf("open ledger: %w", err)
	}
	defer ledger.Close()

	total, err := ledger.TotalXP()
	if err != nil {
		return err
	}
	fmt.Printf("Total XP: %d\n", total)

	awards, err := ledger.RecentAwards(limit)
	if err != nil {
		return err
	}
	if len(awards) == 0 {
		fmt.Println("No awards recorded yet.")
		return nil
	}

	fmt.Printf("\n%-22s %8s  %s\n", "AWARDED", "XP", "SOURCE")
	for _, a := range awards {
		fmt.Printf("%-22s %8d  %s\n",
			a.AwardedAt.Local().Format("2006-01-02 15:04:05"),
			a.Amount,
			a.Source)
	}
	return nil
}
