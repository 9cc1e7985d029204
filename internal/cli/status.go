package cli

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/DealAppSeo/hyperdag-router/internal/core/domain"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the current state of all provider candidates",
	Run:   runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) {
	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Get(adminURL + "/admin/candidates")
	if err != nil {
		fmt.Printf("Failed to reach router at %s: %v\n", adminURL, err)
		os.Exit(1)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		fmt.Printf("Unexpected response: %s\n", resp.Status)
		os.Exit(1)
	}

	var statuses []domain.CandidateStatus
	if err := json.NewDecoder(resp.Body).Decode(&statuses); err != nil {
		fmt.Printf("Failed to decode response: %v\n", err)
		os.Exit(1)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.Debug)
	_, _ = fmt.Fprintln(w, "CANDIDATE\tSTATE\tFAILURES\tREPUTATION\tLOAD\tBACKOFF UNTIL")

	for _, s := range statuses {
		backoff := "-"
		if !s.BackoffUntil.IsZero() {
			backoff = s.BackoffUntil.Format(time.RFC3339)
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%.2f\t%s\n",
			s.ID, s.State, s.ConsecutiveFailures, s.Reputation, s.Load, backoff)
	}
	_ = w.Flush()
}
