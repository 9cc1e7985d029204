package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/DealAppSeo/hyperdag-router/internal/core/domain"
)

var resetCmd = &cobra.Command{
	Use:   "reset [candidate_id]",
	Short: "Reset a circuit-open candidate back into rotation",
	Args:  cobra.ExactArgs(1),
	Run:   runReset,
}

func init() {
	rootCmd.AddCommand(resetCmd)
}

func runReset(cmd *cobra.Command, args []string) {
	candidateID := args[0]

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Post(adminURL+"/admin/candidates/"+candidateID+"/reset", "application/json", nil)
	if err != nil {
		fmt.Printf("Failed to reach router at %s: %v\n", adminURL, err)
		os.Exit(1)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode == http.StatusNotFound {
		fmt.Printf("Unknown candidate: %s\n", candidateID)
		os.Exit(1)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		fmt.Printf("Reset failed: %s %s\n", resp.Status, body)
		os.Exit(1)
	}

	var status domain.CandidateStatus
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		fmt.Printf("Failed to decode response: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Successfully reset %s (state: %s)\n", status.ID, status.State)
}
