package commands

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/teranos/tempo/execution"
)

// RunsCmd represents the runs command - execution history
var RunsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect run history and captured output",
	Long: `Inspect recorded runs and their captured output.

Every execution attempt is recorded as a run: when it started, how it
ended, and every line the child process wrote to stdout or stderr.

Examples:
  tempo runs ls                 # List recent runs
  tempo runs ls --task 3        # Runs of task 3 only
  tempo runs output 12          # Print the output of run 12
  tempo runs output 12 --follow # Tail a run still in flight`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

// RunsLsCmd lists recorded runs
var RunsLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List recorded runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		taskID, _ := cmd.Flags().GetInt("task")
		limit, _ := cmd.Flags().GetInt("limit")
		return runRunsLs(taskID, limit)
	},
}

// RunsOutputCmd prints a run's captured output
var RunsOutputCmd = &cobra.Command{
	Use:   "output <run-id>",
	Short: "Print a run's captured output",
	Long: `Print the captured output of one run. Stdout lines go to stdout and
stderr lines to stderr, in the order they were observed.

With --follow the command keeps polling the daemon for new output until
the run reaches a terminal status.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		follow, _ := cmd.Flags().GetBool("follow")
		return runRunsOutput(args[0], follow)
	},
}

func init() {
	RunsLsCmd.Flags().Int("task", 0, "Only show runs of this task")
	RunsLsCmd.Flags().Int("limit", 20, "Maximum number of runs to display")
	RunsOutputCmd.Flags().BoolP("follow", "f", false, "Keep polling until the run finishes")

	RunsCmd.AddCommand(RunsLsCmd)
	RunsCmd.AddCommand(RunsOutputCmd)
}

// runRunsLs lists recorded runs, newest last
func runRunsLs(taskID, limit int) error {
	client, err := newAPIClient()
	if err != nil {
		return err
	}

	var resp struct {
		ProcessLogs []*execution.ProcessLog `json:"process_logs"`
	}
	if err := client.get("/process_log", &resp); err != nil {
		return err
	}

	runs := make([]*execution.ProcessLog, 0, len(resp.ProcessLogs))
	for _, pl := range resp.ProcessLogs {
		if taskID > 0 && pl.TaskID != taskID {
			continue
		}
		runs = append(runs, pl)
	}

	if len(runs) == 0 {
		fmt.Println("No runs recorded")
		return nil
	}

	// History comes back oldest first; keep the tail when over the limit
	if limit > 0 && len(runs) > limit {
		runs = runs[len(runs)-limit:]
	}

	// Print table header
	fmt.Printf("%-8s %-6s %-10s %-20s %-10s %s\n", "RUN", "TASK", "STATUS", "STARTED", "DURATION", "RC")
	fmt.Printf("%-8s %-6s %-10s %-20s %-10s %s\n", "---", "----", "------", "-------", "--------", "--")

	for _, pl := range runs {
		duration := "-"
		if pl.FinishDate != nil {
			duration = pl.FinishDate.Sub(pl.StartDate).Round(time.Millisecond).String()
		}
		rc := "-"
		if pl.ReturnCode != nil {
			rc = strconv.Itoa(*pl.ReturnCode)
		}
		fmt.Printf("%-8d %-6d %-10s %-20s %-10s %s\n",
			pl.ID,
			pl.TaskID,
			pl.Status,
			pl.StartDate.Local().Format("2006-01-02 15:04:05"),
			duration,
			rc)
	}

	fmt.Printf("\nTotal: %d run(s)\n", len(runs))
	return nil
}

// runRunsOutput prints a run's output, optionally following until the run
// reaches a terminal status. Polling carries the last seen output log ID so
// each request returns only new lines.
func runRunsOutput(id string, follow bool) error {
	client, err := newAPIClient()
	if err != nil {
		return err
	}

	last := -1
	for {
		var resp struct {
			OutputLogs      []*execution.OutputLog `json:"output_logs"`
			LastOutputLogID int                    `json:"last_output_log_id"`
			Status          string                 `json:"status"`
			ReturnCode      *int                   `json:"return_code"`
		}
		path := fmt.Sprintf("/execution/output/%s?last_output_log_id=%d", id, last)
		if err := client.get(path, &resp); err != nil {
			return err
		}

		for _, ol := range resp.OutputLogs {
			if ol.IsError == execution.StreamStderr {
				fmt.Fprint(os.Stderr, ol.Message)
			} else {
				fmt.Print(ol.Message)
			}
		}
		last = resp.LastOutputLogID

		if execution.IsTerminalStatus(resp.Status) {
			if follow {
				rc := "-"
				if resp.ReturnCode != nil {
					rc = strconv.Itoa(*resp.ReturnCode)
				}
				fmt.Fprintf(os.Stderr, "run %s: %s (return code %s)\n", id, resp.Status, rc)
			}
			return nil
		}
		if !follow {
			return nil
		}
		time.Sleep(time.Second)
	}
}
