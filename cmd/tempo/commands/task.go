package commands

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/kballard/go-shellquote"
	"github.com/spf13/cobra"

	"github.com/teranos/tempo/errors"
	"github.com/teranos/tempo/scheduler"
	"github.com/teranos/tempo/task"
)

// TaskCmd represents the task command - scheduled task management
var TaskCmd = &cobra.Command{
	Use:   "task",
	Short: "Manage scheduled tasks",
	Long: `Manage scheduled tasks.

A task is a shell command with a trigger: a cron expression, a fixed
interval, or an absolute date. The daemon arms one executor per task and
records every run with its captured output.

Task management commands:
  tempo task add --every 30s -- echo hi   # Schedule a command
  tempo task ls                           # List tasks
  tempo task show <id>                    # Show task details and executor state
  tempo task rm <id>                      # Delete a task (run history is kept)
  tempo task run <id>                     # Arm the task's executor
  tempo task stop <id>                    # Disarm the task's executor`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

// TaskAddCmd schedules a new task
var TaskAddCmd = &cobra.Command{
	Use:   "add [flags] -- <command> [args...]",
	Short: "Schedule a new task",
	Long: `Schedule a command with a cron expression, a fixed interval, or an
absolute date. Exactly one of --cron, --every, --at must be given.
Everything after -- is the command to run.

Examples:
  tempo task add --cron "*/5 * * * *" -- ./backup.sh
  tempo task add --every 90s --title heartbeat -- curl -fsS https://example.com/ping
  tempo task add --at "2026-09-01 08:00:00" -- ./migrate.sh`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTaskAdd(cmd, args)
	},
}

// TaskLsCmd lists tasks
var TaskLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List scheduled tasks",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTaskLs()
	},
}

// TaskShowCmd shows one task with its executor state
var TaskShowCmd = &cobra.Command{
	Use:   "show <task-id>",
	Short: "Show task details and executor state",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTaskShow(args[0])
	},
}

// TaskRmCmd deletes a task
var TaskRmCmd = &cobra.Command{
	Use:   "rm <task-id>",
	Short: "Delete a task",
	Long: `Delete a task. Its executor is stopped and removed; recorded runs
and their output are kept and stay visible under 'tempo runs'.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTaskRm(args[0])
	},
}

// TaskRunCmd arms a task's executor
var TaskRunCmd = &cobra.Command{
	Use:   "run <task-id>",
	Short: "Arm the task's executor so it runs on schedule",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTaskRun(args[0])
	},
}

// TaskStopCmd disarms a task's executor
var TaskStopCmd = &cobra.Command{
	Use:   "stop <task-id>",
	Short: "Disarm the task's executor",
	Long: `Disarm the task's executor so no further runs are scheduled.
A run already in flight is not interrupted.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTaskStop(args[0])
	},
}

func init() {
	TaskAddCmd.Flags().String("cron", "", "Cron expression, e.g. \"*/5 * * * *\"")
	TaskAddCmd.Flags().String("every", "", "Interval between runs as a duration, e.g. 30s, 5m, 1h30m")
	TaskAddCmd.Flags().String("at", "", "Run once at an absolute date, e.g. \"2026-09-01 08:00:00\"")
	TaskAddCmd.Flags().String("title", "", "Short task title (defaults to the command)")
	TaskAddCmd.Flags().String("descr", "", "Free-form task description")

	TaskCmd.AddCommand(TaskAddCmd)
	TaskCmd.AddCommand(TaskLsCmd)
	TaskCmd.AddCommand(TaskShowCmd)
	TaskCmd.AddCommand(TaskRmCmd)
	TaskCmd.AddCommand(TaskRunCmd)
	TaskCmd.AddCommand(TaskStopCmd)
}

// jsonString encodes s as a JSON string literal
func jsonString(s string) json.RawMessage {
	quoted, _ := json.Marshal(s)
	return quoted
}

// runTaskAdd creates a task through the daemon
func runTaskAdd(cmd *cobra.Command, args []string) error {
	cronExpr, _ := cmd.Flags().GetString("cron")
	every, _ := cmd.Flags().GetString("every")
	at, _ := cmd.Flags().GetString("at")
	title, _ := cmd.Flags().GetString("title")
	descr, _ := cmd.Flags().GetString("descr")

	triggers := 0
	for _, v := range []string{cronExpr, every, at} {
		if v != "" {
			triggers++
		}
	}
	if triggers != 1 {
		return errors.New("exactly one of --cron, --every, --at is required")
	}

	var triggerType string
	var triggerArgs json.RawMessage
	switch {
	case cronExpr != "":
		triggerType = task.TriggerCron
		triggerArgs = jsonString(cronExpr)
	case every != "":
		d, err := time.ParseDuration(every)
		if err != nil {
			return errors.Wrapf(err, "invalid --every duration %q", every)
		}
		triggerType = task.TriggerInterval
		interval, err := json.Marshal(task.Interval{Seconds: d.Seconds()})
		if err != nil {
			return errors.Wrap(err, "failed to encode interval")
		}
		triggerArgs = interval
	default:
		triggerType = task.TriggerDate
		triggerArgs = jsonString(at)
	}

	client, err := newAPIClient()
	if err != nil {
		return err
	}

	command := shellquote.Join(args...)
	if title == "" {
		title = command
	}

	draft := task.Draft{
		Title:       title,
		Descr:       descr,
		Command:     command,
		TriggerType: triggerType,
		TriggerArgs: triggerArgs,
	}

	var resp struct {
		TaskID int `json:"task_id"`
	}
	if err := client.post("/task", &draft, &resp); err != nil {
		return err
	}

	fmt.Printf("Task %d created (%s %s)\n", resp.TaskID, triggerType, string(triggerArgs))
	return nil
}

// runTaskLs lists tasks in a table
func runTaskLs() error {
	client, err := newAPIClient()
	if err != nil {
		return err
	}

	var resp struct {
		Tasks []*task.Task `json:"tasks"`
	}
	if err := client.get("/task", &resp); err != nil {
		return err
	}

	if len(resp.Tasks) == 0 {
		fmt.Println("No tasks scheduled")
		return nil
	}

	// Print table header
	fmt.Printf("%-5s %-20s %-10s %-26s %s\n", "ID", "TITLE", "TRIGGER", "SCHEDULE", "COMMAND")
	fmt.Printf("%-5s %-20s %-10s %-26s %s\n", "--", "-----", "-------", "--------", "-------")

	for _, t := range resp.Tasks {
		title := t.Title
		if title == "" {
			title = "-"
		}
		fmt.Printf("%-5d %-20s %-10s %-26s %s\n",
			t.ID,
			truncate(title, 20),
			t.TriggerType,
			truncate(t.TriggerArgs, 26),
			truncate(t.Command, 40))
	}

	fmt.Printf("\nTotal: %d task(s)\n", len(resp.Tasks))
	return nil
}

// runTaskShow displays one task with its executor state
func runTaskShow(id string) error {
	client, err := newAPIClient()
	if err != nil {
		return err
	}

	var taskResp struct {
		Task *task.Task `json:"task"`
	}
	if err := client.get("/task/"+id, &taskResp); err != nil {
		return err
	}

	var execResp struct {
		Executor *scheduler.State `json:"task_executor"`
	}
	if err := client.get("/executor/"+id, &execResp); err != nil {
		return err
	}

	t := taskResp.Task
	fmt.Printf("Task %d\n", t.ID)
	if t.Title != "" {
		fmt.Printf("  Title:    %s\n", t.Title)
	}
	if t.Descr != "" {
		fmt.Printf("  Descr:    %s\n", t.Descr)
	}
	fmt.Printf("  Command:  %s\n", t.Command)
	fmt.Printf("  Trigger:  %s %s\n", t.TriggerType, t.TriggerArgs)
	if t.StartingDate != nil {
		fmt.Printf("  Starting: %s\n", t.StartingDate.Format("2006-01-02 15:04:05"))
	}
	if t.LastRun != nil {
		fmt.Printf("  Last run: %s\n", t.LastRun.Format("2006-01-02 15:04:05"))
	}

	armed := "no"
	if execResp.Executor.Active {
		armed = "yes"
	}
	fmt.Printf("\nExecutor\n")
	fmt.Printf("  Armed:    %s\n", armed)
	fmt.Printf("  Status:   %s\n", execResp.Executor.Status)
	return nil
}

// runTaskRm deletes a task through the daemon
func runTaskRm(id string) error {
	client, err := newAPIClient()
	if err != nil {
		return err
	}

	var resp struct {
		TaskID int `json:"task_id"`
	}
	if err := client.delete("/task/"+id, &resp); err != nil {
		return err
	}

	fmt.Printf("Task %d deleted; its run history is kept\n", resp.TaskID)
	return nil
}

// runTaskRun arms a task's executor
func runTaskRun(id string) error {
	client, err := newAPIClient()
	if err != nil {
		return err
	}

	var resp struct {
		TaskID int `json:"task_id"`
	}
	if err := client.post("/run_executor/"+id, nil, &resp); err != nil {
		return err
	}

	fmt.Printf("Task %d armed\n", resp.TaskID)
	return nil
}

// runTaskStop disarms a task's executor
func runTaskStop(id string) error {
	client, err := newAPIClient()
	if err != nil {
		return err
	}

	var resp struct {
		TaskID int `json:"task_id"`
	}
	if err := client.post("/stop_executor/"+id, nil, &resp); err != nil {
		return err
	}

	fmt.Printf("Task %d stopped\n", resp.TaskID)
	return nil
}

// truncate truncates a string to maxLen characters
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
