package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/zulandar/taskyard/internal/auth"
	"github.com/zulandar/taskyard/internal/filter"
	"github.com/zulandar/taskyard/internal/models"
	"github.com/zulandar/taskyard/internal/task"
)

// taskFlags are shared by every task subcommand.
type taskFlags struct {
	configPath string
	as         string
}

func (f *taskFlags) open(cmd *cobra.Command) (*stack, auth.Caller, error) {
	s, err := openStack(f.configPath, cmd.ErrOrStderr())
	if err != nil {
		return nil, auth.Caller{}, err
	}
	caller, err := s.callerFor(cmd.Context(), f.as)
	if err != nil {
		return nil, auth.Caller{}, err
	}
	return s, caller, nil
}

func newTaskCmd() *cobra.Command {
	flags := &taskFlags{}
	cmd := &cobra.Command{
		Use:   "task",
		Short: "Task management commands",
		Long:  "Task management commands. Runs task operations directly against the database, acting as the user given by --as.",
	}
	cmd.PersistentFlags().StringVarP(&flags.configPath, "config", "c", defaultConfigPath, "path to Taskyard config file")
	cmd.PersistentFlags().StringVar(&flags.as, "as", "", "user id to act as (required)")

	cmd.AddCommand(newTaskCreateCmd(flags))
	cmd.AddCommand(newTaskListCmd(flags))
	cmd.AddCommand(newTaskShowCmd(flags))
	cmd.AddCommand(newTaskUpdateCmd(flags))
	cmd.AddCommand(newTaskCompleteCmd(flags))
	cmd.AddCommand(newTaskDeleteCmd(flags))
	cmd.AddCommand(newTaskAssignCmd(flags))
	cmd.AddCommand(newTaskDepCmd(flags))
	return cmd
}

func newTaskCreateCmd(flags *taskFlags) *cobra.Command {
	var (
		in       task.CreateInput
		status   string
		priority string
		due      string
		parentID string
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a new task",
		Long:  "Creates a task in a team, or a subtask under --parent in the parent's team.",
		RunE: func(cmd *cobra.Command, args []string) error {
			in.Status = models.TaskStatus(status)
			in.Priority = models.TaskPriority(priority)
			if due != "" {
				d, err := filter.ParseDate(due)
				if err != nil {
					return err
				}
				in.DueDate = &d
			}
			return runTaskCreate(cmd, flags, in, parentID)
		},
	}

	cmd.Flags().StringVar(&in.Title, "title", "", "task title (required)")
	cmd.Flags().StringVar(&in.Description, "description", "", "detailed description")
	cmd.Flags().StringVar(&in.TeamID, "team", "", "team id (required unless --parent)")
	cmd.Flags().StringVar(&status, "status", "", "initial status (default todo)")
	cmd.Flags().StringVar(&priority, "priority", "", "priority: low, medium, high, critical (default medium)")
	cmd.Flags().StringVar(&due, "due", "", "due date (YYYY-MM-DD)")
	cmd.Flags().StringSliceVar(&in.TagIDs, "tag", nil, "tag id (repeatable)")
	cmd.Flags().StringVar(&parentID, "parent", "", "parent task id")
	cmd.MarkFlagRequired("title")
	return cmd
}

func runTaskCreate(cmd *cobra.Command, flags *taskFlags, in task.CreateInput, parentID string) error {
	s, caller, err := flags.open(cmd)
	if err != nil {
		return err
	}

	var t *models.Task
	if parentID != "" {
		t, err = s.svc.CreateSubtask(cmd.Context(), caller, parentID, in)
	} else {
		t, err = s.svc.Create(cmd.Context(), caller, in)
	}
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Created task %s\n", t.ID)
	fmt.Fprintf(out, "Team: %s\n", t.TeamID)
	if t.ParentTaskID != nil {
		fmt.Fprintf(out, "Parent: %s\n", *t.ParentTaskID)
	}
	return nil
}

func newTaskListCmd(flags *taskFlags) *cobra.Command {
	var (
		f        filter.TaskFilters
		status   []string
		priority []string
		assignee []string
		tags     []string
		or       bool
		pageNum  int
		size     int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks",
		Long:  "Lists tasks visible to --as with optional filters. Criteria are ANDed unless --or is given. Output is formatted as a table.",
		RunE: func(cmd *cobra.Command, args []string) error {
			f.Status = status
			f.Priority = priority
			f.AssigneeIDs = assignee
			f.TagIDs = tags
			if or {
				f.Operator = filter.OpOr
			}
			return runTaskList(cmd, flags, f, pageNum, size)
		},
	}

	cmd.Flags().StringVar(&f.TeamID, "team", "", "filter by team id")
	cmd.Flags().StringSliceVar(&status, "status", nil, "filter by status (repeatable)")
	cmd.Flags().StringSliceVar(&priority, "priority", nil, "filter by priority (repeatable)")
	cmd.Flags().StringSliceVar(&assignee, "assignee", nil, "filter by assignee id (repeatable)")
	cmd.Flags().StringSliceVar(&tags, "tag", nil, "filter by tag id (repeatable)")
	cmd.Flags().BoolVar(&f.AssignedToMe, "mine", false, "only tasks assigned to --as")
	cmd.Flags().StringVar(&f.Search, "search", "", "match title or description")
	cmd.Flags().BoolVar(&or, "or", false, "join criteria with OR instead of AND")
	cmd.Flags().IntVar(&pageNum, "page", 1, "page number")
	cmd.Flags().IntVar(&size, "size", 20, "page size (max 100)")
	return cmd
}

func runTaskList(cmd *cobra.Command, flags *taskFlags, f filter.TaskFilters, pageNum, size int) error {
	s, caller, err := flags.open(cmd)
	if err != nil {
		return err
	}

	p, err := s.svc.List(cmd.Context(), caller, f, pageNum, size)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if p.Total == 0 {
		fmt.Fprintln(out, "No tasks found.")
		return nil
	}
	writeTaskTable(out, p.Items)
	fmt.Fprintf(out, "\nPage %d of %d (%d tasks)\n", p.Page, p.Pages, p.Total)
	return nil
}

func writeTaskTable(out io.Writer, tasks []models.Task) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTITLE\tSTATUS\tPRIORITY\tBLOCKERS\tDUE")
	for _, t := range tasks {
		due := "-"
		if t.DueDate != nil {
			due = t.DueDate.Format(filter.DateLayout)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\n",
			t.ID, truncate(t.Title, 40), t.Status, t.Priority, t.BlockingTaskCount, due)
	}
	w.Flush()
}

func newTaskShowCmd(flags *taskFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show task details",
		Long:  "Displays full details of a task including tags, assignments, subtasks and blocking state.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTaskShow(cmd, flags, args[0])
		},
	}
}

func runTaskShow(cmd *cobra.Command, flags *taskFlags, id string) error {
	s, caller, err := flags.open(cmd)
	if err != nil {
		return err
	}

	d, err := s.svc.Get(cmd.Context(), caller, id)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "ID:          %s\n", d.ID)
	fmt.Fprintf(out, "Title:       %s\n", d.Title)
	fmt.Fprintf(out, "Status:      %s\n", d.Status)
	fmt.Fprintf(out, "Priority:    %s\n", d.Priority)
	fmt.Fprintf(out, "Team:        %s\n", d.TeamID)
	fmt.Fprintf(out, "Created by:  %s\n", d.CreatedBy)
	if d.ParentTaskID != nil {
		fmt.Fprintf(out, "Parent:      %s\n", *d.ParentTaskID)
	}
	if d.DueDate != nil {
		fmt.Fprintf(out, "Due:         %s\n", d.DueDate.Format(filter.DateLayout))
	}
	if d.IsBlocked {
		fmt.Fprintf(out, "Blocked by:  %d unresolved prerequisite(s)\n", d.BlockingTaskCount)
	}
	if len(d.Tags) > 0 {
		names := make([]string, len(d.Tags))
		for i, tg := range d.Tags {
			names[i] = tg.Name
		}
		fmt.Fprintf(out, "Tags:        %s\n", strings.Join(names, ", "))
	}
	fmt.Fprintf(out, "Created:     %s\n", d.CreatedAt.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(out, "Updated:     %s\n", d.UpdatedAt.Format("2006-01-02 15:04:05"))

	if d.Description != "" {
		fmt.Fprintf(out, "\nDescription:\n%s\n", d.Description)
	}
	if len(d.Assignments) > 0 {
		fmt.Fprintln(out, "\nAssignments:")
		for _, a := range d.Assignments {
			fmt.Fprintf(out, "  %s (%s)\n", a.UserID, a.Role)
		}
	}
	if len(d.Subtasks) > 0 {
		fmt.Fprintln(out, "\nSubtasks:")
		for _, st := range d.Subtasks {
			fmt.Fprintf(out, "  %s  %-12s %s\n", st.ID, st.Status, st.Title)
		}
	}
	return nil
}

func newTaskUpdateCmd(flags *taskFlags) *cobra.Command {
	var (
		title       string
		description string
		status      string
		priority    string
		due         string
		clearDue    bool
		tags        []string
	)

	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update task fields",
		Long:  "Updates only the fields whose flags are given. Setting --status done releases blocked dependents.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var p task.Patch
			fl := cmd.Flags()
			if fl.Changed("title") {
				p.Title = &title
			}
			if fl.Changed("description") {
				p.Description = &description
			}
			if fl.Changed("status") {
				st := models.TaskStatus(status)
				p.Status = &st
			}
			if fl.Changed("priority") {
				pr := models.TaskPriority(priority)
				p.Priority = &pr
			}
			if fl.Changed("due") {
				d, err := filter.ParseDate(due)
				if err != nil {
					return err
				}
				p.DueDate = &d
			}
			p.ClearDueDate = clearDue
			if fl.Changed("tag") {
				p.TagIDs = &tags
			}
			return runTaskUpdate(cmd, flags, args[0], p)
		},
	}

	cmd.Flags().StringVar(&title, "title", "", "new title")
	cmd.Flags().StringVar(&description, "description", "", "new description")
	cmd.Flags().StringVar(&status, "status", "", "new status")
	cmd.Flags().StringVar(&priority, "priority", "", "new priority")
	cmd.Flags().StringVar(&due, "due", "", "new due date (YYYY-MM-DD)")
	cmd.Flags().BoolVar(&clearDue, "clear-due", false, "remove the due date")
	cmd.Flags().StringSliceVar(&tags, "tag", nil, "replace tags with these ids (repeatable)")
	return cmd
}

func runTaskUpdate(cmd *cobra.Command, flags *taskFlags, id string, p task.Patch) error {
	s, caller, err := flags.open(cmd)
	if err != nil {
		return err
	}
	u, err := s.svc.Update(cmd.Context(), caller, id, p)
	if err != nil {
		return err
	}
	printUpdated(cmd.OutOrStdout(), u)
	return nil
}

func printUpdated(out io.Writer, u *task.Updated) {
	fmt.Fprintf(out, "Updated task %s (status %s)\n", u.ID, u.Status)
	for _, id := range u.Unblocked {
		fmt.Fprintf(out, "Unblocked: %s\n", id)
	}
	for _, w := range u.Warnings {
		fmt.Fprintf(out, "Warning: %s\n", w)
	}
}

func newTaskCompleteCmd(flags *taskFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "complete <id>",
		Short: "Mark a task done",
		Long:  "Sets the task status to done and releases any dependents it was blocking.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			done := models.StatusDone
			return runTaskUpdate(cmd, flags, args[0], task.Patch{Status: &done})
		},
	}
}

func newTaskDeleteCmd(flags *taskFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a task",
		Long:  "Deletes a task created by --as. Subtasks are kept without a parent.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, caller, err := flags.open(cmd)
			if err != nil {
				return err
			}
			if err := s.svc.Delete(cmd.Context(), caller, args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted task %s\n", args[0])
			return nil
		},
	}
}

func newTaskAssignCmd(flags *taskFlags) *cobra.Command {
	var (
		role     string
		unassign bool
	)

	cmd := &cobra.Command{
		Use:   "assign <task-id> <user-id>",
		Short: "Assign a user to a task",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, caller, err := flags.open(cmd)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if unassign {
				if err := s.svc.Unassign(cmd.Context(), caller, args[0], args[1]); err != nil {
					return err
				}
				fmt.Fprintf(out, "Unassigned %s from %s\n", args[1], args[0])
				return nil
			}
			a, err := s.svc.Assign(cmd.Context(), caller, args[0], task.AssignInput{UserID: args[1], Role: role})
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Assigned %s to %s as %s\n", a.UserID, a.TaskID, a.Role)
			return nil
		},
	}

	cmd.Flags().StringVar(&role, "role", "", "assignment role (default assignee)")
	cmd.Flags().BoolVar(&unassign, "remove", false, "remove the assignment instead")
	return cmd
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
