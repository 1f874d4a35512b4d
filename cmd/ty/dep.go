package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/zulandar/taskyard/internal/models"
	"github.com/zulandar/taskyard/internal/task"
)

func newTaskDepCmd(flags *taskFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dep",
		Short: "Manage task dependencies",
	}

	cmd.AddCommand(newTaskDepAddCmd(flags))
	cmd.AddCommand(newTaskDepRemoveCmd(flags))
	cmd.AddCommand(newTaskDepListCmd(flags))
	cmd.AddCommand(newTaskDepStatusCmd(flags))
	return cmd
}

func newTaskDepAddCmd(flags *taskFlags) *cobra.Command {
	var depType string

	cmd := &cobra.Command{
		Use:   "add <task-id> <depends-on-id>",
		Short: "Make a task depend on another",
		Long:  "Adds a dependency edge. Blocking edges (the default) are rejected if they would close a cycle.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, caller, err := flags.open(cmd)
			if err != nil {
				return err
			}
			d, err := s.svc.AddDependency(cmd.Context(), caller, args[0], task.DependencyInput{
				DependsOnTaskID: args[1],
				DependencyType:  models.DependencyType(depType),
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added dependency %s: %s → %s (%s)\n", d.ID, d.TaskID, d.DependsOnTaskID, d.DependencyType)
			return nil
		},
	}

	cmd.Flags().StringVar(&depType, "type", "blocking", "dependency type: blocking or soft")
	return cmd
}

func newTaskDepRemoveCmd(flags *taskFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <task-id> <dependency-id>",
		Short: "Remove a dependency",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, caller, err := flags.open(cmd)
			if err != nil {
				return err
			}
			if err := s.svc.RemoveDependency(cmd.Context(), caller, args[0], args[1]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed dependency %s\n", args[1])
			return nil
		},
	}
}

func newTaskDepListCmd(flags *taskFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "list <task-id>",
		Short: "List what a task depends on and what depends on it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, caller, err := flags.open(cmd)
			if err != nil {
				return err
			}
			deps, err := s.svc.ListDependencies(cmd.Context(), caller, args[0])
			if err != nil {
				return err
			}
			dependents, err := s.svc.ListDependents(cmd.Context(), caller, args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(deps) == 0 && len(dependents) == 0 {
				fmt.Fprintln(out, "No dependencies.")
				return nil
			}
			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "EDGE\tDIRECTION\tTASK\tTYPE\tSTATUS")
			for _, d := range deps {
				status := "-"
				if d.DependsOnTask != nil {
					status = string(d.DependsOnTask.Status)
				}
				fmt.Fprintf(w, "%s\tdepends on\t%s\t%s\t%s\n", d.ID, d.DependsOnTaskID, d.DependencyType, status)
			}
			for _, d := range dependents {
				fmt.Fprintf(w, "%s\tblocks\t%s\t%s\t-\n", d.ID, d.TaskID, d.DependencyType)
			}
			w.Flush()
			return nil
		},
	}
}

func newTaskDepStatusCmd(flags *taskFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "status <task-id>",
		Short: "Show whether a task can start",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, caller, err := flags.open(cmd)
			if err != nil {
				return err
			}
			info, err := s.svc.BlockingStatus(cmd.Context(), caller, args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Task:       %s\n", info.TaskID)
			fmt.Fprintf(out, "Blocked:    %t\n", info.IsBlocked)
			fmt.Fprintf(out, "Can start:  %t\n", info.CanStart)
			for _, id := range info.BlockingDependencies {
				fmt.Fprintf(out, "Waiting on: %s\n", id)
			}
			return nil
		},
	}
}
