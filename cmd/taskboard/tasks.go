package main

import (
	"fmt"
	"strconv"

	"github.com/bytedance/sonic"
	"github.com/spf13/cobra"

	"taskboard/board"
	"taskboard/domain"
)

func parseTaskID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid task id %q", s)
	}
	return id, nil
}

func boardCmd(a *app) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "board",
		Short: "Show tasks grouped by status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			b, err := a.loadBoard(cmd.Context())
			if err != nil {
				return err
			}
			defer b.Close()
			cols, _ := b.Columns()
			if asJSON {
				enc := sonic.ConfigStd.NewEncoder(a.out)
				enc.SetIndent("", "  ")
				return enc.Encode(cols)
			}
			return renderBoard(a.out, cols, a.now())
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the columns as JSON")
	return cmd
}

// taskFlags holds the task form fields shared by create and update.
type taskFlags struct {
	title       string
	description string
	priority    string
	assign      int64
	due         string
}

func (f *taskFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.title, "title", "", "task title")
	cmd.Flags().StringVar(&f.description, "description", "", "task description")
	cmd.Flags().StringVar(&f.priority, "priority", "", "low, medium, high or urgent")
	cmd.Flags().Int64Var(&f.assign, "assign", 0, "id of the user to assign")
	cmd.Flags().StringVar(&f.due, "due", "", "due date, e.g. 2025-03-01 or 2025-03-01T17:00")
}

func (f *taskFlags) create() (domain.TaskCreate, error) {
	in := domain.TaskCreate{Title: f.title, Description: f.description, Priority: domain.Priority(f.priority)}
	if f.assign > 0 {
		assign := f.assign
		in.AssignedTo = &assign
	}
	if f.due != "" {
		due, err := domain.ParseTimestamp(f.due)
		if err != nil {
			return in, &domain.ValidationError{Detail: err.Error()}
		}
		in.DueDate = &due
	}
	return in, in.Validate()
}

// update builds a partial update from the flags that were set explicitly.
func (f *taskFlags) update(cmd *cobra.Command) (domain.TaskUpdate, error) {
	var upd domain.TaskUpdate
	flags := cmd.Flags()
	if flags.Changed("title") {
		if err := (domain.TaskCreate{Title: f.title}).Validate(); err != nil {
			return upd, err
		}
		upd.Title = &f.title
	}
	if flags.Changed("description") {
		upd.Description = &f.description
	}
	if flags.Changed("priority") {
		p, err := domain.ParsePriority(f.priority)
		if err != nil {
			return upd, &domain.ValidationError{Detail: err.Error()}
		}
		upd.Priority = &p
	}
	if flags.Changed("assign") {
		upd.AssignedTo = &f.assign
	}
	if flags.Changed("due") {
		due, err := domain.ParseTimestamp(f.due)
		if err != nil {
			return upd, &domain.ValidationError{Detail: err.Error()}
		}
		upd.DueDate = &due
	}
	if upd.Empty() {
		return upd, &domain.ValidationError{Detail: "nothing to update"}
	}
	return upd, nil
}

func createCmd(a *app) *cobra.Command {
	var f taskFlags
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a task",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			in, err := f.create()
			if err != nil {
				return err
			}
			b := board.New(a.client(true), a.logger)
			defer b.Close()
			t, err := b.Create(cmd.Context(), in)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Created task #%d %q (%s)\n", t.ID, t.Title, t.Status.Label())
			return nil
		},
	}
	f.register(cmd)
	return cmd
}

func updateCmd(a *app) *cobra.Command {
	var f taskFlags
	cmd := &cobra.Command{
		Use:   "update ID",
		Short: "Change fields of a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseTaskID(args[0])
			if err != nil {
				return err
			}
			upd, err := f.update(cmd)
			if err != nil {
				return err
			}
			b, err := a.loadBoard(cmd.Context())
			if err != nil {
				return err
			}
			defer b.Close()
			t, err := b.Update(cmd.Context(), id, upd)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Updated task #%d %q\n", t.ID, t.Title)
			return nil
		},
	}
	f.register(cmd)
	return cmd
}

func statusCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status ID STATUS",
		Short: "Move a task to pending, in_progress, completed or cancelled",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseTaskID(args[0])
			if err != nil {
				return err
			}
			status, err := domain.ParseStatus(args[1])
			if err != nil {
				return &domain.ValidationError{Detail: err.Error()}
			}
			b, err := a.loadBoard(cmd.Context())
			if err != nil {
				return err
			}
			defer b.Close()
			t, err := b.ChangeStatus(cmd.Context(), id, status)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Task #%d is now %s\n", t.ID, t.Status.Label())
			return nil
		},
	}
}

func deleteCmd(a *app) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "delete ID",
		Short: "Delete a task after confirmation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseTaskID(args[0])
			if err != nil {
				return err
			}
			b, err := a.loadBoard(cmd.Context())
			if err != nil {
				return err
			}
			defer b.Close()

			var confirm board.Confirmer = board.Prompt{In: a.in, Out: a.out}
			if yes {
				confirm = board.Accept
			}
			deleted, err := b.Delete(cmd.Context(), id, confirm)
			if err != nil {
				return err
			}
			if !deleted {
				fmt.Fprintln(a.out, "Cancelled")
				return nil
			}
			fmt.Fprintf(a.out, "Deleted task #%d\n", id)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "do not ask for confirmation")
	return cmd
}
