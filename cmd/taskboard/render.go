package main

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"taskboard/board"
	"taskboard/domain"
)

func renderBoard(w io.Writer, cols board.Columns, now time.Time) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for i, col := range cols {
		if i > 0 {
			fmt.Fprintln(tw)
		}
		fmt.Fprintf(tw, "%s (%d)\n", col.Label, len(col.Tasks))
		if len(col.Tasks) == 0 {
			fmt.Fprintln(tw, "  no tasks")
			continue
		}
		for _, t := range col.Tasks {
			fmt.Fprintf(tw, "  #%d\t%s\t%s\t%s\t%s\n", t.ID, t.Title, t.Priority, assignee(t), due(t, now))
		}
	}
	return tw.Flush()
}

func assignee(t domain.Task) string {
	if t.AssignedTo == nil {
		return "unassigned"
	}
	if t.AssignedUserName != "" {
		return "@" + t.AssignedUserName
	}
	return fmt.Sprintf("@%d", *t.AssignedTo)
}

func due(t domain.Task, now time.Time) string {
	if t.DueDate == nil || t.DueDate.IsZero() {
		return ""
	}
	s := "due " + t.DueDate.Format("2006-01-02")
	if t.Overdue(now) {
		s += " OVERDUE"
	}
	return s
}

func renderNotifications(w io.Writer, ns []domain.Notification, unread int, now time.Time) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "Notifications (%d unread)\n", unread)
	if len(ns) == 0 {
		fmt.Fprintln(tw, "  nothing yet")
	}
	for _, n := range ns {
		mark := " "
		if !n.IsRead {
			mark = "*"
		}
		fmt.Fprintf(tw, "%s #%d\t%s\t%s\t%s\n", mark, n.ID, n.Title, n.Message, n.CreatedAt.Age(now))
	}
	return tw.Flush()
}
