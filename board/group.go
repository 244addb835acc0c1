package board

import (
	"fmt"

	"taskboard/domain"
)

// Column is one status bucket of the board.
type Column struct {
	Status domain.Status `json:"status"`
	Label  string        `json:"label"`
	Tasks  []domain.Task `json:"tasks"`
}

// Columns always holds the four buckets in board order, empty ones included.
type Columns [4]Column

// GroupByStatus partitions tasks into status buckets, keeping their relative
// order within each bucket.
func GroupByStatus(tasks []domain.Task) Columns {
	var cols Columns
	for i, st := range domain.Statuses() {
		cols[i] = Column{Status: st, Label: st.Label(), Tasks: []domain.Task{}}
	}
	for _, t := range tasks {
		i := columnIndex(t.Status)
		cols[i].Tasks = append(cols[i].Tasks, t)
	}
	return cols
}

func columnIndex(s domain.Status) int {
	switch s {
	case domain.StatusPending:
		return 0
	case domain.StatusInProgress:
		return 1
	case domain.StatusCompleted:
		return 2
	case domain.StatusCancelled:
		return 3
	}
	panic(fmt.Sprintf("board: task status %q has no column", s))
}

// Column returns the bucket for s.
func (c Columns) Column(s domain.Status) Column {
	return c[columnIndex(s)]
}

// Total counts tasks across all buckets.
func (c Columns) Total() int {
	n := 0
	for _, col := range c {
		n += len(col.Tasks)
	}
	return n
}

// Locate returns the status bucket holding the task id.
func (c Columns) Locate(id int64) (domain.Status, bool) {
	for _, col := range c {
		for _, t := range col.Tasks {
			if t.ID == id {
				return col.Status, true
			}
		}
	}
	return "", false
}
