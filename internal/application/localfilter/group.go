package localfilter

import (
	"math"
	"strings"
	"time"

	"github.com/taskmaster/client/internal/domain/entities"
)

// Group labels
const (
	LabelAll = "All tasks"

	LabelTodo      = "📋 To do"
	LabelDoing     = "⚡ In progress"
	LabelDone      = "✅ Completed"
	LabelHigh      = "🔴 High"
	LabelMedium    = "🟡 Medium"
	LabelLow       = "🟢 Low"
	LabelNoTags    = "🏷️ No tags"
	LabelOverdue   = "🔴 Overdue"
	LabelToday     = "🟡 Today"
	LabelThisWeek  = "🟠 This week"
	LabelThisMonth = "🔵 This month"
	LabelLater     = "⚪ Later"
	LabelNoDueDate = "📅 No due date"
)

// TagLabel is the group label of a tag
func TagLabel(tag string) string {
	return "🏷️ " + tag
}

// Group is one labeled bucket of tasks
type Group struct {
	Label string
	Tasks []entities.Task
}

// Groups keeps buckets in order of first appearance
type Groups []Group

// ByLabel returns the tasks of the bucket with the given label
func (g Groups) ByLabel(label string) ([]entities.Task, bool) {
	for _, group := range g {
		if group.Label == label {
			return group.Tasks, true
		}
	}
	return nil, false
}

// Labels returns the bucket labels in order
func (g Groups) Labels() []string {
	labels := make([]string, len(g))
	for i, group := range g {
		labels[i] = group.Label
	}
	return labels
}

// GroupTasks buckets tasks. Every grouping except tag is a partition; with
// tag grouping a task appears once per distinct tag, or once under
// LabelNoTags when it has none.
func GroupTasks(tasks []entities.Task, by entities.GroupBy, now time.Time) Groups {
	if by == "" || by == entities.GroupByNone {
		return Groups{{Label: LabelAll, Tasks: append([]entities.Task(nil), tasks...)}}
	}

	today := StartOfDay(now)
	var groups Groups
	index := map[string]int{}
	add := func(label string, t entities.Task) {
		i, ok := index[label]
		if !ok {
			i = len(groups)
			index[label] = i
			groups = append(groups, Group{Label: label})
		}
		groups[i].Tasks = append(groups[i].Tasks, t)
	}

	for _, t := range tasks {
		switch by {
		case entities.GroupByStatus:
			add(statusLabel(t.Status), t)
		case entities.GroupByPriority:
			add(priorityLabel(t.Priority), t)
		case entities.GroupByDueDate:
			add(dueLabel(t.DueDate, today), t)
		case entities.GroupByTag:
			seen := map[string]bool{}
			for _, tag := range t.Tags {
				key := strings.ToLower(strings.TrimSpace(tag))
				if key == "" || seen[key] {
					continue
				}
				seen[key] = true
				add(TagLabel(key), t)
			}
			if len(seen) == 0 {
				add(LabelNoTags, t)
			}
		default:
			add("Ungrouped", t)
		}
	}
	return groups
}

func statusLabel(s entities.TaskStatus) string {
	switch s {
	case entities.TaskStatusTodo:
		return LabelTodo
	case entities.TaskStatusDoing:
		return LabelDoing
	case entities.TaskStatusDone:
		return LabelDone
	default:
		return string(s)
	}
}

func priorityLabel(p entities.Priority) string {
	switch p {
	case entities.PriorityHigh:
		return LabelHigh
	case entities.PriorityMedium:
		return LabelMedium
	case entities.PriorityLow:
		return LabelLow
	default:
		return string(p)
	}
}

// DaysUntil counts calendar days from today to due's day; negative when due
// has passed.
func DaysUntil(due, today time.Time) int {
	d := StartOfDay(due.In(today.Location()))
	// round absorbs DST shifts of an hour
	return int(math.Round(d.Sub(today).Hours() / 24))
}

func dueLabel(due *time.Time, today time.Time) string {
	if due == nil {
		return LabelNoDueDate
	}
	switch days := DaysUntil(*due, today); {
	case days < 0:
		return LabelOverdue
	case days == 0:
		return LabelToday
	case days <= 7:
		return LabelThisWeek
	case days <= 30:
		return LabelThisMonth
	default:
		return LabelLater
	}
}

// Columns returns the kanban board: one column per status in board order
func Columns(tasks []entities.Task) Groups {
	columns := make(Groups, len(entities.TaskStatuses))
	for i, s := range entities.TaskStatuses {
		columns[i] = Group{Label: statusLabel(s), Tasks: []entities.Task{}}
	}
	for _, t := range tasks {
		for i, s := range entities.TaskStatuses {
			if t.Status == s {
				columns[i].Tasks = append(columns[i].Tasks, t)
				break
			}
		}
	}
	return columns
}
