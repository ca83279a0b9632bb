// Package localfilter applies the in-memory filters of a task view: date
// windows, completed-task hiding, sorting and grouping. Every function is
// pure; the current time is passed in.
package localfilter

import (
	"sort"
	"strings"
	"time"

	"github.com/taskmaster/client/internal/domain/entities"
)

// undated sorts after every real due date
var undated = time.Date(9999, 12, 31, 0, 0, 0, 0, time.UTC)

// StartOfDay returns local midnight of t's day
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// Apply filters and sorts tasks. The input slice is not modified.
func Apply(tasks []entities.Task, filters entities.LocalFilters, now time.Time) []entities.Task {
	today := StartOfDay(now)

	out := make([]entities.Task, 0, len(tasks))
	for _, t := range tasks {
		if !matchesDate(&t, filters, today) {
			continue
		}
		if !filters.ShowCompleted && t.IsDone() {
			continue
		}
		out = append(out, t)
	}

	Sort(out, filters.SortBy, filters.SortOrder)
	return out
}

func matchesDate(t *entities.Task, f entities.LocalFilters, today time.Time) bool {
	if f.DateFilter == "" || f.DateFilter == entities.DateFilterAll {
		return true
	}
	if t.DueDate == nil {
		return false
	}
	due := t.DueDate.In(today.Location())

	switch f.DateFilter {
	case entities.DateFilterToday:
		return sameDay(due, today)
	case entities.DateFilterWeek:
		return !due.Before(today) && !due.After(today.AddDate(0, 0, 7))
	case entities.DateFilterMonth:
		return !due.Before(today) && !due.After(today.AddDate(0, 1, 0))
	case entities.DateFilterOverdue:
		return due.Before(today) && !t.IsDone()
	case entities.DateFilterCustom:
		if f.CustomDateFrom != nil && due.Before(*f.CustomDateFrom) {
			return false
		}
		if f.CustomDateTo != nil && due.After(*f.CustomDateTo) {
			return false
		}
		return true
	default:
		return true
	}
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// Sort orders tasks in place. Equal keys keep their relative order in both
// directions. An unknown sort key leaves the order untouched.
func Sort(tasks []entities.Task, by entities.SortBy, order entities.SortOrder) {
	cmp := comparator(by)
	if cmp == nil {
		return
	}
	desc := order == entities.SortDesc
	sort.SliceStable(tasks, func(i, j int) bool {
		if desc {
			return cmp(&tasks[j], &tasks[i]) < 0
		}
		return cmp(&tasks[i], &tasks[j]) < 0
	})
}

func comparator(by entities.SortBy) func(a, b *entities.Task) int {
	switch by {
	case entities.SortByTitle:
		return func(a, b *entities.Task) int {
			return strings.Compare(strings.ToLower(a.Title), strings.ToLower(b.Title))
		}
	case entities.SortByCreatedAt:
		return func(a, b *entities.Task) int { return compareTime(a.CreatedAt, b.CreatedAt) }
	case entities.SortByUpdatedAt:
		return func(a, b *entities.Task) int { return compareTime(a.UpdatedAt, b.UpdatedAt) }
	case entities.SortByDueDate:
		return func(a, b *entities.Task) int { return compareTime(dueOrMax(a), dueOrMax(b)) }
	case entities.SortByPriority:
		return func(a, b *entities.Task) int { return a.Priority.Rank() - b.Priority.Rank() }
	default:
		return nil
	}
}

func dueOrMax(t *entities.Task) time.Time {
	if t.DueDate == nil {
		return undated
	}
	return *t.DueDate
}

func compareTime(a, b time.Time) int {
	switch {
	case a.Before(b):
		return -1
	case a.After(b):
		return 1
	default:
		return 0
	}
}
