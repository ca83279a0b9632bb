package mockapi

import (
	"time"

	"github.com/taskmaster/client/internal/domain/entities"
)

const statsDateLayout = "2006-01-02"

// ComputeStats summarizes tasks as of now. Totals ignore the date range;
// the period summary and time series only count tasks created in it.
func ComputeStats(tasks []entities.Task, q entities.StatsQuery, now time.Time) entities.TaskStats {
	period := q.Period
	if period == "" {
		period = entities.StatsPeriodDay
	}

	stats := entities.TaskStats{
		TotalTasks:      len(tasks),
		TasksByStatus:   map[string]int{},
		TasksByPriority: map[string]int{},
		PeriodSummary:   entities.PeriodSummary{Period: string(period)},
		TimeSeries: entities.TimeSeries{
			Labels:    []string{},
			Created:   []int{},
			Completed: []int{},
			Updated:   []int{},
		},
	}

	today := truncateDay(now)
	weekEnd := truncate(now, entities.StatsPeriodWeek).AddDate(0, 0, 7)

	from, to, fromOK, toOK := parseRange(q)
	if fromOK {
		stats.PeriodSummary.FromDate = &q.FromDate
	}
	if toOK {
		stats.PeriodSummary.ToDate = &q.ToDate
	}

	created := map[string]int{}
	completed := map[string]int{}
	updated := map[string]int{}

	for _, t := range tasks {
		stats.TasksByStatus[string(t.Status)]++
		stats.TasksByPriority[string(t.Priority)]++

		if t.DueDate != nil && !t.IsDone() {
			due := t.DueDate.In(now.Location())
			if due.Before(now) {
				stats.OverdueTasks++
			}
			if truncateDay(due).Equal(today) {
				stats.DueToday++
			}
			if !due.Before(today) && due.Before(weekEnd) {
				stats.DueThisWeek++
			}
		}

		inRange := (!fromOK || !t.CreatedAt.Before(from)) && (!toOK || t.CreatedAt.Before(to))
		if !inRange {
			continue
		}
		stats.PeriodSummary.TasksCreated++
		if t.IsDone() {
			stats.PeriodSummary.TasksCompleted++
		}
		if t.UpdatedAt.After(t.CreatedAt) {
			stats.PeriodSummary.TasksUpdated++
		}

		label := truncate(t.CreatedAt.In(now.Location()), period).Format(statsDateLayout)
		created[label]++
		if t.IsDone() {
			completed[truncate(t.UpdatedAt.In(now.Location()), period).Format(statsDateLayout)]++
		}
		if t.UpdatedAt.After(t.CreatedAt) {
			updated[truncate(t.UpdatedAt.In(now.Location()), period).Format(statsDateLayout)]++
		}
	}

	if stats.TotalTasks > 0 {
		stats.CompletionRate = float64(stats.TasksByStatus[string(entities.TaskStatusDone)]) / float64(stats.TotalTasks) * 100
	}

	// labels come from the created series, the others are aligned to them
	stats.TimeSeries.Labels = entities.SortedKeys(created)
	for _, label := range stats.TimeSeries.Labels {
		stats.TimeSeries.Created = append(stats.TimeSeries.Created, created[label])
		stats.TimeSeries.Completed = append(stats.TimeSeries.Completed, completed[label])
		stats.TimeSeries.Updated = append(stats.TimeSeries.Updated, updated[label])
	}
	return stats
}

// parseRange turns the inclusive day range into [from, to)
func parseRange(q entities.StatsQuery) (from, to time.Time, fromOK, toOK bool) {
	if t, err := time.Parse(statsDateLayout, q.FromDate); err == nil {
		from, fromOK = t, true
	}
	if t, err := time.Parse(statsDateLayout, q.ToDate); err == nil {
		to, toOK = t.AddDate(0, 0, 1), true
	}
	return from, to, fromOK, toOK
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// truncate rounds t down to the start of its day, ISO week, month or year
func truncate(t time.Time, period entities.StatsPeriod) time.Time {
	day := truncateDay(t)
	switch period {
	case entities.StatsPeriodWeek:
		offset := (int(day.Weekday()) + 6) % 7
		return day.AddDate(0, 0, -offset)
	case entities.StatsPeriodMonth:
		return time.Date(day.Year(), day.Month(), 1, 0, 0, 0, 0, day.Location())
	case entities.StatsPeriodYear:
		return time.Date(day.Year(), time.January, 1, 0, 0, 0, 0, day.Location())
	default:
		return day
	}
}
