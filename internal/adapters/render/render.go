// Package render turns tasks, notifications and statistics into terminal text.
package render

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/taskmaster/client/internal/application/localfilter"
	"github.com/taskmaster/client/internal/domain/entities"
)

var (
	headerStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#5B8DEF")).Bold(true)
	mutedStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#999999"))
	overdueStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B")).Bold(true)
	doneStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#4CAF50")).Strikethrough(true)
	tagStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#F7B801"))
	columnStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("#5B8DEF")).Padding(0, 1).Width(32)
	bannerStyle   = lipgloss.NewStyle().Border(lipgloss.ThickBorder()).BorderForeground(lipgloss.Color("#F7B801")).Padding(0, 1)
	unreadStyle   = lipgloss.NewStyle().Bold(true)
	priorityStyle = map[entities.Priority]lipgloss.Style{
		entities.PriorityHigh:   lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B")),
		entities.PriorityMedium: lipgloss.NewStyle().Foreground(lipgloss.Color("#F7B801")),
		entities.PriorityLow:    lipgloss.NewStyle().Foreground(lipgloss.Color("#4CAF50")),
	}
)

const dateLayout = "2006-01-02"

func priorityStyleFor(p entities.Priority) lipgloss.Style {
	if style, ok := priorityStyle[p]; ok {
		return style
	}
	return mutedStyle
}

// TaskLine renders a single task on one line
func TaskLine(t entities.Task, now time.Time) string {
	title := t.Title
	if t.IsDone() {
		title = doneStyle.Render(title)
	}

	parts := []string{
		mutedStyle.Render("#" + t.ID),
		title,
		priorityStyleFor(t.Priority).Render("[" + string(t.Priority) + "]"),
	}
	if t.DueDate != nil {
		due := "due " + t.DueDate.In(now.Location()).Format(dateLayout)
		if t.IsOverdue(localfilter.StartOfDay(now)) {
			due = overdueStyle.Render(due + " (overdue)")
		}
		parts = append(parts, due)
	}
	for _, tag := range t.Tags {
		parts = append(parts, tagStyle.Render("#"+tag))
	}
	return strings.Join(parts, " ")
}

// TaskDetail renders every field of a task
func TaskDetail(t entities.Task, now time.Time) string {
	var b strings.Builder
	b.WriteString(headerStyle.Render(t.Title) + "\n")
	fmt.Fprintf(&b, "id:        %s\n", t.ID)
	fmt.Fprintf(&b, "status:    %s\n", t.Status)
	fmt.Fprintf(&b, "priority:  %s\n", t.Priority)
	if t.Description != nil && *t.Description != "" {
		fmt.Fprintf(&b, "details:   %s\n", *t.Description)
	}
	if t.DueDate != nil {
		fmt.Fprintf(&b, "due:       %s\n", t.DueDate.In(now.Location()).Format(dateLayout))
	}
	if len(t.Tags) > 0 {
		fmt.Fprintf(&b, "tags:      %s\n", strings.Join(t.Tags, ", "))
	}
	fmt.Fprintf(&b, "created:   %s\n", t.CreatedAt.In(now.Location()).Format(time.RFC3339))
	fmt.Fprintf(&b, "updated:   %s\n", t.UpdatedAt.In(now.Location()).Format(time.RFC3339))
	return b.String()
}

// Groups renders grouped tasks as headed lists. Empty groups are skipped.
func Groups(groups localfilter.Groups, now time.Time) string {
	var b strings.Builder
	for _, g := range groups {
		if len(g.Tasks) == 0 {
			continue
		}
		b.WriteString(headerStyle.Render(fmt.Sprintf("%s (%d)", g.Label, len(g.Tasks))) + "\n")
		for _, t := range g.Tasks {
			b.WriteString("  " + TaskLine(t, now) + "\n")
		}
		b.WriteString("\n")
	}
	if b.Len() == 0 {
		return mutedStyle.Render("No tasks") + "\n"
	}
	return b.String()
}

// Kanban renders the board columns side by side
func Kanban(columns localfilter.Groups) string {
	rendered := make([]string, len(columns))
	for i, col := range columns {
		lines := []string{headerStyle.Render(fmt.Sprintf("%s (%d)", col.Label, len(col.Tasks)))}
		for _, t := range col.Tasks {
			lines = append(lines, priorityStyleFor(t.Priority).Render("● ")+t.Title)
		}
		rendered[i] = columnStyle.Render(strings.Join(lines, "\n"))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, rendered...) + "\n"
}

// Pagination renders the page footer of a task listing
func Pagination(resp entities.TasksResponse) string {
	return mutedStyle.Render(fmt.Sprintf("page %d of %d, %d tasks", resp.Page, resp.TotalPages, resp.Total)) + "\n"
}

// Stats renders the analytics summary
func Stats(s entities.TaskStats) string {
	var b strings.Builder
	b.WriteString(headerStyle.Render("Task statistics") + "\n")
	fmt.Fprintf(&b, "total:            %d\n", s.TotalTasks)
	fmt.Fprintf(&b, "completion rate:  %.1f%%\n", s.CompletionRate)
	fmt.Fprintf(&b, "overdue:          %d\n", s.OverdueTasks)
	fmt.Fprintf(&b, "due today:        %d\n", s.DueToday)
	fmt.Fprintf(&b, "due this week:    %d\n", s.DueThisWeek)

	if len(s.TasksByStatus) > 0 {
		b.WriteString(headerStyle.Render("By status") + "\n")
		for _, k := range entities.SortedKeys(s.TasksByStatus) {
			fmt.Fprintf(&b, "  %-8s %d\n", k, s.TasksByStatus[k])
		}
	}
	if len(s.TasksByPriority) > 0 {
		b.WriteString(headerStyle.Render("By priority") + "\n")
		for _, k := range entities.SortedKeys(s.TasksByPriority) {
			fmt.Fprintf(&b, "  %-8s %d\n", k, s.TasksByPriority[k])
		}
	}

	p := s.PeriodSummary
	if p.Period != "" {
		b.WriteString(headerStyle.Render("Period: "+p.Period) + "\n")
		fmt.Fprintf(&b, "  created %d, completed %d, updated %d\n", p.TasksCreated, p.TasksCompleted, p.TasksUpdated)
	}
	for i, label := range s.TimeSeries.Labels {
		fmt.Fprintf(&b, "  %s  +%d  ✓%d  ~%d\n", label,
			at(s.TimeSeries.Created, i), at(s.TimeSeries.Completed, i), at(s.TimeSeries.Updated, i))
	}
	return b.String()
}

func at(values []int, i int) int {
	if i < len(values) {
		return values[i]
	}
	return 0
}

// User renders the signed-in user
func User(u entities.User) string {
	return fmt.Sprintf("%s <%s> (id %s)\n", u.Name, u.Email, u.ID)
}
