package render

import (
	"fmt"
	"strings"
	"time"

	"github.com/taskmaster/client/internal/domain/entities"
)

// Icon returns the glyph shown next to a notification of type t
func Icon(t entities.NotificationType) string {
	switch t {
	case entities.NotificationTaskDueSoon:
		return "⏰"
	case entities.NotificationTaskAssigned:
		return "📋"
	case entities.NotificationTaskCompleted:
		return "✅"
	case entities.NotificationTaskOverdue:
		return "🚨"
	case entities.NotificationTaskPriorityChanged:
		return "⚡"
	default:
		return "📢"
	}
}

// TimeAgo formats the age of a timestamp as "just now", "5m", "2h" or "3d"
func TimeAgo(created, now time.Time) string {
	d := now.Sub(created)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d/time.Minute))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh", int(d/time.Hour))
	default:
		return fmt.Sprintf("%dd", int(d/(24*time.Hour)))
	}
}

// NotificationLine renders one feed entry; unread entries are bold and marked
func NotificationLine(n entities.Notification, now time.Time) string {
	marker := " "
	title := n.Title
	if n.IsUnread() {
		marker = "•"
		title = unreadStyle.Render(title)
	}
	line := fmt.Sprintf("%s %s %s %s %s", marker, mutedStyle.Render(fmt.Sprintf("[%d]", n.ID)), Icon(n.NotificationType), title, mutedStyle.Render(TimeAgo(n.CreatedAt, now)))
	if n.Message != "" {
		line += "\n      " + n.Message
	}
	return line
}

// Feed renders the notification list under an unread counter
func Feed(notifications []entities.Notification, unread int, connected bool, now time.Time) string {
	var b strings.Builder
	status := "offline"
	if connected {
		status = "live"
	}
	b.WriteString(headerStyle.Render(fmt.Sprintf("Notifications (%d unread)", unread)) + " " + mutedStyle.Render(status) + "\n")
	if len(notifications) == 0 {
		b.WriteString(mutedStyle.Render("No notifications") + "\n")
		return b.String()
	}
	for _, n := range notifications {
		b.WriteString(NotificationLine(n, now) + "\n")
	}
	return b.String()
}

// Banner renders a pushed notification as a boxed alert
func Banner(n entities.Notification) string {
	body := Icon(n.NotificationType) + " " + unreadStyle.Render(n.Title)
	if n.Message != "" {
		body += "\n" + n.Message
	}
	return bannerStyle.Render(body) + "\n"
}
