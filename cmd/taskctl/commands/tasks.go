package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/taskmaster/client/internal/adapters/render"
	"github.com/taskmaster/client/internal/application/localfilter"
	"github.com/taskmaster/client/internal/application/session"
	"github.com/taskmaster/client/internal/domain/entities"
)

// server query flag -> TaskFilters key
var taskFilterFlags = []struct {
	flag, key, usage string
}{
	{"status", "status", "Filter by status (todo, doing, done)"},
	{"priority", "priority", "Filter by priority (low, med, high)"},
	{"tag", "tag", "Filter by tag"},
	{"search", "search", "Search title and description"},
	{"sort-by", "sort_by", "Server sort field"},
	{"sort-order", "sort_order", "Server sort order (asc, desc)"},
	{"created-from", "created_from", "Created on or after (YYYY-MM-DD or RFC3339)"},
	{"created-to", "created_to", "Created on or before"},
	{"due-from", "due_from", "Due on or after"},
	{"due-to", "due_to", "Due on or before"},
	{"limit", "limit", "Page size"},
	{"page", "page", "Page number"},
}

// NewTasksCommand creates the tasks command with subcommands
func NewTasksCommand() *cobra.Command {
	tasksCmd := &cobra.Command{
		Use:   "tasks",
		Short: "Task commands",
		Long:  "List, inspect, create, update, move and delete tasks",
	}

	tasksCmd.AddCommand(newTasksListCommand())
	tasksCmd.AddCommand(newTasksGetCommand())
	tasksCmd.AddCommand(newTasksCreateCommand())
	tasksCmd.AddCommand(newTasksUpdateCommand())
	tasksCmd.AddCommand(newTasksMoveCommand())
	tasksCmd.AddCommand(newTasksDeleteCommand())
	return tasksCmd
}

func newTasksListCommand() *cobra.Command {
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			filters, err := parseTaskFilters(cmd.Flags())
			if err != nil {
				return err
			}
			local, err := parseLocalFilters(cmd.Flags())
			if err != nil {
				return err
			}
			view, _ := cmd.Flags().GetString("view")
			if view != "list" && view != "kanban" {
				return fmt.Errorf("unknown view %q", view)
			}

			return withSession(cmd, func(ctx context.Context, s *session.Session) error {
				if _, err := s.RequireUser(ctx); err != nil {
					return err
				}
				resp, err := s.Tasks.List(ctx, filters)
				if err != nil {
					return err
				}

				now := time.Now()
				tasks := localfilter.Apply(resp.Tasks, local, now)
				out := cmd.OutOrStdout()
				if view == "kanban" {
					fmt.Fprintln(out, render.Kanban(localfilter.Columns(tasks)))
				} else {
					fmt.Fprint(out, render.Groups(localfilter.GroupTasks(tasks, local.GroupBy, now), now))
				}
				fmt.Fprintln(out, render.Pagination(*resp))
				return nil
			})
		},
	}

	flags := listCmd.Flags()
	for _, f := range taskFilterFlags {
		flags.String(f.flag, "", f.usage)
	}

	defaults := entities.DefaultLocalFilters()
	flags.String("group-by", string(defaults.GroupBy), "Group by none, status, priority, tag or due_date")
	flags.String("local-sort", string(defaults.SortBy), "Sort the page by title, created_at, updated_at, due_date or priority")
	flags.String("local-order", string(defaults.SortOrder), "Local sort order (asc, desc)")
	flags.String("date-filter", string(defaults.DateFilter), "Due date window: all, today, week, month, overdue or custom")
	flags.String("from", "", "Custom window start (YYYY-MM-DD)")
	flags.String("to", "", "Custom window end (YYYY-MM-DD)")
	flags.Bool("hide-completed", false, "Hide done tasks")
	flags.String("view", "list", "Output view (list, kanban)")
	return listCmd
}

// parseTaskFilters applies every changed server filter flag in turn
func parseTaskFilters(flags *pflag.FlagSet) (entities.TaskFilters, error) {
	filters := entities.DefaultTaskFilters()
	var page string
	for _, f := range taskFilterFlags {
		if !flags.Changed(f.flag) {
			continue
		}
		value, _ := flags.GetString(f.flag)
		if f.key == "page" {
			// any other change resets the page, so it goes last
			page = value
			continue
		}
		var err error
		if filters, err = filters.Set(f.key, value); err != nil {
			return filters, err
		}
	}
	if page != "" {
		return filters.Set("page", page)
	}
	return filters, nil
}

func parseLocalFilters(flags *pflag.FlagSet) (entities.LocalFilters, error) {
	local := entities.DefaultLocalFilters()

	groupBy, _ := flags.GetString("group-by")
	sortBy, _ := flags.GetString("local-sort")
	sortOrder, _ := flags.GetString("local-order")
	dateFilter, _ := flags.GetString("date-filter")
	hideCompleted, _ := flags.GetBool("hide-completed")

	local.GroupBy = entities.GroupBy(groupBy)
	local.SortBy = entities.SortBy(sortBy)
	local.SortOrder = entities.SortOrder(sortOrder)
	local.DateFilter = entities.DateFilter(dateFilter)
	local.ShowCompleted = !hideCompleted

	for name, dst := range map[string]**time.Time{"from": &local.CustomDateFrom, "to": &local.CustomDateTo} {
		value, _ := flags.GetString(name)
		if value == "" {
			continue
		}
		t, err := entities.ParseDate(value)
		if err != nil {
			return local, err
		}
		*dst = &t
	}

	if err := entities.Validate(local); err != nil {
		return local, err
	}
	return local, nil
}

func newTasksGetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Show one task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, func(ctx context.Context, s *session.Session) error {
				task, err := s.Tasks.Get(ctx, args[0])
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), render.TaskDetail(*task, time.Now()))
				return nil
			})
		},
	}
}

func newTasksCreateCommand() *cobra.Command {
	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Create a task",
		RunE: func(cmd *cobra.Command, args []string) error {
			flags := cmd.Flags()
			title, _ := flags.GetString("title")
			status, _ := flags.GetString("status")
			priority, _ := flags.GetString("priority")
			tags, _ := flags.GetStringSlice("tags")

			req := entities.CreateTaskRequest{
				Title:    title,
				Status:   entities.TaskStatus(status),
				Priority: entities.Priority(priority),
				Tags:     tags,
			}
			if flags.Changed("description") {
				description, _ := flags.GetString("description")
				req.Description = &description
			}
			due, err := dueFlag(flags)
			if err != nil {
				return err
			}
			req.DueDate = due

			return withSession(cmd, func(ctx context.Context, s *session.Session) error {
				task, err := s.Tasks.Create(ctx, req)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Created task %s\n", task.ID)
				return nil
			})
		},
	}

	flags := createCmd.Flags()
	flags.String("title", "", "Task title, 3 to 120 characters (required)")
	flags.String("description", "", "Task description")
	flags.String("status", "", "Initial status (todo, doing, done)")
	flags.String("priority", "", "Priority (low, med, high)")
	flags.String("due", "", "Due date (YYYY-MM-DD or RFC3339)")
	flags.StringSlice("tags", nil, "Comma separated tags, at most 5")
	createCmd.MarkFlagRequired("title")
	return createCmd
}

func dueFlag(flags *pflag.FlagSet) (*time.Time, error) {
	value, _ := flags.GetString("due")
	if value == "" {
		return nil, nil
	}
	due, err := entities.ParseDate(value)
	if err != nil {
		return nil, err
	}
	return &due, nil
}

func newTasksUpdateCommand() *cobra.Command {
	updateCmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update fields of a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := parseUpdate(cmd.Flags())
			if err != nil {
				return err
			}
			if req.IsEmpty() {
				return fmt.Errorf("nothing to update")
			}

			return withSession(cmd, func(ctx context.Context, s *session.Session) error {
				task, err := s.Tasks.Update(ctx, args[0], req)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), render.TaskLine(*task, time.Now()))
				return nil
			})
		},
	}

	flags := updateCmd.Flags()
	flags.String("title", "", "New title")
	flags.String("description", "", "New description")
	flags.String("status", "", "New status (todo, doing, done)")
	flags.String("priority", "", "New priority (low, med, high)")
	flags.String("due", "", "New due date")
	flags.StringSlice("tags", nil, "Replace the tags")
	return updateCmd
}

// parseUpdate sets only the fields whose flags were given
func parseUpdate(flags *pflag.FlagSet) (entities.UpdateTaskRequest, error) {
	var req entities.UpdateTaskRequest

	if flags.Changed("title") {
		title, _ := flags.GetString("title")
		req.Title = &title
	}
	if flags.Changed("description") {
		description, _ := flags.GetString("description")
		req.Description = &description
	}
	if flags.Changed("status") {
		value, _ := flags.GetString("status")
		status, err := entities.ParseTaskStatus(value)
		if err != nil {
			return req, err
		}
		req.Status = &status
	}
	if flags.Changed("priority") {
		value, _ := flags.GetString("priority")
		priority, err := entities.ParsePriority(value)
		if err != nil {
			return req, err
		}
		req.Priority = &priority
	}
	if flags.Changed("due") {
		due, err := dueFlag(flags)
		if err != nil {
			return req, err
		}
		req.DueDate = due
	}
	if flags.Changed("tags") {
		tags, _ := flags.GetStringSlice("tags")
		req.Tags = append([]string{}, tags...)
	}
	return req, nil
}

func newTasksMoveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "move <id> <status>",
		Short: "Move a task to another kanban column",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			status, err := entities.ParseTaskStatus(args[1])
			if err != nil {
				return err
			}

			return withSession(cmd, func(ctx context.Context, s *session.Session) error {
				task, err := s.Tasks.Move(ctx, args[0], status)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), render.TaskLine(*task, time.Now()))
				return nil
			})
		},
	}
}

func newTasksDeleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, func(ctx context.Context, s *session.Session) error {
				if _, err := s.Tasks.Delete(ctx, args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted task %s\n", args[0])
				return nil
			})
		},
	}
}
