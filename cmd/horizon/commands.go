package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/stefanpenner/horizon/pkg/store"
)

// withStore opens the app, loads every category and runs fn. Load failures
// fall back to the local cache and are only logged.
func (a *app) withStore(cmd *cobra.Command, fn func(ctx context.Context) error) error {
	if err := a.open(cmd.ErrOrStderr()); err != nil {
		return err
	}
	defer a.close()
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if err := a.store.LoadAll(ctx); err != nil {
		a.log.Warn("load", "error", err)
	}
	return fn(ctx)
}

// mutate runs fn against a loaded store, flushes the changes and prints the
// result. It fails with errUnsynced if anything is left unsynced and --force
// is not set.
func (a *app) mutate(cmd *cobra.Command, fn func() (any, error)) error {
	return a.withStore(cmd, func(ctx context.Context) error {
		result, err := fn()
		if err != nil {
			return err
		}
		if err := a.engine.Flush(ctx); err != nil {
			a.log.Warn("sync", "error", err)
		}
		if err := a.print(cmd.OutOrStdout(), result); err != nil {
			return err
		}
		return a.checkSynced(cmd.ErrOrStderr())
	})
}

func (a *app) checkSynced(w io.Writer) error {
	ok := a.guard.Leave(func(msg string) bool {
		fmt.Fprintln(w, strings.TrimSuffix(msg, " Leave anyway?"))
		return a.force
	})
	if !ok {
		return errUnsynced
	}
	return nil
}

// resolve finds a goal by id prefix or by "category:position" (1-based).
func (a *app) resolve(ref string) (store.Goal, error) {
	if name, pos, ok := strings.Cut(ref, ":"); ok {
		c, err := store.ParseCategory(name)
		if err != nil {
			return store.Goal{}, err
		}
		n, err := strconv.Atoi(pos)
		if err != nil {
			return store.Goal{}, &store.ValidationError{Field: "position", Reason: fmt.Sprintf("%q is not a number", pos)}
		}
		list := a.store.List(c)
		if n < 1 || n > len(list) {
			return store.Goal{}, &store.NotFoundError{Kind: "goal", ID: ref}
		}
		return list[n-1], nil
	}
	return a.store.FindByPrefix(ref)
}

func parsePosition(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return 0, &store.ValidationError{Field: "position", Reason: fmt.Sprintf("%q is not a position (1, 2, ...)", s)}
	}
	return n - 1, nil
}

// CLI Commands

func newListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list [category]",
		Short: "List goals, optionally for one category",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cats := store.Categories
			if len(args) == 1 {
				c, err := store.ParseCategory(args[0])
				if err != nil {
					return err
				}
				cats = []store.Category{c}
			}
			return a.withStore(cmd, func(context.Context) error {
				lists := make(map[store.Category][]store.Goal, len(cats))
				for _, c := range cats {
					lists[c] = a.store.List(c)
				}
				if a.json {
					if len(cats) == 1 {
						return outputJSON(cmd.OutOrStdout(), lists[cats[0]])
					}
					return outputJSON(cmd.OutOrStdout(), lists)
				}
				for i, c := range cats {
					if i > 0 {
						fmt.Fprintln(cmd.OutOrStdout())
					}
					printCategory(cmd.OutOrStdout(), c, lists[c])
				}
				return nil
			})
		},
	}
}

func printCategory(w io.Writer, c store.Category, goals []store.Goal) {
	done := 0
	for _, g := range goals {
		if g.Completed {
			done++
		}
	}
	fmt.Fprintf(w, "%s (%d/%d)\n", c.Title(), done, len(goals))
	if len(goals) == 0 {
		fmt.Fprintln(w, "  (empty)")
	}
	for i, g := range goals {
		fmt.Fprintf(w, "  %s\n", formatGoal(i, g))
	}
}

func formatGoal(i int, g store.Goal) string {
	status := "○"
	if g.Completed {
		status = "✓"
	}
	var extra []string
	if g.DueDate != nil {
		extra = append(extra, "due "+g.DueDate.String())
	}
	if g.Color != "" {
		extra = append(extra, g.Color)
	}
	line := fmt.Sprintf("%d. %s %s", i+1, status, g.Text)
	if len(extra) > 0 {
		line += " [" + strings.Join(extra, ", ") + "]"
	}
	return line + "  " + g.ID
}

func newStatsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show completion per category",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(cmd, func(context.Context) error {
				stats := a.store.Stats()
				if a.json {
					return outputJSON(cmd.OutOrStdout(), stats)
				}
				for _, p := range stats {
					fmt.Fprintf(cmd.OutOrStdout(), "%-8s %d/%d (%d%%)\n", p.Category.Title(), p.Completed, p.Total, p.Percent())
				}
				return nil
			})
		},
	}
}

func newAddCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "add <category> <text>",
		Short: "Add a goal to the end of a category",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := store.ParseCategory(args[0])
			if err != nil {
				return err
			}
			text := strings.Join(args[1:], " ")
			return a.mutate(cmd, func() (any, error) {
				list, err := a.store.Add(c, text)
				if err != nil {
					return nil, err
				}
				return goalResult{Action: "added", Goal: list[len(list)-1]}, nil
			})
		},
	}
}

func newToggleCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "toggle <id>",
		Short: "Toggle a goal between done and open",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.mutate(cmd, func() (any, error) {
				return a.updateGoal(args[0], "toggled", a.store.ToggleCompleted)
			})
		},
	}
}

func newEditCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "edit <id> <text>",
		Short: "Change a goal's text",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			text := strings.Join(args[1:], " ")
			return a.mutate(cmd, func() (any, error) {
				return a.updateGoal(args[0], "edited", func(id string) ([]store.Goal, error) {
					return a.store.EditText(id, text)
				})
			})
		},
	}
}

func newColorCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "color <id> <color|none>",
		Short: "Set or clear a goal's color",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			color := args[1]
			if strings.EqualFold(color, "none") {
				color = ""
			}
			return a.mutate(cmd, func() (any, error) {
				return a.updateGoal(args[0], "colored", func(id string) ([]store.Goal, error) {
					return a.store.SetColor(id, color)
				})
			})
		},
	}
}

func newDueCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "due <id> <YYYY-MM-DD|none>",
		Short: "Set or clear a goal's due date",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var due *store.Date
			if !strings.EqualFold(args[1], "none") {
				d, err := store.ParseDate(args[1])
				if err != nil {
					return err
				}
				due = &d
			}
			return a.mutate(cmd, func() (any, error) {
				return a.updateGoal(args[0], "updated", func(id string) ([]store.Goal, error) {
					return a.store.SetDueDate(id, due)
				})
			})
		},
	}
}

func newRemoveCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "rm <id>",
		Aliases: []string{"remove", "delete"},
		Short:   "Delete a goal",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.mutate(cmd, func() (any, error) {
				g, err := a.resolve(args[0])
				if err != nil {
					return nil, err
				}
				if _, err := a.store.Remove(g.ID); err != nil {
					return nil, err
				}
				return goalResult{Action: "deleted", Goal: g}, nil
			})
		},
	}
}

func newReorderCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "reorder <category> <from> <to>",
		Short: "Move a goal to another position in its category (positions start at 1)",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := store.ParseCategory(args[0])
			if err != nil {
				return err
			}
			from, err := parsePosition(args[1])
			if err != nil {
				return err
			}
			to, err := parsePosition(args[2])
			if err != nil {
				return err
			}
			return a.mutate(cmd, func() (any, error) {
				list, err := a.store.Reorder(c, from, to)
				if err != nil {
					return nil, err
				}
				return listResult{Category: c, Goals: list}, nil
			})
		},
	}
}

func newMoveCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "move <id> <category> <position>",
		Short: "Move a goal into a category at a position (starting at 1)",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			target, err := store.ParseCategory(args[1])
			if err != nil {
				return err
			}
			index, err := parsePosition(args[2])
			if err != nil {
				return err
			}
			return a.mutate(cmd, func() (any, error) {
				g, err := a.resolve(args[0])
				if err != nil {
					return nil, err
				}
				_, to, err := a.store.Move(g.ID, target, index)
				if err != nil {
					return nil, err
				}
				return listResult{Category: target, Goals: to}, nil
			})
		},
	}
}

func newClearCompletedCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "clear-completed <category>",
		Short: "Delete every completed goal in a category",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := store.ParseCategory(args[0])
			if err != nil {
				return err
			}
			return a.mutate(cmd, func() (any, error) {
				list, err := a.store.ClearCompleted(c)
				if err != nil {
					return nil, err
				}
				return listResult{Category: c, Goals: list}, nil
			})
		},
	}
}

func newResetCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "reset [category...]",
		Short: "Delete every goal, or every goal in the given categories",
		RunE: func(cmd *cobra.Command, args []string) error {
			var cats []store.Category
			for _, arg := range args {
				c, err := store.ParseCategory(arg)
				if err != nil {
					return err
				}
				cats = append(cats, c)
			}
			return a.withStore(cmd, func(ctx context.Context) error {
				if _, err := a.store.Reset(cats...); err != nil {
					return err
				}
				var err error
				if len(cats) == 0 {
					err = a.engine.ResetRemote(ctx)
				} else {
					err = a.engine.Flush(ctx)
				}
				if err != nil {
					a.log.Warn("reset", "error", err)
				}
				if len(cats) == 0 {
					cats = store.Categories
				}
				if err := a.print(cmd.OutOrStdout(), resetResult{Reset: cats}); err != nil {
					return err
				}
				return a.checkSynced(cmd.ErrOrStderr())
			})
		},
	}
}

func newSyncCmd(a *app) *cobra.Command {
	var pull bool
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Push the local cache to the remote",
		Long: strings.TrimSpace(`
Push the local cache to the remote. Use this after a command exited with
unsynced changes. With --pull the remote copy replaces the cache instead.`),
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.open(cmd.ErrOrStderr()); err != nil {
				return err
			}
			defer a.close()
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			if pull {
				if err := a.store.LoadAll(ctx); err != nil {
					return err
				}
				return a.print(cmd.OutOrStdout(), syncResult{Pulled: true, Stats: a.store.Stats()})
			}

			for _, c := range store.Categories {
				goals, ok, err := a.cache.Get(ctx, c)
				if err != nil {
					return err
				}
				if ok {
					a.engine.GoalsChanged(c, goals)
				}
			}
			if err := a.engine.Flush(ctx); err != nil {
				a.log.Warn("sync", "error", err)
			}
			if err := a.checkSynced(cmd.ErrOrStderr()); err != nil {
				return err
			}
			return a.print(cmd.OutOrStdout(), syncResult{Pushed: true})
		},
	}
	cmd.Flags().BoolVar(&pull, "pull", false, "Replace the local cache with the remote copy")
	return cmd
}

// updateGoal resolves ref and applies fn to the goal's id.
func (a *app) updateGoal(ref, action string, fn func(id string) ([]store.Goal, error)) (any, error) {
	g, err := a.resolve(ref)
	if err != nil {
		return nil, err
	}
	if _, err := fn(g.ID); err != nil {
		return nil, err
	}
	updated, _ := a.store.Find(g.ID)
	return goalResult{Action: action, Goal: updated}, nil
}

// Results

type goalResult struct {
	Action string     `json:"action"`
	Goal   store.Goal `json:"goal"`
}

type listResult struct {
	Category store.Category `json:"category"`
	Goals    []store.Goal   `json:"goals"`
}

type resetResult struct {
	Reset []store.Category `json:"reset"`
}

type syncResult struct {
	Pushed bool             `json:"pushed,omitempty"`
	Pulled bool             `json:"pulled,omitempty"`
	Stats  []store.Progress `json:"stats,omitempty"`
}

func (a *app) print(w io.Writer, v any) error {
	if a.json {
		return outputJSON(w, v)
	}
	switch r := v.(type) {
	case goalResult:
		fmt.Fprintf(w, "%s %s: %s\n", strings.ToUpper(r.Action[:1])+r.Action[1:], r.Goal.Category, r.Goal.Text)
	case listResult:
		printCategory(w, r.Category, r.Goals)
	case resetResult:
		names := make([]string, len(r.Reset))
		for i, c := range r.Reset {
			names[i] = string(c)
		}
		fmt.Fprintf(w, "Reset: %s\n", strings.Join(names, ", "))
	case syncResult:
		if r.Pulled {
			fmt.Fprintln(w, "Pulled from remote")
		} else {
			fmt.Fprintln(w, "Synced")
		}
	}
	return nil
}

// JSON helpers

func outputJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
