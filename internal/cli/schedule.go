package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"keylock/internal/app"
	"keylock/internal/schedule"
	logx "keylock/pkg/logx"
)

func newScheduleCommand(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "schedule",
		Aliases: []string{"schedules", "s"},
		Short:   "Inspect and edit persisted schedules",
		Long: `Inspect and edit the schedule table in the configured store.

These commands do not talk to a running daemon. list and next work while
it runs; edits need the daemon stopped because it owns the store.`,
	}
	cmd.AddCommand(
		newListCommand(opts),
		newAddCommand(opts),
		newRemoveCommand(opts),
		newEnableCommand(opts, true),
		newEnableCommand(opts, false),
		newNextCommand(opts),
	)
	return cmd
}

func cliLogger(cmd *cobra.Command, opts *options) logx.Logger {
	level := "warn"
	if opts.verbose {
		level = "debug"
	}
	return logx.NewWriter(cmd.ErrOrStderr(), level)
}

func openOffline(cmd *cobra.Command, opts *options) (*app.Offline, error) {
	return app.OpenOffline(cmd.Context(), opts.configPath, cliLogger(cmd, opts))
}

func openReadOnly(cmd *cobra.Command, opts *options) (*app.Offline, error) {
	return app.OpenOfflineReadOnly(cmd.Context(), opts.configPath, cliLogger(cmd, opts))
}

func newListCommand(opts *options) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List schedules",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			off, err := openReadOnly(cmd, opts)
			if err != nil {
				return err
			}
			defer off.Close()

			list := off.Manager.ListSchedules()
			if asJSON {
				recs := make([]schedule.Record, 0, len(list))
				for _, s := range list {
					recs = append(recs, schedule.ToRecord(s))
				}
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(recs)
			}
			return writeTable(cmd.OutOrStdout(), list, time.Now().In(off.Manager.Location()))
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print persisted records as JSON")
	return cmd
}

func writeTable(w io.Writer, list []schedule.Schedule, now time.Time) error {
	if len(list) == 0 {
		_, err := fmt.Fprintln(w, "no schedules")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tACTION\tRULE\tENABLED\tNEXT")
	for _, s := range list {
		next := "-"
		if s.Enabled {
			if at, ok := schedule.NextFire(s, now); ok {
				next = at.Format(schedule.DateTimeLayout)
			}
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%t\t%s\n", s.ID, s.Name, s.Action, s.Describe(), s.Enabled, next)
	}
	return tw.Flush()
}

type addFlags struct {
	id, name, action, kind, at, days, duration string
	disabled                                   bool
}

func newAddCommand(opts *options) *cobra.Command {
	f := &addFlags{}
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a schedule",
		Example: `  keylock schedule add --kind daily --at 21:30 --duration 8h --action both --name bedtime
  keylock schedule add --kind weekly --days mon,thu --at 09:00:00 --action keyboard
  keylock schedule add --kind once --at "2025-12-24 18:00:00" --duration 2h
  keylock schedule add --kind countdown --at 10m --action mouse`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			off, err := openOffline(cmd, opts)
			if err != nil {
				return err
			}
			defer off.Close()

			s, err := f.schedule(off.Manager.Location())
			if err != nil {
				return err
			}
			id, err := off.Manager.AddSchedule(cmd.Context(), s)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), id)
			return nil
		},
	}
	fl := cmd.Flags()
	fl.StringVar(&f.id, "id", "", "Schedule id (generated when empty)")
	fl.StringVar(&f.name, "name", "", "Display name")
	fl.StringVar(&f.action, "action", string(schedule.ActionBoth), "keyboard, mouse or both")
	fl.StringVar(&f.kind, "kind", "", "once, daily, weekdays, weekends, weekly or countdown")
	fl.StringVar(&f.at, "at", "", `HH:MM[:SS], "YYYY-MM-DD HH:MM:SS" for once, seconds or a duration for countdown`)
	fl.StringVar(&f.days, "days", "", "Weekly days, e.g. mon,thu or 0,3 (Monday is 0)")
	fl.StringVar(&f.duration, "duration", "", "Auto-unlock after this long, e.g. 45m (empty locks indefinitely)")
	fl.BoolVar(&f.disabled, "disabled", false, "Add the schedule disabled")
	_ = cmd.MarkFlagRequired("kind")
	_ = cmd.MarkFlagRequired("at")
	return cmd
}

func (f *addFlags) schedule(loc *time.Location) (schedule.Schedule, error) {
	kind, err := schedule.ParseKind(f.kind)
	if err != nil {
		return schedule.Schedule{}, err
	}
	action, err := schedule.ParseAction(f.action)
	if err != nil {
		return schedule.Schedule{}, err
	}
	anchor, err := parseAt(kind, f.at, loc)
	if err != nil {
		return schedule.Schedule{}, err
	}
	days, err := parseDays(f.days)
	if err != nil {
		return schedule.Schedule{}, err
	}
	dur, err := parseLockDuration(f.duration)
	if err != nil {
		return schedule.Schedule{}, err
	}
	return schedule.Schedule{
		ID:       strings.TrimSpace(f.id),
		Name:     strings.TrimSpace(f.name),
		Action:   action,
		Kind:     kind,
		Anchor:   anchor,
		Days:     days,
		Duration: dur,
		Enabled:  !f.disabled,
	}, nil
}

func newRemoveCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:     "remove ID",
		Aliases: []string{"rm"},
		Short:   "Remove a schedule",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			off, err := openOffline(cmd, opts)
			if err != nil {
				return err
			}
			defer off.Close()
			return off.Manager.RemoveSchedule(cmd.Context(), args[0])
		},
	}
}

func newEnableCommand(opts *options, enabled bool) *cobra.Command {
	use, short := "enable ID", "Enable a schedule"
	if !enabled {
		use, short = "disable ID", "Disable a schedule"
	}
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			off, err := openOffline(cmd, opts)
			if err != nil {
				return err
			}
			defer off.Close()
			return off.Manager.SetEnabled(cmd.Context(), args[0], enabled)
		},
	}
}

func newNextCommand(opts *options) *cobra.Command {
	var count int
	cmd := &cobra.Command{
		Use:   "next [ID]",
		Short: "Preview upcoming lock times",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			off, err := openReadOnly(cmd, opts)
			if err != nil {
				return err
			}
			defer off.Close()

			var list []schedule.Schedule
			if len(args) == 1 {
				s, ok := off.Manager.GetSchedule(args[0])
				if !ok {
					return fmt.Errorf("%w: %s", schedule.ErrNotFound, args[0])
				}
				list = []schedule.Schedule{s}
			} else {
				list = off.Manager.ListSchedules()
			}
			now := time.Now().In(off.Manager.Location())
			w := cmd.OutOrStdout()
			for _, s := range list {
				preview := "disabled"
				if s.Enabled {
					if ts := schedule.Preview(s, now, count); len(ts) > 0 {
						preview = schedule.FormatPreview(ts)
					} else {
						preview = "no future occurrence"
					}
				}
				fmt.Fprintf(w, "%s (%s): %s\n", s.ID, s.Describe(), preview)
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&count, "count", "n", 3, "Number of occurrences to show")
	return cmd
}
