package main

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"habitbot/internal/config"
	"habitbot/internal/habit"
	"habitbot/internal/reminder"
)

func newTable(w io.Writer) table.Writer {
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.SetStyle(table.StyleLight)
	return tw
}

func habitKind(h habit.Habit) string {
	switch {
	case h.IsNice:
		return "pleasant"
	case h.Reward != "":
		return "reward: " + h.Reward
	case h.LinkedHabitID != nil:
		return "then #" + strconv.FormatInt(*h.LinkedHabitID, 10)
	default:
		return ""
	}
}

func renderHabits(w io.Writer, hs []habit.Habit) {
	tw := newTable(w)
	tw.AppendHeader(table.Row{"ID", "Owner", "Action", "Place", "Time", "Every", "Duration", "Kind", "Public"})
	for _, h := range hs {
		tw.AppendRow(table.Row{
			h.ID, h.Owner.Name, h.Action, h.Place, h.Time.HHMM(),
			fmt.Sprintf("%dd", h.Periodicity), fmt.Sprintf("%ds", h.Duration),
			habitKind(h), h.IsPublic,
		})
	}
	tw.AppendFooter(table.Row{"", "", "", "", "", "", "", "Total", len(hs)})
	tw.Render()
}

func renderHabit(w io.Writer, h habit.Habit) {
	identity := h.Owner.Identity()
	if identity == "" {
		identity = "(not linked)"
	}
	tw := newTable(w)
	tw.AppendRows([]table.Row{
		{"ID", h.ID},
		{"Owner", fmt.Sprintf("%s (#%d)", h.Owner.Name, h.OwnerID)},
		{"Telegram", identity},
		{"Action", h.Action},
		{"Place", h.Place},
		{"Time", h.Time.String()},
		{"Every", fmt.Sprintf("%d day(s)", h.Periodicity)},
		{"Duration", fmt.Sprintf("%ds", h.Duration)},
		{"Kind", habitKind(h)},
		{"Public", h.IsPublic},
	})
	tw.SetColumnConfigs([]table.ColumnConfig{{Number: 1, Colors: text.Colors{text.Bold}}})
	tw.Render()
}

func renderUsers(w io.Writer, us []habit.Owner) {
	tw := newTable(w)
	tw.AppendHeader(table.Row{"ID", "Name", "Telegram"})
	for _, u := range us {
		tw.AppendRow(table.Row{u.ID, u.Name, u.Identity()})
	}
	tw.Render()
}

func renderReport(w io.Writer, rep reminder.Report) {
	tw := newTable(w)
	tw.SetTitle(fmt.Sprintf("pass %s at %s", rep.RunID, rep.Now.Format(time.RFC3339)))
	tw.AppendHeader(table.Row{"Habit", "State", "Due", "Next", "Messages", "Error"})
	for _, o := range rep.Outcomes {
		due, next, errText := "", "", ""
		if !o.DueAt.IsZero() {
			due = o.DueAt.Format("2006-01-02 15:04")
		}
		if o.State == reminder.StateAdvanced {
			next = o.Next.HHMM()
		}
		if o.Err != nil {
			errText = o.Err.Error()
		}
		tw.AppendRow(table.Row{o.HabitID, string(o.State), due, next, o.Messages, errText})
	}
	tw.AppendFooter(table.Row{"", "advanced", rep.Count(reminder.StateAdvanced), "stuck", rep.Count(reminder.StateStuck), ""})
	tw.Render()
	if rep.Err != nil {
		fmt.Fprintln(w, "pass error:", rep.Err)
	}
}

func renderConfigSummary(w io.Writer, c *config.Config) {
	tz := c.Reminder.Timezone
	if tz == "" {
		tz = "local"
	}
	tw := newTable(w)
	tw.SetTitle("config ok")
	tw.AppendRows([]table.Row{
		{"storage", c.Storage.Driver},
		{"reminder.enabled", c.Reminder.Enabled},
		{"reminder.interval", c.Reminder.Interval},
		{"reminder.timezone", tz},
		{"telegram.commands", c.Telegram.Commands},
		{"logging.level", c.Logging.Level},
	})
	tw.Render()
}
