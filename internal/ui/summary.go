package ui

import (
	"fmt"
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// SessionSummary is what gets printed after leaving a room.
type SessionSummary struct {
	RoomID       string
	Duration     time.Duration
	Participants int
	ChatMessages int
	Recorded     bool
	ScreenShared bool
}

// SummaryTable renders the post-call summary.
func SummaryTable(s SessionSummary) string {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.Style().Color.Header = text.Colors{text.FgHiCyan, text.Bold}
	t.SetTitle("Session Summary")

	t.AppendHeader(table.Row{"Metric", "Value"})
	t.AppendRows([]table.Row{
		{"Room", s.RoomID},
		{"Duration", s.Duration.Round(time.Second).String()},
		{"Peers Seen", s.Participants},
		{"Chat Messages", s.ChatMessages},
		{"Recorded", yesNo(s.Recorded)},
		{"Screen Shared", yesNo(s.ScreenShared)},
	})

	return t.Render()
}

// RenderSummary prints the summary table to stdout.
func RenderSummary(s SessionSummary) {
	fmt.Fprintln(os.Stdout, SummaryTable(s))
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
