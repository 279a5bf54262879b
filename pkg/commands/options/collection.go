// Package options defines shared flag helpers for CLI commands.
package options

import (
	"errors"
	"strings"

	"github.com/spf13/cobra"
)

// CalendarOptions selects the calendar a command acts on.
type CalendarOptions struct {
	CalendarID string
}

// AddCalendarArgs wires the --calendar flag on the provided command.
func AddCalendarArgs(cmd *cobra.Command, o *CalendarOptions) {
	cmd.Flags().StringVarP(&o.CalendarID, "calendar", "c", "",
		"Specify the calendar id.")
}

// Require reports a missing --calendar.
func (o *CalendarOptions) Require() error {
	o.CalendarID = strings.TrimSpace(o.CalendarID)
	if o.CalendarID == "" {
		return errors.New("--calendar is required")
	}
	return nil
}
