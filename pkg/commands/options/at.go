package options

import (
	"errors"
	"time"

	"github.com/spf13/cobra"

	"tableflip.dev/taskly/pkg/timeutil"
)

// AtOptions is a point in time given on the command line.
type AtOptions struct {
	AtString string
	// Now is used for relative input. Defaults to time.Now.
	Now func() time.Time
}

func AddAtArgs(cmd *cobra.Command, o *AtOptions, usage string) {
	cmd.Flags().StringVar(&o.AtString, "at", "", usage+
		` Examples: --at="2024-06-01 10:00", --at=10:00, --at=2024-06-01T10:00:00Z.`)
}

func (o *AtOptions) now() time.Time {
	if o.Now != nil {
		return o.Now()
	}
	return time.Now()
}

// GetAt parses --at. It is required.
func (o *AtOptions) GetAt() (time.Time, error) {
	if o.AtString == "" {
		return time.Time{}, errors.New("--at is required")
	}
	return timeutil.ParseSlot(o.AtString, o.now(), time.Local)
}

// SpanOptions is how long something lasts.
type SpanOptions struct {
	ForString string
}

func AddSpanArgs(cmd *cobra.Command, o *SpanOptions) {
	cmd.Flags().StringVar(&o.ForString, "for", timeutil.DefaultSpan,
		`How long the event lasts, example: --for=90m or --for=1h30m.`)
}

func (o *SpanOptions) GetFor() (time.Duration, error) {
	d, _, err := timeutil.ParseSpan(o.ForString)
	return d, err
}

// DayOptions selects one calendar day.
type DayOptions struct {
	OnString string
}

func AddDayArgs(cmd *cobra.Command, o *DayOptions) {
	cmd.Flags().StringVar(&o.OnString, "on", "today",
		`Specify a day, example: --on=2024-06-01, --on=tomorrow.`)
}

func (o *DayOptions) GetOn() (time.Time, error) {
	return timeutil.ParseDay(o.OnString, time.Now(), time.Local)
}
