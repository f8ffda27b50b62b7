// Package clock provides an almanac.Plugin that reports the current time
// in local and UTC forms, so the agent can answer date/time questions.
package clock

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/almanac-ai/almanac"
)

// Plugin reports the current time. Note the output changes every run, so
// the staged artifact is superseded (and re-synced) on each pass.
type Plugin struct {
	now func() time.Time
}

var _ almanac.Plugin = (*Plugin)(nil)

// New creates the clock plugin.
func New() *Plugin {
	return &Plugin{now: time.Now}
}

// Name implements almanac.Plugin.
func (p *Plugin) Name() string { return "time" }

// Run formats the current time.
func (p *Plugin) Run(_ context.Context) (string, error) {
	now := p.now()
	utc := now.UTC()
	zone, _ := now.Zone()

	var b strings.Builder
	fmt.Fprintf(&b, "Current local time: %s (%s).\n", now.Format("2006-01-02 15:04:05"), zone)
	fmt.Fprintf(&b, "Current UTC time: %s.\n", utc.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&b, "Today is %s, %s %d, %d.\n",
		now.Weekday(), now.Month(), now.Day(), now.Year())
	fmt.Fprintf(&b, "Unix timestamp: %d.\n", now.Unix())
	return b.String(), nil
}
