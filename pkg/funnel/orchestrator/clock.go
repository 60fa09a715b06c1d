package orchestrator

import (
	"errors"
	"strings"
	"time"

	"github.com/goodsign/monday"
)

const (
	// ZoneName labels the fixed civil offset every appointment is expressed
	// in. No daylight saving applies, whatever the date.
	ZoneName   = "-03:00"
	zoneOffset = -3 * 60 * 60

	ISOLayout         = "2006-01-02T15:04:05-07:00"
	displayDateLayout = "Monday, 2 de January de 2006"
	displayTimeLayout = "15:04"

	// maxWeekShifts bounds how far a past appointment is pushed forward.
	maxWeekShifts = 8
	week          = 7 * 24 * time.Hour
)

var ErrUnparseableDate = errors.New("dateISO is not a recognisable date")

// zonelessLayouts are read as wall-clock time in the civil zone.
var zonelessLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// Clock resolves "now" for one request, preferring the browser's reading.
type Clock struct {
	loc *time.Location
	now func() time.Time
}

func NewClock() *Clock {
	return &Clock{loc: time.FixedZone(ZoneName, zoneOffset), now: time.Now}
}

// Reference returns clientEpochMs as an instant when positive, else server time.
func (c *Clock) Reference(clientEpochMs int64) time.Time {
	if clientEpochMs > 0 {
		return time.UnixMilli(clientEpochMs).In(c.loc)
	}
	return c.now().In(c.loc)
}

func (c *Clock) Location() *time.Location {
	return c.loc
}

func (c *Clock) FormatISO(t time.Time) string {
	return t.In(c.loc).Format(ISOLayout)
}

// DisplayDate is the Brazilian Portuguese long date, e.g. "segunda-feira, 3 de junho de 2024".
func (c *Clock) DisplayDate(t time.Time) string {
	return monday.Format(t.In(c.loc), displayDateLayout, monday.LocalePtBR)
}

func (c *Clock) DisplayTime(t time.Time) string {
	return t.In(c.loc).Format(displayTimeLayout)
}

// Parse accepts RFC 3339 (with or without fraction) and the zoneless forms
// models tend to produce.
func (c *Clock) Parse(raw string) (time.Time, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return time.Time{}, ErrUnparseableDate
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.In(c.loc), nil
	}
	for _, layout := range zonelessLayouts {
		if t, err := time.ParseInLocation(layout, s, c.loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, ErrUnparseableDate
}

// NormalizeAppointment moves t into the future relative to now. A year before
// now's year is rewritten to now's year keeping month, day and time of day;
// if that is still not after now, whole weeks are added, at most maxWeekShifts.
func (c *Clock) NormalizeAppointment(t, now time.Time) time.Time {
	t = t.In(c.loc)
	current := now.In(c.loc)

	if t.Year() < current.Year() {
		// Feb 29 in a non-leap year rolls to Mar 1.
		t = time.Date(current.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), c.loc)
	}
	for i := 0; i < maxWeekShifts && !t.After(now); i++ {
		t = t.Add(week)
	}
	return t
}
