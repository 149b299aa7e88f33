// Package schedule compiles human schedule intents into 5-field cron
// expressions (minute, hour, day-of-month, month, day-of-week).
package schedule

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	cronlib "github.com/robfig/cron/v3"

	"reportplane/pkg/errutil"
)

// Kind enumerates the recognized schedule intents.
type Kind string

const (
	Every5Minutes  Kind = "every_5_minutes"
	Every30Minutes Kind = "every_30_minutes"
	Daily          Kind = "daily"
	Weekly         Kind = "weekly"
	Monthly        Kind = "monthly"
	Custom         Kind = "custom"
)

// Intent is a human schedule description as entered by an administrator.
type Intent struct {
	Kind       Kind
	TimeStr    string // HH:MM, required for daily/weekly/monthly
	DayOfWeek  string // 0-6 (0=Sunday) or a short day name, weekly only
	DayOfMonth int    // 1-31, monthly only
	Expr       string // raw cron expression, custom only
}

var timeRe = regexp.MustCompile(`^([01]?\d|2[0-3]):([0-5]\d)$`)

// dayNames maps short day names to cron weekday numbers (0=Sunday). English
// and Czech forms are accepted, the latter with and without diacritics.
var dayNames = map[string]int{
	"sun": 0, "mon": 1, "tue": 2, "wed": 3, "thu": 4, "fri": 5, "sat": 6,
	"ne": 0, "po": 1, "út": 2, "ut": 2, "st": 3, "čt": 4, "ct": 4, "pá": 5, "pa": 5, "so": 6,
}

var customParser = cronlib.NewParser(
	cronlib.Minute | cronlib.Hour | cronlib.Dom | cronlib.Month | cronlib.Dow,
)

// Compile turns an intent into a 5-field cron expression. Every failure is a
// ValidationError; nothing is installed for an intent that does not compile.
func Compile(in Intent) (string, error) {
	switch in.Kind {
	case Every5Minutes:
		return "*/5 * * * *", nil
	case Every30Minutes:
		return "*/30 * * * *", nil
	case Daily:
		hour, minute, err := parseTime(in.TimeStr)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%d %d * * *", minute, hour), nil
	case Weekly:
		hour, minute, err := parseTime(in.TimeStr)
		if err != nil {
			return "", err
		}
		dow, err := parseDayOfWeek(in.DayOfWeek)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%d %d * * %d", minute, hour, dow), nil
	case Monthly:
		hour, minute, err := parseTime(in.TimeStr)
		if err != nil {
			return "", err
		}
		if in.DayOfMonth < 1 || in.DayOfMonth > 31 {
			return "", errutil.Validation(fmt.Sprintf("day of month out of range: %d", in.DayOfMonth))
		}
		return fmt.Sprintf("%d %d %d * *", minute, hour, in.DayOfMonth), nil
	case Custom:
		expr := strings.TrimSpace(in.Expr)
		if _, err := customParser.Parse(expr); err != nil {
			return "", errutil.Validation("invalid cron expression", errutil.WithErr(err))
		}
		return expr, nil
	default:
		return "", errutil.Validation(fmt.Sprintf("unknown schedule kind: %q", in.Kind))
	}
}

func parseTime(timeStr string) (hour, minute int, err error) {
	m := timeRe.FindStringSubmatch(strings.TrimSpace(timeStr))
	if m == nil {
		return 0, 0, errutil.Validation(fmt.Sprintf("time must be HH:MM, got %q", timeStr))
	}
	hour, _ = strconv.Atoi(m[1])
	minute, _ = strconv.Atoi(m[2])
	return hour, minute, nil
}

func parseDayOfWeek(day string) (int, error) {
	day = strings.ToLower(strings.TrimSpace(day))
	if day == "" {
		return 0, errutil.Validation("weekly schedule requires a day of week")
	}
	if n, err := strconv.Atoi(day); err == nil {
		if n < 0 || n > 6 {
			return 0, errutil.Validation(fmt.Sprintf("day of week out of range: %d", n))
		}
		return n, nil
	}
	if n, ok := dayNames[day]; ok {
		return n, nil
	}
	return 0, errutil.Validation(fmt.Sprintf("unknown day of week: %q", day))
}
