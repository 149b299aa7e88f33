package schedule

import (
	"testing"

	"github.com/stretchr/testify/require"

	"reportplane/pkg/errutil"
)

func TestCompile(t *testing.T) {
	cases := []struct {
		name   string
		intent Intent
		want   string
	}{
		{"every 5 minutes", Intent{Kind: Every5Minutes}, "*/5 * * * *"},
		{"every 30 minutes", Intent{Kind: Every30Minutes}, "*/30 * * * *"},
		{"daily afternoon", Intent{Kind: Daily, TimeStr: "14:00"}, "0 14 * * *"},
		{"daily midnight", Intent{Kind: Daily, TimeStr: "0:05"}, "5 0 * * *"},
		{"weekly numeric day", Intent{Kind: Weekly, TimeStr: "09:30", DayOfWeek: "5"}, "30 9 * * 5"},
		{"weekly czech monday", Intent{Kind: Weekly, TimeStr: "09:30", DayOfWeek: "po"}, "30 9 * * 1"},
		{"weekly english name", Intent{Kind: Weekly, TimeStr: "18:15", DayOfWeek: "Wed"}, "15 18 * * 3"},
		{"monthly first", Intent{Kind: Monthly, TimeStr: "08:00", DayOfMonth: 1}, "0 8 1 * *"},
		{"custom passthrough", Intent{Kind: Custom, Expr: "15 3 * * 2"}, "15 3 * * 2"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Compile(tc.intent)
			require.NoError(t, err)
			require.Equal(t, tc.want, got)
		})
	}
}

func TestCompileValidation(t *testing.T) {
	cases := []struct {
		name   string
		intent Intent
	}{
		{"hour out of range", Intent{Kind: Daily, TimeStr: "25:00"}},
		{"minute out of range", Intent{Kind: Daily, TimeStr: "12:60"}},
		{"not a time", Intent{Kind: Daily, TimeStr: "noon"}},
		{"missing time", Intent{Kind: Weekly, DayOfWeek: "1"}},
		{"weekly day out of range", Intent{Kind: Weekly, TimeStr: "09:00", DayOfWeek: "7"}},
		{"weekly unknown name", Intent{Kind: Weekly, TimeStr: "09:00", DayOfWeek: "someday"}},
		{"weekly missing day", Intent{Kind: Weekly, TimeStr: "09:00"}},
		{"monthly day zero", Intent{Kind: Monthly, TimeStr: "08:00", DayOfMonth: 0}},
		{"monthly day too large", Intent{Kind: Monthly, TimeStr: "08:00", DayOfMonth: 32}},
		{"custom garbage", Intent{Kind: Custom, Expr: "not a cron"}},
		{"custom six fields", Intent{Kind: Custom, Expr: "0 0 * * * *"}},
		{"unknown kind", Intent{Kind: Kind("hourly")}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Compile(tc.intent)
			require.Error(t, err)
			require.Equal(t, errutil.StatusValidation, errutil.CodeOf(err))
		})
	}
}
