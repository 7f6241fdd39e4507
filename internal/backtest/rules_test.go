package backtest

import (
	"errors"
	"testing"
	"time"

	"github.com/STTM-NSU/backtester/internal/model"
)

func TestRules(t *testing.T) {
	tests := []struct {
		name string
		rule Rule
		day  time.Time
		want bool
	}{
		{"daily", DailyRule(), date(2020, 6, 2), true},
		{"weekly match", WeeklyRule(time.Wednesday), date(2020, 6, 3), true},
		{"weekly miss", WeeklyRule(time.Wednesday), date(2020, 6, 4), false},
		{"monthly first business day", MonthlyRule(), date(2020, 6, 1), true},
		{"monthly second day", MonthlyRule(), date(2020, 6, 2), false},
		{"monthly after weekend", MonthlyRule(), date(2020, 8, 3), true},
		{"end of month tuesday", EndOfMonthRule(), date(2020, 6, 30), true},
		{"end of month friday", EndOfMonthRule(), date(2020, 7, 31), true},
		{"end of month before weekend", EndOfMonthRule(), date(2020, 10, 30), true},
		{"end of month miss", EndOfMonthRule(), date(2020, 7, 30), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.rule.ShouldRebalance(tt.day); got != tt.want {
				t.Errorf("ShouldRebalance(%s) = %v, want %v", tt.day.Format(time.DateOnly), got, tt.want)
			}
		})
	}
}

func TestOnceRule(t *testing.T) {
	r := OnceRule()
	if !r.ShouldRebalance(date(2020, 6, 1)) {
		t.Fatal("first call should rebalance")
	}
	for _, day := range DailyBusinessDays(date(2020, 6, 2), date(2020, 6, 30)) {
		if r.ShouldRebalance(day) {
			t.Fatalf("rebalanced again on %s", day.Format(time.DateOnly))
		}
	}
}

func TestNewRule(t *testing.T) {
	r, err := NewRule(Weekly, "fri")
	if err != nil {
		t.Fatal(err)
	}
	if !r.ShouldRebalance(date(2020, 6, 5)) {
		t.Error("weekly friday rule should fire on a friday")
	}

	if _, err := NewRule(Weekly, "someday"); !errors.Is(err, model.ErrConfiguration) {
		t.Errorf("expected ErrConfiguration for bad weekday, got %v", err)
	}
	if _, err := NewRule("hourly", ""); !errors.Is(err, model.ErrConfiguration) {
		t.Errorf("expected ErrConfiguration for bad frequency, got %v", err)
	}
	for _, f := range []Frequency{Daily, Monthly, EndOfMonth, BuyAndHold} {
		if _, err := NewRule(f, ""); err != nil {
			t.Errorf("NewRule(%s): %v", f, err)
		}
	}
}

func TestParseWeekday(t *testing.T) {
	for in, want := range map[string]time.Weekday{
		"Monday": time.Monday,
		"wed":    time.Wednesday,
		"SUNDAY": time.Sunday,
	} {
		got, err := ParseWeekday(in)
		if err != nil || got != want {
			t.Errorf("ParseWeekday(%q) = %s, %v; want %s", in, got, err, want)
		}
	}
}
