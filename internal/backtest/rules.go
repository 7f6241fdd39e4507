package backtest

import (
	"fmt"
	"strings"
	"time"

	"github.com/STTM-NSU/backtester/internal/model"
)

type Frequency string

const (
	Daily      Frequency = "daily"
	Weekly     Frequency = "weekly"
	Monthly    Frequency = "monthly"
	EndOfMonth Frequency = "end_of_month"
	BuyAndHold Frequency = "buy_and_hold"
)

// Rule decides whether a business day is a rebalance day.
type Rule interface {
	ShouldRebalance(day time.Time) bool
}

type RuleFunc func(day time.Time) bool

func (f RuleFunc) ShouldRebalance(day time.Time) bool {
	return f(day)
}

func nextBusinessDay(day time.Time) time.Time {
	next := day.Add(_day)
	for isWeekend(next) {
		next = next.Add(_day)
	}
	return next
}

func prevBusinessDay(day time.Time) time.Time {
	prev := day.Add(-_day)
	for isWeekend(prev) {
		prev = prev.Add(-_day)
	}
	return prev
}

func DailyRule() Rule {
	return RuleFunc(func(time.Time) bool { return true })
}

func WeeklyRule(weekday time.Weekday) Rule {
	return RuleFunc(func(day time.Time) bool { return day.Weekday() == weekday })
}

// MonthlyRule fires on the first business day of every month.
func MonthlyRule() Rule {
	return RuleFunc(func(day time.Time) bool { return prevBusinessDay(day).Month() != day.Month() })
}

// EndOfMonthRule fires on the last business day of every month.
func EndOfMonthRule() Rule {
	return RuleFunc(func(day time.Time) bool { return nextBusinessDay(day).Month() != day.Month() })
}

type onceRule struct {
	done bool
}

// OnceRule fires on the first day it is asked about and never again.
func OnceRule() Rule {
	return &onceRule{}
}

func (r *onceRule) ShouldRebalance(time.Time) bool {
	if r.done {
		return false
	}
	r.done = true
	return true
}

func ParseWeekday(s string) (time.Weekday, error) {
	for d := time.Sunday; d <= time.Saturday; d++ {
		if strings.EqualFold(d.String(), s) || strings.EqualFold(d.String()[:3], s) {
			return d, nil
		}
	}
	return 0, fmt.Errorf("%w: unknown weekday %q", model.ErrConfiguration, s)
}

func NewRule(freq Frequency, weekday string) (Rule, error) {
	switch freq {
	case Daily:
		return DailyRule(), nil
	case Weekly:
		d, err := ParseWeekday(weekday)
		if err != nil {
			return nil, err
		}
		return WeeklyRule(d), nil
	case Monthly:
		return MonthlyRule(), nil
	case EndOfMonth:
		return EndOfMonthRule(), nil
	case BuyAndHold:
		return OnceRule(), nil
	default:
		return nil, fmt.Errorf("%w: unknown rebalance frequency %q", model.ErrConfiguration, freq)
	}
}
