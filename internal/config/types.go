package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Amount is a decimal read from a YAML scalar, quoted or not.
type Amount struct {
	decimal.Decimal
}

func NewAmount(s string) Amount {
	return Amount{decimal.RequireFromString(s)}
}

func (a *Amount) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: amount must be a scalar", value.Line)
	}
	d, err := decimal.NewFromString(strings.ReplaceAll(value.Value, "_", ""))
	if err != nil {
		return fmt.Errorf("%w: line %d: can't parse amount %q", err, value.Line, value.Value)
	}
	a.Decimal = d
	return nil
}

// ClockTime is a time of day written as "15:04", held as an offset from
// midnight UTC.
type ClockTime time.Duration

func ParseClockTime(s string) (ClockTime, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("%w: can't parse time of day %q", err, s)
	}
	return ClockTime(time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute), nil
}

func (c *ClockTime) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := ParseClockTime(value.Value)
	if err != nil {
		return fmt.Errorf("%w: line %d", err, value.Line)
	}
	*c = parsed
	return nil
}

func (c ClockTime) Duration() time.Duration {
	return time.Duration(c)
}

func (c ClockTime) String() string {
	d := time.Duration(c)
	return fmt.Sprintf("%02d:%02d", int(d.Hours()), int(d.Minutes())%60)
}
