package logger

import "testing"

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    LogLevel
		wantErr bool
	}{
		{"debug", Debug, false},
		{"", Info, false},
		{"INFO", Info, false},
		{"warning", Warn, false},
		{"error", Error, false},
		{"loud", Info, true},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseLevel(%q) err = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
		if got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestNop(t *testing.T) {
	l := NewNop()
	l.With("portfolio", "p1").Infof("ignored %d", 1)
	l.Debugln("ignored")
}
