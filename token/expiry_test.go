package token_test

import (
	"testing"
	"time"

	"github.com/jrsteele09/go-auth-sessions/token"
	"github.com/stretchr/testify/require"
)

func TestParseExpiry(t *testing.T) {
	fallback := 42 * time.Second

	tests := []struct {
		value    string
		expected time.Duration
	}{
		{"900s", 900 * time.Second},
		{"15m", 15 * time.Minute},
		{"12h", 12 * time.Hour},
		{"7d", 7 * 24 * time.Hour},
		{"2w", 14 * 24 * time.Hour},
		{" 30m ", 30 * time.Minute},
		{"", fallback},
		{"m", fallback},
		{"15", fallback},
		{"15x", fallback},
		{"0m", fallback},
		{"-5m", fallback},
		{"1.5h", fallback},
		{"99999999999w", fallback},
		{"15250w", 15250 * 7 * 24 * time.Hour},
		{"9223372036854775807s", fallback},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			require.Equal(t, tt.expected, token.ParseExpiry(tt.value, fallback))
		})
	}
}
