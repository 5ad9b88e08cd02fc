package retry

import (
	"errors"
	"testing"

	apperrors "github.com/jrsteele09/go-auth-sessions/internal/errors"
	"github.com/stretchr/testify/require"
)

func TestReadOnce(t *testing.T) {
	tests := []struct {
		name      string
		failures  []error
		wantCalls int
		wantErr   error
	}{
		{name: "success first call", failures: nil, wantCalls: 1},
		{name: "upstream then success", failures: []error{apperrors.Upstream(errors.New("boom"), "op")}, wantCalls: 2},
		{
			name:      "upstream twice",
			failures:  []error{apperrors.Upstream(errors.New("a"), "op"), apperrors.Upstream(errors.New("b"), "op")},
			wantCalls: 2,
			wantErr:   apperrors.ErrUpstreamUnavailable,
		},
		{name: "domain error not retried", failures: []error{apperrors.ErrInvalidToken}, wantCalls: 1, wantErr: apperrors.ErrInvalidToken},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			v, err := ReadOnce(func() (int, error) {
				calls++
				if calls <= len(tt.failures) {
					return 0, tt.failures[calls-1]
				}
				return 42, nil
			})
			require.Equal(t, tt.wantCalls, calls)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			require.Equal(t, 42, v)
		})
	}
}
