package deviceauth

import (
	"errors"
	"fmt"
	"testing"
)

func TestIsTransientPollError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{
			name: "network error is transient",
			err:  errors.New("connection refused"),
			want: true,
		},
		{
			name: "unrecognized protocol code is transient",
			err:  &ProtocolError{Code: "server_hiccup"},
			want: true,
		},
		{
			name: "slow_down is not transient",
			err:  &ProtocolError{Code: ErrorCodeSlowDown},
			want: false,
		},
		{
			name: "access_denied is not transient",
			err:  &ProtocolError{Code: ErrorCodeAccessDenied},
			want: false,
		},
		{
			name: "expired_token is not transient",
			err:  &ProtocolError{Code: ErrorCodeExpiredToken},
			want: false,
		},
		{
			name: "wrapped terminal code is still not transient",
			err:  fmt.Errorf("poll: %w", &ProtocolError{Code: ErrorCodeAccessDenied}),
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isTransientPollError(tt.err); got != tt.want {
				t.Errorf("isTransientPollError(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}
