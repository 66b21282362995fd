package auth

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatLogLine(t *testing.T) {
	tests := []struct {
		name string
		msg  string
		args []any
		want string
	}{
		{
			name: "no arguments",
			msg:  "starting up",
			want: "[INF] AUTH starting up",
		},
		{
			name: "key value pairs",
			msg:  "login failed",
			args: []any{"email", "a@b.com", "error", errors.New("boom")},
			want: "[INF] AUTH login failed email=a@b.com error=boom",
		},
		{
			name: "trailing unpaired argument",
			msg:  "odd",
			args: []any{"key", "value", "dangling"},
			want: "[INF] AUTH odd key=value dangling",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := formatLogLine("INF", tt.msg, tt.args...)
			assert.Equal(t, tt.want, got)
			assert.NotContains(t, got, "%!", "pairs must not be treated as printf verbs")
		})
	}
}
