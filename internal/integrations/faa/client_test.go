package faa

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestParseTimestamp(t *testing.T) {
	cases := []struct {
		in   string
		want time.Time
	}{
		{"2025-11-03T14:22:10.5Z", time.Date(2025, 11, 3, 14, 22, 10, 500_000_000, time.UTC)},
		{"2025-11-03T16:22:10+02:00", time.Date(2025, 11, 3, 14, 22, 10, 0, time.UTC)},
		{"2025-11-03T14:22:10", time.Date(2025, 11, 3, 14, 22, 10, 0, time.UTC)},
		{"2025-11-03 14:22:10", time.Date(2025, 11, 3, 14, 22, 10, 0, time.UTC)},
		{"2025-11-01", time.Date(2025, 11, 1, 0, 0, 0, 0, time.UTC)},
	}
	for _, tc := range cases {
		got, err := ParseTimestamp(tc.in)
		require.NoError(t, err, tc.in)
		require.True(t, tc.want.Equal(got), "%s: got %s", tc.in, got)
	}

	_, err := ParseTimestamp("")
	require.Error(t, err)
	_, err = ParseTimestamp("yesterday")
	require.Error(t, err)
}

func TestRIDRecord_UpdatedTime(t *testing.T) {
	r := RIDRecord{UpdatedAt: "2025-01-02T03:04:05Z"}
	got, err := r.UpdatedTime()
	require.NoError(t, err)
	require.Equal(t, 2025, got.Year())
}
