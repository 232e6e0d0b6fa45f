package samgov

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalizeOffsetTimestamp(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "eastern daylight", in: "2022-04-08T16:00:00-04:00", want: "2022-04-08 13:00:00"},
		{name: "utc", in: "2022-04-08T16:00:00+00:00", want: "2022-04-08 09:00:00"},
		{name: "crosses midnight", in: "2022-04-08T02:30:00-04:00", want: "2022-04-07 23:30:00"},
		{name: "minutes ignored", in: "2022-04-08T16:00:00+05:30", want: "2022-04-08 04:00:00"},
		{name: "bad offset falls back to -4", in: "2022-04-08T16:00:00+xx:00", want: "2022-04-08 13:00:00"},
		{name: "missing offset sign passes through", in: "2022-04-08T16:00:00xx:00", want: "2022-04-08T16:00:00xx:00"},
		{name: "garbage passes through", in: "next tuesday", want: "next tuesday"},
		{name: "short passes through", in: "2022", want: "2022"},
		{name: "sentinel passes through", in: "-", want: "-"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tt.want, NormalizeOffsetTimestamp(tt.in))
		})
	}
}

func TestNormalizeFractionalTimestamp(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "utc with millis", in: "2022-07-22T21:50:57.483+00:00", want: "2022-07-22 14:50:57"},
		{name: "eastern with millis", in: "2022-07-22T21:50:57.483-04:00", want: "2022-07-22 18:50:57"},
		{name: "missing fraction passes through", in: "2022-07-22T21:50:57+00:00", want: "2022-07-22T21:50:57+00:00"},
		{name: "garbage passes through", in: "yesterday.ish", want: "yesterday.ish"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tt.want, NormalizeFractionalTimestamp(tt.in))
		})
	}
}

func TestNormalizers_ShiftMinusFourByThreeHours(t *testing.T) {
	t.Parallel()

	a := NormalizeOffsetTimestamp("2023-01-10T10:15:00-04:00")
	b := NormalizeFractionalTimestamp("2023-01-10T10:15:00.999-04:00")
	require.Equal(t, "2023-01-10 07:15:00", a)
	require.Equal(t, a, b)
}
