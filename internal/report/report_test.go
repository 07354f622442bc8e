package report

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParsePostedDate(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		in   string
		want string
	}{
		{"afternoon", "3/1/24 @ 2:15 PM", "2024-03-01T14:15:00"},
		{"evening", "2/7/26 @ 7:25 PM", "2026-02-07T19:25:00"},
		{"morning", "12/25/23 @ 9:05 AM", "2023-12-25T09:05:00"},
		{"noon", "6/15/24 @ 12:00 PM", "2024-06-15T12:00:00"},
		{"midnight", "6/15/24 @ 12:00 AM", "2024-06-15T00:00:00"},
		{"no at sign", "4/2/25 10:30 AM", "2025-04-02T10:30:00"},
		{"no meridiem", "4/2/25 @ 10:30", "2025-04-02T10:30:00"},
		{"lowercase meridiem", "4/2/25 @ 10:30 pm", "2025-04-02T22:30:00"},
		{"surrounding space", "  1/9/24 @ 6:45 AM  ", "2024-01-09T06:45:00"},
		{"pattern mismatch kept", "Yesterday at noon", "Yesterday at noon"},
		{"impossible day kept", "2/30/24 @ 1:00 PM", "2/30/24 @ 1:00 PM"},
		{"empty", "", ""},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tc.want, ParsePostedDate(tc.in))
		})
	}
}

func TestSourceID_Deterministic(t *testing.T) {
	t.Parallel()

	a := SourceID("Bob", "2024-03-01T14:15:00", "Caught 3 bass near the north shore drop off using a jig.")
	b := SourceID("Bob", "2024-03-01T14:15:00", "Caught 3 bass near the north shore drop off using a jig.")
	require.Equal(t, a, b)
	require.Len(t, a, 32)

	c := SourceID("Alice", "2024-03-01T14:15:00", "Caught 3 bass near the north shore drop off using a jig.")
	require.NotEqual(t, a, c)
}

func TestSourceID_TruncatesBodyAt100(t *testing.T) {
	t.Parallel()

	prefix := strings.Repeat("x", 100)
	a := SourceID("Bob", "2024-03-01T14:15:00", prefix+" first ending")
	b := SourceID("Bob", "2024-03-01T14:15:00", prefix+" completely different ending")
	// Known fidelity gap: only the first 100 characters participate.
	require.Equal(t, a, b)
}

func TestSeasonForMonth_TotalOverValidMonths(t *testing.T) {
	t.Parallel()

	want := map[int]string{
		1: "winter", 2: "winter", 3: "spring", 4: "spring",
		5: "spring", 6: "summer", 7: "summer", 8: "summer",
		9: "fall", 10: "fall", 11: "fall", 12: "winter",
	}
	for month := 1; month <= 12; month++ {
		require.Equal(t, want[month], SeasonForMonth(month), "month %d", month)
	}
	require.Empty(t, SeasonForMonth(0))
	require.Empty(t, SeasonForMonth(13))
}

func TestMonthFromDate(t *testing.T) {
	t.Parallel()

	got, err := MonthFromDate("2024-03-01T14:15:00")
	require.NoError(t, err)
	require.Equal(t, 3, got)

	got, err = MonthFromDate("2024-11-02")
	require.NoError(t, err)
	require.Equal(t, 11, got)

	_, err = MonthFromDate("Yesterday at noon")
	require.Error(t, err)
}

func TestMonthName(t *testing.T) {
	t.Parallel()

	require.Equal(t, "January", MonthName(1))
	require.Equal(t, "December", MonthName(12))
	require.Equal(t, "Unknown", MonthName(0))
	require.Equal(t, "Unknown", MonthName(13))
}
