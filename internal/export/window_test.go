package export

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rollcall/internal/common"
)

func TestParseWindow(t *testing.T) {
	for in, want := range map[string]Window{
		"lecture": WindowLecture, "Month": WindowMonth, "monthly": WindowMonth, " year ": WindowYear, "yearly": WindowYear,
	} {
		got, err := ParseWindow(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}
	_, err := ParseWindow("week")
	assert.ErrorIs(t, err, common.ErrUnsupportedWindow)
}

func TestBounds(t *testing.T) {
	at := time.Date(2024, 3, 15, 14, 30, 0, 0, time.UTC)
	cases := []struct {
		w          Window
		start, end time.Time
	}{
		{WindowLecture, time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC), time.Date(2024, 3, 16, 0, 0, 0, 0, time.UTC)},
		{WindowMonth, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)},
		{WindowYear, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)},
	}
	for _, tc := range cases {
		start, end, err := tc.w.Bounds(at, time.UTC)
		require.NoError(t, err)
		assert.True(t, tc.start.Equal(start), "%s start %s", tc.w, start)
		assert.True(t, tc.end.Equal(end), "%s end %s", tc.w, end)
		assert.True(t, tc.w.Contains(at, at, time.UTC))
	}

	_, _, err := Window("week").Bounds(at, time.UTC)
	assert.ErrorIs(t, err, common.ErrUnsupportedWindow)
}

func TestContains_ExcludesAdjacentPeriods(t *testing.T) {
	at := time.Date(2024, 2, 20, 12, 0, 0, 0, time.UTC)
	marchFirst := time.Date(2024, 3, 1, 0, 0, 1, 0, time.UTC)
	lastOfFeb := time.Date(2024, 2, 29, 23, 59, 59, 0, time.UTC)
	febFirst := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)

	assert.False(t, WindowMonth.Contains(at, marchFirst, time.UTC))
	assert.True(t, WindowMonth.Contains(at, lastOfFeb, time.UTC))
	assert.True(t, WindowMonth.Contains(at, febFirst, time.UTC))
	assert.False(t, WindowLecture.Contains(at, at.Add(12*time.Hour), time.UTC))
	assert.False(t, WindowYear.Contains(at, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), time.UTC))
	assert.False(t, Window("week").Contains(at, at, time.UTC))
}

func TestBounds_UsesLocation(t *testing.T) {
	kolkata := time.FixedZone("IST", 5*3600+1800)
	// 20:00 UTC on the 29th is already March 1st in Kolkata.
	at := time.Date(2024, 2, 29, 20, 0, 0, 0, time.UTC)

	start, end, err := WindowLecture.Bounds(at, kolkata)
	require.NoError(t, err)
	assert.Equal(t, "2024-03-01", start.Format("2006-01-02"))
	assert.Equal(t, 24*time.Hour, end.Sub(start))
}

func TestFileName(t *testing.T) {
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, "Lecture_2024-03-01_attendance.csv", WindowLecture.FileName(start))
	assert.Equal(t, "Monthly_2024_03_attendance.csv", WindowMonth.FileName(start))
	assert.Equal(t, "Yearly_2024_attendance.csv", WindowYear.FileName(start))
}

func TestParseAt(t *testing.T) {
	kolkata := time.FixedZone("IST", 5*3600+1800)

	got, err := ParseAt("", kolkata)
	require.NoError(t, err)
	assert.True(t, got.IsZero())

	got, err = ParseAt("2024-03-15", kolkata)
	require.NoError(t, err)
	assert.True(t, got.Equal(time.Date(2024, 3, 15, 0, 0, 0, 0, kolkata)))

	got, err = ParseAt("2024-03-15T10:00:00Z", kolkata)
	require.NoError(t, err)
	assert.True(t, got.Equal(time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)))

	_, err = ParseAt("15/03/2024", kolkata)
	assert.True(t, common.IsValidation(err))
}
