package analytics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestTimeOfDayAt_PartitionsTheDay(t *testing.T) {
	want := map[int]TimeOfDay{}
	for h := 0; h < 24; h++ {
		switch {
		case h >= 5 && h <= 11:
			want[h] = Morning
		case h >= 12 && h <= 16:
			want[h] = Afternoon
		case h >= 17 && h <= 20:
			want[h] = Evening
		default:
			want[h] = Night
		}
	}
	counts := map[TimeOfDay]int{}
	for h := 0; h < 24; h++ {
		got := TimeOfDayAt(time.Date(2025, 3, 1, h, 30, 0, 0, time.UTC))
		require.Equal(t, want[h], got, "hour %d", h)
		counts[got]++
	}
	require.Equal(t, map[TimeOfDay]int{Morning: 7, Afternoon: 5, Evening: 4, Night: 8}, counts)
}

func TestTimeOfDayAt_Boundaries(t *testing.T) {
	at := func(h, m int) TimeOfDay { return TimeOfDayAt(time.Date(2025, 1, 1, h, m, 0, 0, time.UTC)) }
	require.Equal(t, Night, at(4, 59))
	require.Equal(t, Morning, at(5, 0))
	require.Equal(t, Morning, at(11, 59))
	require.Equal(t, Afternoon, at(12, 0))
	require.Equal(t, Evening, at(17, 0))
	require.Equal(t, Night, at(21, 0))
}

func TestSeasonPolicy_Northern(t *testing.T) {
	want := []Season{Winter, Winter, Spring, Spring, Spring, Summer, Summer, Summer, Fall, Fall, Fall, Winter}
	seen := map[Season]bool{}
	for m := time.January; m <= time.December; m++ {
		got := NorthernHemisphere.Of(m)
		require.Equal(t, want[m-1], got, "month %s", m)
		seen[got] = true
	}
	require.Len(t, seen, 4)
}

func TestSeasonPolicyFor(t *testing.T) {
	p, err := SeasonPolicyFor("")
	require.NoError(t, err)
	require.Equal(t, NorthernHemisphere, p)

	p, err = SeasonPolicyFor("South")
	require.NoError(t, err)
	require.Equal(t, Winter, p.Of(time.July))
	require.Equal(t, Summer, p.Of(time.December))

	_, err = SeasonPolicyFor("equator")
	require.Error(t, err)
}

func TestDerive_UsesConfiguredLocation(t *testing.T) {
	tokyo, err := time.LoadLocation("Asia/Tokyo")
	require.NoError(t, err)

	// 2025-03-01 22:30 UTC is Sunday 07:30 in Tokyo.
	at := time.Date(2025, 3, 1, 22, 30, 0, 0, time.UTC)
	require.Equal(t, Derived{TimeOfDay: Night, DayOfWeek: "Saturday", Month: "March"}, Derive(at, time.UTC))
	require.Equal(t, Derived{TimeOfDay: Morning, DayOfWeek: "Sunday", Month: "March"}, Derive(at, tokyo))
}
