package date

import "testing"

// TestTime assert that the time() is cannonical and gives comparable times.
func TestTime(t *testing.T) {
	d1 := New(2025, 7, 31)
	d2 := New(2025, 7, 31)

	if d1.time() != d2.time() {
		// Note that usually time.Time are not comparable (there is a pointer for the timezone) this
		// tests also checks that the property remain true
		t.Errorf("invalid time() function same day gives two different time")
	}
}

func TestDaysSince(t *testing.T) {
	cases := []struct {
		name string
		from Date
		to   Date
		want int
	}{
		{"same day", New(2025, 1, 1), New(2025, 1, 1), 0},
		{"next day", New(2025, 1, 1), New(2025, 1, 2), 1},
		{"across february", New(2024, 2, 1), New(2024, 3, 1), 29},
		{"one year", New(2024, 3, 1), New(2025, 3, 1), 365},
		{"backwards", New(2025, 1, 2), New(2025, 1, 1), -1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.to.DaysSince(tc.from); got != tc.want {
				t.Errorf("DaysSince(%v, %v) = %d, want %d", tc.from, tc.to, got, tc.want)
			}
		})
	}
}
