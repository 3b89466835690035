package domain

import "testing"

func TestFormatFurnaceLevel(t *testing.T) {
	testCases := []struct {
		level int
		want  string
	}{
		{-3, "0"},
		{0, "0"},
		{1, "1"},
		{30, "30"},
		{31, "30-1"},
		{34, "30-4"},
		{35, "FC 1"},
		{36, "FC 1-1"},
		{39, "FC 1-4"},
		{40, "FC 2"},
		{44, "FC 2-4"},
		{45, "FC 3"},
		{80, "FC 10"},
	}

	for _, tc := range testCases {
		if got := FormatFurnaceLevel(tc.level); got != tc.want {
			t.Errorf("FormatFurnaceLevel(%d) = %q, want %q", tc.level, got, tc.want)
		}
	}
}
