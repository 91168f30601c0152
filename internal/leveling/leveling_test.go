package leveling

import "testing"

func TestFixtures(t *testing.T) {
	if got := XpForNextLevel(1); got != 155 {
		t.Fatalf("XpForNextLevel(1) = %d, want 155", got)
	}
	if got := XpForLevel(2); got != 100 {
		t.Fatalf("XpForLevel(2) = %d, want 100", got)
	}
	if got := XpForLevel(1); got != 0 {
		t.Fatalf("XpForLevel(1) = %d, want 0", got)
	}

	cases := []struct {
		xp   uint64
		want uint32
	}{
		{0, 1},
		{99, 1},
		{100, 2},
		{254, 2},
		{255, 3},
	}
	for _, tc := range cases {
		if got := CalculateLevel(tc.xp); got != tc.want {
			t.Fatalf("CalculateLevel(%d) = %d, want %d", tc.xp, got, tc.want)
		}
	}
}

func TestCalculateLevel_Monotonic(t *testing.T) {
	prev := CalculateLevel(0)
	for xp := uint64(1); xp < 200_000; xp += 7 {
		cur := CalculateLevel(xp)
		if cur < prev {
			t.Fatalf("level decreased at xp=%d: %d -> %d", xp, prev, cur)
		}
		prev = cur
	}
}

func TestCalculateLevel_RoundTripsThresholds(t *testing.T) {
	for l := uint32(1); l <= 250; l++ {
		th := XpForLevel(l)
		if got := CalculateLevel(th); got != l {
			t.Fatalf("CalculateLevel(XpForLevel(%d)=%d) = %d", l, th, got)
		}
		if l > 1 {
			if got := CalculateLevel(th - 1); got != l-1 {
				t.Fatalf("CalculateLevel(%d) = %d, want %d", th-1, got, l-1)
			}
		}
	}
}

func TestProgressFor(t *testing.T) {
	p := ProgressFor(130)
	if p.Level != 2 || p.LevelStartXP != 100 || p.NextLevelXP != 255 {
		t.Fatalf("unexpected progress: %+v", p)
	}
	if p.IntoLevel != 30 || p.Remaining != 125 {
		t.Fatalf("unexpected progress split: %+v", p)
	}
}
