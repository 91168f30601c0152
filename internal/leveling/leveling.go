// Package leveling holds the XP → level curve. Every function is pure and
// safe for concurrent use; levels are 1-based and never stored independently
// of the XP total they are derived from.
package leveling

// MaxLevel bounds the search in CalculateLevel. xpForLevel(MaxLevel) is far
// beyond any reachable uint64 total when accumulated in practice, but the cap
// keeps the loop finite for adversarial inputs.
const MaxLevel uint32 = 100_000

// XpForNextLevel returns the XP cost of step l on the curve:
// 5·l² + 50·l + 100. Step 0 is the climb from level 1 to level 2.
func XpForNextLevel(l uint32) uint64 {
	n := uint64(l)
	return 5*n*n + 50*n + 100
}

// XpForLevel returns the cumulative XP at which a member reaches level l.
// Level 1 starts at 0 XP.
func XpForLevel(l uint32) uint64 {
	if l <= 1 {
		return 0
	}
	var total uint64
	for step := uint32(0); step < l-1; step++ {
		total += XpForNextLevel(step)
	}
	return total
}

// CalculateLevel returns the highest level whose cumulative threshold is at
// or below xp.
func CalculateLevel(xp uint64) uint32 {
	level := uint32(1)
	var threshold uint64
	for level < MaxLevel {
		next := threshold + XpForNextLevel(level-1)
		if next > xp || next < threshold { // overflow guard
			break
		}
		threshold = next
		level++
	}
	return level
}

// Progress describes where a member sits inside their current level.
type Progress struct {
	Level        uint32 `json:"level"`
	XP           uint64 `json:"xp"`
	LevelStartXP uint64 `json:"level_start_xp"`
	NextLevelXP  uint64 `json:"next_level_xp"`
	IntoLevel    uint64 `json:"xp_into_level"`
	Remaining    uint64 `json:"xp_remaining"`
}

// ProgressFor derives a Progress snapshot from a cumulative XP total.
func ProgressFor(xp uint64) Progress {
	level := CalculateLevel(xp)
	start := XpForLevel(level)
	next := start + XpForNextLevel(level-1)
	return Progress{
		Level:        level,
		XP:           xp,
		LevelStartXP: start,
		NextLevelXP:  next,
		IntoLevel:    xp - start,
		Remaining:    next - xp,
	}
}
