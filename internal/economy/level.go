package economy

// Levels start at 1 and are derived from experience, never stored. The
// first steps cost 100, 150, and 200 experience; every later level n
// costs n*150 on top of its predecessor's threshold.

var earlySteps = []int64{100, 150, 200}

// Level returns the greatest level whose threshold the experience meets.
func Level(experience int64) int64 {
	level, threshold := int64(1), int64(0)
	for _, step := range earlySteps {
		if threshold+step > experience {
			return level
		}
		threshold += step
		level++
	}
	for {
		step := (level + 1) * 150
		if threshold+step > experience {
			return level
		}
		threshold += step
		level++
	}
}

// LevelThreshold returns the experience required to reach a level.
// Levels at or below 1 cost nothing.
func LevelThreshold(level int64) int64 {
	threshold := int64(0)
	current := int64(1)
	for _, step := range earlySteps {
		if current >= level {
			return threshold
		}
		threshold += step
		current++
	}
	for current < level {
		current++
		threshold += current * 150
	}
	return threshold
}
