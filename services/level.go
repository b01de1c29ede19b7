package services

// Level curve: level L starts at 100*(L-1)^2 points.
const pointsPerLevelUnit = 100

// LevelForPoints returns floor(sqrt(total/100)) + 1. Negative totals are
// rejected before this is called and are treated as zero here.
func LevelForPoints(total int64) int {
	if total < 0 {
		total = 0
	}
	return int(isqrt(total/pointsPerLevelUnit)) + 1
}

// LevelThreshold is the total needed to reach level.
func LevelThreshold(level int) int64 {
	if level <= 1 {
		return 0
	}
	l := int64(level - 1)
	return pointsPerLevelUnit * l * l
}

// PointsForLevelSpan is the number of points between level and level+1.
func PointsForLevelSpan(level int) int64 {
	if level < 1 {
		level = 1
	}
	return LevelThreshold(level+1) - LevelThreshold(level)
}

// PointsToNextLevel is how many more points total needs for the next level.
func PointsToNextLevel(total int64) int64 {
	if total < 0 {
		total = 0
	}
	return LevelThreshold(LevelForPoints(total)+1) - total
}

func isqrt(n int64) int64 {
	if n < 2 {
		return n
	}
	// Newton's method on integers.
	x := n
	y := (x + 1) / 2
	for y < x {
		x = y
		y = (x + n/x) / 2
	}
	return x
}
