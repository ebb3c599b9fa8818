// Package level maps lifetime XP totals onto levels and tiers.
// The table is static configuration; nothing here touches storage.
package level

// Tier is a coarse banding of level ranges.
type Tier string

const (
	TierBronze  Tier = "bronze"
	TierSilver  Tier = "silver"
	TierGold    Tier = "gold"
	TierDiamond Tier = "diamond"
)

type Level struct {
	Number    int    `json:"number"`
	Name      string `json:"name"`
	Threshold int64  `json:"threshold"`
	Tier      Tier   `json:"tier"`
}

// table thresholds are strictly increasing; level 1 starts at 0 XP.
var table = []Level{
	{1, "Newcomer", 0, TierBronze},
	{2, "Explorer", 100, TierBronze},
	{3, "Apprentice", 250, TierBronze},
	{4, "Student", 450, TierBronze},
	{5, "Learner", 700, TierBronze},
	{6, "Practitioner", 1000, TierSilver},
	{7, "Solver", 1400, TierSilver},
	{8, "Builder", 1900, TierSilver},
	{9, "Achiever", 2500, TierSilver},
	{10, "Specialist", 3200, TierSilver},
	{11, "Expert", 4000, TierGold},
	{12, "Veteran", 5000, TierGold},
	{13, "Strategist", 6200, TierGold},
	{14, "Scholar", 7600, TierGold},
	{15, "Mentor", 9200, TierGold},
	{16, "Master", 11000, TierDiamond},
	{17, "Grandmaster", 13000, TierDiamond},
	{18, "Sage", 15500, TierDiamond},
	{19, "Luminary", 18500, TierDiamond},
	{20, "Legend", 22000, TierDiamond},
}

// Table returns a copy of the level table for read surfaces.
func Table() []Level {
	out := make([]Level, len(table))
	copy(out, table)
	return out
}

// MaxLevel is the highest defined level number.
func MaxLevel() int {
	return table[len(table)-1].Number
}

// For returns the level for a lifetime XP total: the greatest level whose
// threshold does not exceed totalXP.
func For(totalXP int64) Level {
	if totalXP < 0 {
		totalXP = 0
	}
	current := table[0]
	for _, l := range table {
		if l.Threshold > totalXP {
			break
		}
		current = l
	}
	return current
}

// XPToNext returns the XP still needed for the next level, 0 at max level.
func XPToNext(totalXP int64) int64 {
	current := For(totalXP)
	if current.Number == MaxLevel() {
		return 0
	}
	return table[current.Number].Threshold - totalXP
}

// Progress returns how far the total sits inside the current level band,
// as a whole percentage clamped to [0, 100]. At max level it is 100.
func Progress(totalXP int64) int {
	current := For(totalXP)
	if current.Number == MaxLevel() {
		return 100
	}
	next := table[current.Number]
	span := next.Threshold - current.Threshold
	return int(100 * (totalXP - current.Threshold) / span)
}

// TierFor maps a level number onto its tier band.
func TierFor(levelNumber int) Tier {
	switch {
	case levelNumber >= 16:
		return TierDiamond
	case levelNumber >= 11:
		return TierGold
	case levelNumber >= 6:
		return TierSilver
	default:
		return TierBronze
	}
}
