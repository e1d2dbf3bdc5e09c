package rewards

// Reward amounts. Catch-style rewards scale a level base by the tier
// coin multiplier; the daily stipend scales with level alone.
const (
	DailyBaseCoins  = 1500
	DailyLevelCoins = 150
	DailyXP         = 50

	PackCost = 5000
	PackXP   = 25

	CardXP       = 10
	NewCardXP    = 20
	NewCardCoins = 200
	PieceXP      = 5

	// ClaimPieceChance is the flat piece chance of the hourly claim.
	ClaimPieceChance = 0.03

	catchBaseCoins  = 50
	catchLevelCoins = 10
	bVariantFactor  = 2
)

// DailyCoins is the level-scaled daily stipend.
func DailyCoins(level int64) int64 {
	return DailyBaseCoins + DailyLevelCoins*level
}

// CardCoins prices one caught card by actor level and tier.
func CardCoins(level, multiplier int64, isB bool) int64 {
	coins := (catchBaseCoins + catchLevelCoins*level) * multiplier
	if isB {
		coins *= bVariantFactor
	}
	return coins
}

// PieceCoins prices one caught puzzle piece by actor level. Pieces
// ignore tier multipliers.
func PieceCoins(level int64) int64 {
	return catchBaseCoins + catchLevelCoins*level
}
