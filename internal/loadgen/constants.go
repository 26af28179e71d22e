package loadgen

// HTTP status code constants.
const (
	StatusOK       = 200
	StatusAccepted = 202
)

// PercentageMultiplier converts ratios to percentages.
const PercentageMultiplier = 100
