package pace

// Trajectory is a runner's course position over day-scoped time in seconds.
type Trajectory struct {
	startSec  float64
	cutoffSec float64
	finishKM  float64
	profile   Profile
}

// NewTrajectory anchors profile at startSec. The runner stops contributing
// after cutoffSec, and once it reaches finishKM when finishKM is positive.
func NewTrajectory(startSec, cutoffSec, finishKM float64, profile Profile) Trajectory {
	return Trajectory{startSec: startSec, cutoffSec: cutoffSec, finishKM: finishKM, profile: profile}
}

// Start returns the runner's start time in seconds.
func (t Trajectory) Start() float64 { return t.startSec }

// Cutoff returns the time after which the runner has no position.
func (t Trajectory) Cutoff() float64 { return t.cutoffSec }

// FinishKM returns the finish chainage, or 0 when the course is open-ended.
func (t Trajectory) FinishKM() float64 { return t.finishKM }

// Profile returns the underlying pace profile.
func (t Trajectory) Profile() Profile { return t.profile }

// Active reports whether sec lies within [start, cutoff].
func (t Trajectory) Active(sec float64) bool {
	return sec >= t.startSec && sec <= t.cutoffSec
}

// Distance returns the chainage reached at sec ignoring the cutoff and finish;
// it is non-decreasing in sec.
func (t Trajectory) Distance(sec float64) float64 {
	return t.profile.Distance((sec - t.startSec) / 60)
}

// Position returns the runner's chainage at sec. ok is false before the
// start, after the cutoff, and once the runner has finished.
func (t Trajectory) Position(sec float64) (km float64, ok bool) {
	if !t.Active(sec) {
		return 0, false
	}
	km = t.Distance(sec)
	if t.finishKM > 0 && km >= t.finishKM {
		return km, false
	}
	return km, true
}

// Arrival returns the time at which the runner reaches km.
func (t Trajectory) Arrival(km float64) float64 {
	return t.startSec + t.profile.Elapsed(km)*60
}
