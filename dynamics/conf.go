package dynamics

import (
	"math"

	"github.com/veloxphys/velox2d/geom"
)

// StepConf carries every tunable a single Step reads. Worlds hold no mutable
// global configuration: callers pass the same conf each step for
// deterministic replay, or vary it knowingly.
type StepConf struct {
	// Dt is the time step in seconds.
	Dt float64

	VelocityIterations int
	PositionIterations int

	// TOIVelocityIterations and TOIPositionIterations bound the sub-step
	// solver used for continuous collision.
	TOIVelocityIterations int
	TOIPositionIterations int

	WarmStarting bool
	Continuous   bool
	AllowSleep   bool

	// VelocityThreshold is the relative normal speed below which
	// restitution is not applied, in m/s.
	VelocityThreshold float64

	// MaxTranslation and MaxRotation clamp per-step motion to keep the
	// solver numerically sane.
	MaxTranslation float64
	MaxRotation    float64

	// Baumgarte and TOIBaumgarte scale positional overlap resolution per
	// iteration for the regular and TOI position solvers.
	Baumgarte    float64
	TOIBaumgarte float64

	// MaxLinearCorrection and MaxAngularCorrection cap a single position
	// correction.
	MaxLinearCorrection  float64
	MaxAngularCorrection float64

	// LinearSlop and AngularSlop are the penetration tolerances the
	// position solvers (contacts, joint limits, TOI targets) drive
	// violations toward. The geom package constants are the defaults.
	LinearSlop  float64
	AngularSlop float64

	// MaxTOIRootIterations bounds the 1D root search inside each
	// time-of-impact query.
	MaxTOIRootIterations int

	// LinearSleepTolerance, AngularSleepTolerance and TimeToSleep govern
	// when an island may be put to sleep.
	LinearSleepTolerance  float64
	AngularSleepTolerance float64
	TimeToSleep           float64

	// MaxSubSteps bounds TOI sub-steps per contact per step; MaxTOIContacts
	// bounds the contacts a single TOI island may carry.
	MaxSubSteps    int
	MaxTOIContacts int
}

// DefaultStepConf returns the conventional 60 Hz tuning.
func DefaultStepConf() StepConf {
	return StepConf{
		Dt:                    1.0 / 60.0,
		VelocityIterations:    8,
		PositionIterations:    3,
		TOIVelocityIterations: 8,
		TOIPositionIterations: 20,
		WarmStarting:          true,
		Continuous:            true,
		AllowSleep:            true,
		VelocityThreshold:     1.0,
		MaxTranslation:        2.0,
		MaxRotation:           0.5 * math.Pi,
		Baumgarte:             0.2,
		TOIBaumgarte:          0.75,
		MaxLinearCorrection:   0.2,
		MaxAngularCorrection:  8.0 / 180.0 * math.Pi,
		LinearSlop:            geom.LinearSlop,
		AngularSlop:           geom.AngularSlop,
		MaxTOIRootIterations:  50,
		LinearSleepTolerance:  0.01,
		AngularSleepTolerance: 2.0 / 180.0 * math.Pi,
		TimeToSleep:           0.5,
		MaxSubSteps:           8,
		MaxTOIContacts:        32,
	}
}

// PreStats summarizes the narrow-phase refresh that precedes solving.
type PreStats struct {
	// Proxies is the number of broad-phase proxies synchronized.
	Proxies int
	// Added counts pairs admitted by the contact manager this step.
	Added int
	// Ignored, Destroyed and Updated count contacts skipped (both bodies
	// asleep or filtered), removed (proxies stopped overlapping), and
	// re-evaluated during Collide.
	Ignored   int
	Destroyed int
	Updated   int
	// Rejected counts overlapping pairs refused because the world was at
	// its WorldDef.MaxContacts cap.
	Rejected int
}

// RegStats summarizes the regular-phase island solves.
type RegStats struct {
	// Islands counts islands built by the awake-body traversal. Every
	// island built is solved, so this is also the solved-island count.
	Islands       int
	Bodies        int
	Contacts      int
	Joints        int
	MinSeparation float64
	Slept         int
	// Added counts contacts admitted by the post-solve broad-phase
	// refresh.
	Added int
}

// TOIStats summarizes the continuous-collision phase. Contacts counts
// time-of-impact queries, Advances counts sweeps advanced to an impact
// time, Added counts contacts admitted by sub-step broad-phase refreshes.
type TOIStats struct {
	Islands        int
	Contacts       int
	Advances       int
	RootIterations int
	Added          int
	// CapExceeded counts contacts excluded from continuous handling this
	// step because they exhausted StepConf.MaxSubSteps.
	CapExceeded int
}

// StepStats is returned by World.Step in place of wall-clock profiling;
// deterministic counters diff cleanly across replays.
type StepStats struct {
	Pre PreStats
	Reg RegStats
	TOI TOIStats
}

// timeStep is the solver's view of one (sub-)step.
type timeStep struct {
	dt           float64
	invDt        float64 // 0 when dt == 0
	dtRatio      float64 // dt * invDt0, scales warm-start impulses
	velIters     int
	posIters     int
	warmStarting bool
}

type position struct {
	c geom.Vec2
	a float64
}

type velocity struct {
	v geom.Vec2
	w float64
}

// solverData is handed to joints and the contact solver; positions and
// velocities are indexed by island body index.
type solverData struct {
	step       timeStep
	conf       *StepConf
	positions  []position
	velocities []velocity
}
