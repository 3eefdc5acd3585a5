package dialog

// Stage is the position of a session in the booking flow.
type Stage string

const (
	StageWelcome    Stage = "welcome"
	StageCollecting Stage = "collecting"
	StageConfirming Stage = "confirming"
	StageCompleted  Stage = "completed"
	StageFailed     Stage = "failed"
)

// Stages lists every stage a session can occupy.
func Stages() []Stage {
	return []Stage{StageWelcome, StageCollecting, StageConfirming, StageCompleted, StageFailed}
}

// Valid reports whether s is one of the known stages.
func (s Stage) Valid() bool {
	switch s {
	case StageWelcome, StageCollecting, StageConfirming, StageCompleted, StageFailed:
		return true
	default:
		return false
	}
}

// Terminal reports whether the booking attempt has finished.
func (s Stage) Terminal() bool {
	return s == StageCompleted || s == StageFailed
}

func (s Stage) String() string {
	return string(s)
}
