package auth

// Recorder receives auth flow outcomes for metrics.
type Recorder interface {
	LoginAttempt(portal, outcome string)
	GuardRedirect(rule string)
	CallbackOutcome(outcome string)
}

type nopRecorder struct{}

func (nopRecorder) LoginAttempt(string, string) {}
func (nopRecorder) GuardRedirect(string)        {}
func (nopRecorder) CallbackOutcome(string)      {}

func recorderOrNop(r Recorder) Recorder {
	if r == nil {
		return nopRecorder{}
	}
	return r
}
