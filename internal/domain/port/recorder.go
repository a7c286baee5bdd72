package port

import "time"

// Recorder собирает метрики работы оркестратора
type Recorder interface {
	ObserveAttempt(endpoint, outcome string)
	ObserveSubmission(outcome string, elapsed time.Duration)
	SetLiveArtifacts(n int)
	SetHistoryLength(n int)
}
