package app

import (
	"time"

	"vein-detect/internal/domain/port"
)

// nopRecorder используется, когда метрики не подключены
type nopRecorder struct{}

func (nopRecorder) ObserveAttempt(string, string)           {}
func (nopRecorder) ObserveSubmission(string, time.Duration) {}
func (nopRecorder) SetLiveArtifacts(int)                    {}
func (nopRecorder) SetHistoryLength(int)                    {}

func recorderOrNop(r port.Recorder) port.Recorder {
	if r == nil {
		return nopRecorder{}
	}
	return r
}
