package app

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"vein-detect/internal/domain/entity"
	"vein-detect/internal/domain/port"
)

// DetectionService отправляет кандидата по списку адресов по очереди:
// одна попытка на адрес, без пауз и повторов.
type DetectionService struct {
	predictor port.Predictor
	endpoints []string
	artifacts *ArtifactManager
	cache     *SessionCache
	recorder  port.Recorder
	now       func() time.Time
}

// NewDetectionService создаёт оркестратор. endpoints перебираются в заданном порядке.
func NewDetectionService(predictor port.Predictor, endpoints []string, artifacts *ArtifactManager, cache *SessionCache, recorder port.Recorder) *DetectionService {
	return &DetectionService{
		predictor: predictor,
		endpoints: BuildEndpoints(endpoints...),
		artifacts: artifacts,
		cache:     cache,
		recorder:  recorderOrNop(recorder),
		now:       time.Now,
	}
}

// BuildEndpoints убирает пустые адреса и повторы, сохраняя порядок
func BuildEndpoints(bases ...string) []string {
	seen := make(map[string]bool, len(bases))
	out := make([]string, 0, len(bases))
	for _, b := range bases {
		b = strings.TrimRight(strings.TrimSpace(b), "/")
		if b == "" || seen[b] {
			continue
		}
		seen[b] = true
		out = append(out, b)
	}
	return out
}

// Endpoints возвращает адреса в порядке перебора
func (s *DetectionService) Endpoints() []string {
	return append([]string(nil), s.endpoints...)
}

// Submit отправляет кандидата. При успехе возвращает артефакт с одной ссылкой
// (для текущего просмотра) и добавляет запись в историю.
func (s *DetectionService) Submit(ctx context.Context, candidate *entity.Candidate, threshold entity.Threshold) (*entity.Artifact, error) {
	if candidate == nil {
		return nil, entity.ErrNoCandidate
	}
	if s.predictor == nil || len(s.endpoints) == 0 {
		return nil, &entity.RequestFailedError{Last: errors.New("detector is not configured")}
	}

	started := s.now()
	req := port.PredictRequest{Candidate: candidate, Threshold: threshold}

	var (
		resp    *port.PredictResponse
		lastErr error
		tried   int
	)
	for _, base := range s.endpoints {
		tried++
		r, err := s.predictor.Predict(ctx, base, req)
		outcome := entity.ClassifyAttempt(ctx, err)
		s.recorder.ObserveAttempt(base, outcome)
		if err == nil {
			resp = r
			break
		}
		slog.Warn("Prediction attempt failed", "endpoint", base, "outcome", outcome, "err", err)
		lastErr = err
		if ctx.Err() != nil {
			break
		}
	}

	if resp == nil {
		failure := &entity.RequestFailedError{Attempts: tried, Last: lastErr}
		s.recorder.ObserveSubmission("failed", s.now().Sub(started))
		slog.Error("Prediction failed", "name", candidate.Name, "detail", failure.Detail())
		return nil, failure
	}

	artifact, err := s.artifacts.Materialize(ctx, resp.Data, resp.MIMEType)
	if err != nil {
		s.recorder.ObserveSubmission("failed", s.now().Sub(started))
		return nil, err
	}

	if s.cache != nil {
		entry := entity.HistoryEntry{
			ID:        uuid.NewString(),
			Name:      candidate.Name,
			ResultURL: artifact.Handle,
			CreatedAt: s.now(),
		}
		if err := s.cache.AddHistory(ctx, entry); err != nil {
			slog.Error("Failed to persist history", "err", err)
		}
	}

	s.recorder.ObserveSubmission("ok", s.now().Sub(started))
	slog.Info("Prediction received", "name", candidate.Name, "artifact", artifact.Handle, "bytes", artifact.Size)
	return artifact, nil
}
