package entity

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrRequestFailed все адреса сервиса детекции ответили ошибкой
	ErrRequestFailed = errors.New("failed to get prediction")
	// ErrMalformedStoredState сохранённая запись не разбирается
	ErrMalformedStoredState = errors.New("malformed stored state")
	// ErrNoCandidate нечего отправлять
	ErrNoCandidate = errors.New("no image selected")
	// ErrNoResult нет текущего результата
	ErrNoResult = errors.New("no result yet")
	// ErrSubmissionPending предыдущая отправка ещё не завершилась
	ErrSubmissionPending = errors.New("submission already in progress")
	// ErrArtifactNotFound артефакт уже освобождён или не существовал
	ErrArtifactNotFound = errors.New("artifact not found")
	// ErrHistoryEntryNotFound в истории нет записи с таким номером или id
	ErrHistoryEntryNotFound = errors.New("history entry not found")
)

// AcquisitionError камера недоступна или доступ запрещён
type AcquisitionError struct {
	Reason error
}

func (e *AcquisitionError) Error() string {
	if e.Reason == nil {
		return "unable to access camera: "
	}
	return "unable to access camera: " + e.Reason.Error()
}

func (e *AcquisitionError) Unwrap() error {
	return e.Reason
}

// RequestFailedError отправка не удалась ни по одному адресу
type RequestFailedError struct {
	Attempts int   // сколько адресов было опробовано
	Last     error // ошибка последней попытки
}

func (e *RequestFailedError) Error() string {
	return ErrRequestFailed.Error()
}

// Detail возвращает текст с причиной последней попытки для логов
func (e *RequestFailedError) Detail() string {
	return fmt.Sprintf("%d attempts, last: %v", e.Attempts, e.Last)
}

func (e *RequestFailedError) Is(target error) bool {
	return target == ErrRequestFailed
}

func (e *RequestFailedError) Unwrap() error {
	return e.Last
}

// Классы результата одной попытки отправки, общие для логов и метрик
const (
	OutcomeOK       = "ok"
	OutcomeStatus   = "status"
	OutcomeNetwork  = "network"
	OutcomeCanceled = "canceled"
)

// StatusError сервис ответил кодом вне 2xx
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("status %d", e.Code)
	}
	return fmt.Sprintf("status %d: %s", e.Code, e.Body)
}

// ClassifyAttempt относит ошибку попытки к одному из классов Outcome*.
// Отмена определяется по контексту вызывающего: таймаут HTTP-клиента тоже
// оборачивает context.DeadlineExceeded, но это сетевая ошибка.
func ClassifyAttempt(ctx context.Context, err error) string {
	if err == nil {
		return OutcomeOK
	}
	if ctx != nil && ctx.Err() != nil {
		return OutcomeCanceled
	}
	var se *StatusError
	if errors.As(err, &se) {
		return OutcomeStatus
	}
	return OutcomeNetwork
}
