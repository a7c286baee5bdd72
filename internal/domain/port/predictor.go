package port

import (
	"context"

	"vein-detect/internal/domain/entity"
)

// PredictRequest данные одной отправки
type PredictRequest struct {
	Candidate *entity.Candidate
	Threshold entity.Threshold
}

// PredictResponse размеченное изображение из ответа сервиса
type PredictResponse struct {
	Data     []byte
	MIMEType string
}

// Predictor клиент удалённого сервиса детекции
type Predictor interface {
	// Predict делает ровно одну попытку POST <base>/predict
	Predict(ctx context.Context, base string, req PredictRequest) (*PredictResponse, error)
}
