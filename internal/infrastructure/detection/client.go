package detection

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"vein-detect/internal/domain/entity"
	"vein-detect/internal/domain/port"
)

const (
	fieldFile       = "file"
	fieldConf       = "conf"
	predictPath     = "/predict"
	defaultMIME     = "image/jpeg"
	maxErrorSnippet = 512
)

// Client отправляет изображения в сервис детекции по HTTP
type Client struct {
	http *http.Client
}

// NewClient создаёт клиента. timeout 0 означает таймауты сетевого стека по умолчанию.
func NewClient(timeout time.Duration) *Client {
	return &Client{http: &http.Client{Timeout: timeout}}
}

// NewClientWithHTTP позволяет подставить свой http.Client
func NewClientWithHTTP(hc *http.Client) *Client {
	return &Client{http: hc}
}

// Predict делает одну попытку POST <base>/predict с полями file и conf
func (c *Client) Predict(ctx context.Context, base string, req port.PredictRequest) (*port.PredictResponse, error) {
	if req.Candidate == nil {
		return nil, errors.New("candidate is nil")
	}

	body, contentType, err := encodePayload(req)
	if err != nil {
		return nil, err
	}

	url := strings.TrimRight(base, "/") + predictPath
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", contentType)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("post %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorSnippet))
		return nil, &entity.StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(snippet))}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	mimeType := resp.Header.Get("Content-Type")
	if mimeType == "" {
		mimeType = defaultMIME
	}
	return &port.PredictResponse{Data: data, MIMEType: mimeType}, nil
}

func encodePayload(req port.PredictRequest) ([]byte, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	partType := req.Candidate.MIMEType
	if partType == "" {
		partType = "application/octet-stream"
	}
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, fieldFile, req.Candidate.Name))
	h.Set("Content-Type", partType)

	part, err := w.CreatePart(h)
	if err != nil {
		return nil, "", fmt.Errorf("create file part: %w", err)
	}
	if _, err := part.Write(req.Candidate.Data); err != nil {
		return nil, "", fmt.Errorf("write file part: %w", err)
	}
	if err := w.WriteField(fieldConf, req.Threshold.String()); err != nil {
		return nil, "", fmt.Errorf("write conf field: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("close multipart: %w", err)
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}

var _ port.Predictor = (*Client)(nil)
