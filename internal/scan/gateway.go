package scan

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/healthbot/backend/internal/metrics"
	"github.com/healthbot/backend/pkg/circuitbreaker"
	"github.com/healthbot/backend/pkg/logger"
)

const ApologyMessage = "Sorry, I couldn't analyze the image. Please try again later."

var (
	ErrBadStatus     = errors.New("scan: endpoint returned non-success status")
	ErrMalformed     = errors.New("scan: malformed response")
	ErrNoPrediction  = errors.New("scan: response contained no prediction")
	ErrBadConfidence = errors.New("scan: confidence outside [0,1]")
)

type Image struct {
	Filename    string
	ContentType string
	Data        []byte
}

type Result struct {
	Label string
	// Confidence is a percentage in [0,100].
	Confidence float64
}

// Message rounds ties at two decimals away from zero; %.2f alone would round them to even.
func (r Result) Message() string {
	rounded := math.Floor(r.Confidence*100+0.5) / 100
	return fmt.Sprintf("Scan complete. Prediction: %s with %.2f%% confidence.", r.Label, rounded)
}

type Classifier interface {
	Classify(ctx context.Context, img Image) (*Result, error)
}

type prediction struct {
	Label string   `json:"label"`
	Conf  *float64 `json:"conf"`
}

type predictResponse struct {
	Data []prediction `json:"data"`
}

type HTTPGateway struct {
	endpoint   string
	httpClient *http.Client
	breaker    *circuitbreaker.CircuitBreaker
}

// NewHTTPGateway posts images to endpoint. A zero timeout leaves the call unbounded.
func NewHTTPGateway(endpoint string, timeout time.Duration) *HTTPGateway {
	return &HTTPGateway{
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: timeout},
		breaker: circuitbreaker.NewCircuitBreaker("scan", circuitbreaker.Config{
			FailureThreshold: 5,
			SuccessThreshold: 1,
			Timeout:          30 * time.Second,
			Logger:           logger.GetLogger(),
		}),
	}
}

// Classify makes exactly one request; failures are not retried.
func (g *HTTPGateway) Classify(ctx context.Context, img Image) (*Result, error) {
	start := time.Now()

	var result *Result
	err := g.breaker.Execute(ctx, func() error {
		var err error
		result, err = g.classify(ctx, img)
		return err
	})

	metrics.ScanDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.ScansTotal.WithLabelValues("failed").Inc()
		logger.Warn("Image scan failed",
			zap.String("filename", img.Filename),
			zap.Int("bytes", len(img.Data)),
			zap.Error(err),
		)
		return nil, err
	}

	metrics.ScansTotal.WithLabelValues("success").Inc()
	logger.Info("Image scan complete",
		zap.String("label", result.Label),
		zap.Float64("confidence", result.Confidence),
	)
	return result, nil
}

func (g *HTTPGateway) classify(ctx context.Context, img Image) (*Result, error) {
	body, contentType, err := encodeImage(img)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create scan request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("scan request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read scan response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: %d", ErrBadStatus, resp.StatusCode)
	}

	return decodeResponse(raw)
}

func encodeImage(img Image) (*bytes.Buffer, string, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	filename := filepath.Base(img.Filename)
	if filename == "." || filename == "/" {
		filename = "image"
	}

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, filename))
	contentType := img.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	header.Set("Content-Type", contentType)

	part, err := writer.CreatePart(header)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := part.Write(img.Data); err != nil {
		return nil, "", fmt.Errorf("failed to write image: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, "", fmt.Errorf("failed to finalize form: %w", err)
	}

	return body, writer.FormDataContentType(), nil
}

func decodeResponse(raw []byte) (*Result, error) {
	var payload predictResponse
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	if len(payload.Data) == 0 {
		return nil, ErrNoPrediction
	}

	top := payload.Data[0]
	if top.Label == "" || top.Conf == nil {
		return nil, fmt.Errorf("%w: missing label or conf", ErrMalformed)
	}
	if *top.Conf < 0 || *top.Conf > 1 {
		return nil, fmt.Errorf("%w: %v", ErrBadConfidence, *top.Conf)
	}

	return &Result{Label: top.Label, Confidence: *top.Conf * 100}, nil
}
