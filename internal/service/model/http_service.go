package model

import (
	"context"
	"fmt"
	"sort"
	"time"

	"MTFCast/internal/domain/models"
	"MTFCast/internal/domain/repository"
	pkghttp "MTFCast/pkg/http"
	applogger "MTFCast/pkg/logger"
)

// featureRow is the wire form of one aligned vector: per-timeframe OHLCV
// flattened into a fixed-order float slice so the service sees a stable
// feature layout regardless of map iteration order.
type featureRow struct {
	Timestamp time.Time `json:"timestamp"`
	Features  []float64 `json:"features"`
}

type fitRequest struct {
	Timeframes []string     `json:"timeframes"`
	Rows       []featureRow `json:"rows"`
	Targets    []float64    `json:"targets"`
}

type fitResponse struct {
	ModelID string `json:"model_id"`
}

type predictRequest struct {
	ModelID    string       `json:"model_id"`
	Timeframes []string     `json:"timeframes"`
	Rows       []featureRow `json:"rows"`
}

type predictResponse struct {
	Predictions []float64 `json:"predictions"`
}

type httpHandle struct {
	modelID    string
	timeframes []models.Timeframe
}

// HTTPService is a Trainable backed by an external model service speaking
// JSON over POST /fit and POST /predict. Absent timeframes are encoded as
// zero features plus a presence flag.
type HTTPService struct {
	client   *pkghttp.Client
	baseURL  string
	attempts int
	l        *applogger.Logger
}

func NewHTTPService(client *pkghttp.Client, baseURL string, attempts int, l *applogger.Logger) *HTTPService {
	if attempts < 1 {
		attempts = 1
	}
	return &HTTPService{client: client, baseURL: baseURL, attempts: attempts, l: l}
}

func (s *HTTPService) Fit(ctx context.Context, train []models.AlignedVector, targets []float64) (repository.ModelHandle, error) {
	if len(train) == 0 {
		return nil, fmt.Errorf("model service: empty training set")
	}
	tfs := timeframesOf(train)
	req := fitRequest{
		Timeframes: timeframeNames(tfs),
		Rows:       encodeRows(train, tfs),
		Targets:    targets,
	}

	var resp fitResponse
	if err := s.post(ctx, "/fit", req, &resp); err != nil {
		return nil, fmt.Errorf("model service fit: %w", err)
	}
	if resp.ModelID == "" {
		return nil, fmt.Errorf("model service fit: empty model id")
	}
	return httpHandle{modelID: resp.ModelID, timeframes: tfs}, nil
}

func (s *HTTPService) Predict(ctx context.Context, h repository.ModelHandle, eval []models.AlignedVector) ([]float64, error) {
	handle, ok := h.(httpHandle)
	if !ok {
		return nil, fmt.Errorf("model service: foreign model handle %T", h)
	}
	req := predictRequest{
		ModelID:    handle.modelID,
		Timeframes: timeframeNames(handle.timeframes),
		Rows:       encodeRows(eval, handle.timeframes),
	}

	var resp predictResponse
	if err := s.post(ctx, "/predict", req, &resp); err != nil {
		return nil, fmt.Errorf("model service predict: %w", err)
	}
	if len(resp.Predictions) != len(eval) {
		return nil, fmt.Errorf("model service predict: got %d predictions for %d rows", len(resp.Predictions), len(eval))
	}
	return resp.Predictions, nil
}

func (s *HTTPService) post(ctx context.Context, path string, body, dest interface{}) error {
	var lastErr error
	for attempt := 1; attempt <= s.attempts; attempt++ {
		lastErr = s.client.SendAndParse(ctx, &pkghttp.RequestOptions{
			Method: pkghttp.MethodPost,
			URL:    s.baseURL + path,
			Body:   body,
		}, dest)
		if lastErr == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if s.l != nil {
			s.l.Warn("model service request failed",
				applogger.String("path", path),
				applogger.Int("attempt", attempt),
				applogger.Error(lastErr),
			)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt) * 200 * time.Millisecond):
		}
	}
	return lastErr
}

func timeframesOf(vectors []models.AlignedVector) []models.Timeframe {
	seen := map[models.Timeframe]struct{}{}
	for _, v := range vectors {
		for tf := range v.ByTF {
			seen[tf] = struct{}{}
		}
	}
	tfs := make([]models.Timeframe, 0, len(seen))
	for tf := range seen {
		tfs = append(tfs, tf)
	}
	sort.Slice(tfs, func(i, j int) bool { return tfs[i] < tfs[j] })
	return tfs
}

func timeframeNames(tfs []models.Timeframe) []string {
	names := make([]string, len(tfs))
	for i, tf := range tfs {
		names[i] = tf.String()
	}
	return names
}

// encodeRows emits, per timeframe in order: presence flag, open, high, low,
// close, volume. Six floats per timeframe keeps row width constant.
func encodeRows(vectors []models.AlignedVector, tfs []models.Timeframe) []featureRow {
	rows := make([]featureRow, len(vectors))
	for i, v := range vectors {
		features := make([]float64, 0, len(tfs)*6)
		for _, tf := range tfs {
			if bar, ok := v.Bar(tf); ok {
				features = append(features, 1, bar.Open, bar.High, bar.Low, bar.Close, bar.Volume)
			} else {
				features = append(features, 0, 0, 0, 0, 0, 0)
			}
		}
		rows[i] = featureRow{Timestamp: v.Ref, Features: features}
	}
	return rows
}
