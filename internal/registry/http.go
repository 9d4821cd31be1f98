package registry

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/Energy-Exe/energyexe-core-backend/internal/models"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// phasesResponse is the registry's /phases payload.
type phasesResponse struct {
	Phases []models.AssetPhase `json:"phases"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// HTTPLoader fetches phases from the asset registry service.
type HTTPLoader struct {
	httpClient *resty.Client
	logger     *zap.Logger
}

// NewHTTPLoader creates a registry client. token is sent as a bearer token
// when non-empty.
func NewHTTPLoader(baseURL, token string, timeout time.Duration, logger *zap.Logger) *HTTPLoader {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetRetryCount(3).
		SetRetryWaitTime(1 * time.Second).
		SetRetryMaxWaitTime(5 * time.Second).
		SetHeader("Accept", "application/json")
	if token != "" {
		client.SetAuthToken(token)
	}

	return &HTTPLoader{
		httpClient: client,
		logger:     logger,
	}
}

// ListPhases calls GET /phases?source=...
func (l *HTTPLoader) ListPhases(ctx context.Context, sources []models.Source) ([]models.AssetPhase, error) {
	params := url.Values{}
	for _, s := range sources {
		params.Add("source", string(s))
	}

	var (
		result  phasesResponse
		failure errorResponse
	)
	resp, err := l.httpClient.R().
		SetContext(ctx).
		SetQueryParamsFromValues(params).
		SetResult(&result).
		SetError(&failure).
		Get("/phases")
	if err != nil {
		return nil, fmt.Errorf("failed to call asset registry: %w", err)
	}
	if resp.IsError() {
		l.logger.Error("Asset registry returned error",
			zap.Int("status_code", resp.StatusCode()),
			zap.String("error", failure.Error),
		)
		return nil, fmt.Errorf("asset registry error: %s (status: %d)", failure.Error, resp.StatusCode())
	}

	for i := range result.Phases {
		result.Phases[i].ValidFrom = result.Phases[i].ValidFrom.UTC()
		if u := result.Phases[i].ValidUntil; u != nil {
			t := u.UTC()
			result.Phases[i].ValidUntil = &t
		}
	}
	return result.Phases, nil
}
