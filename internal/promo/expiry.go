package promo

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/promolabs/promo-api/internal/lock"
	"github.com/promolabs/promo-api/internal/obs"
	"github.com/promolabs/promo-api/internal/resilience"
)

// TaskExpireRules is the asynq task type for the periodic expiry sweep.
const TaskExpireRules = "promo:expire"

// ExpireLockKey guards the sweep so concurrent worker instances do not all
// hit the API at once.
const ExpireLockKey = "promo:expire:lock"

// Sweeper triggers expiry sweeps against a running API instance. The rule
// store lives inside the API process, so the worker drives it over HTTP
// rather than sharing state.
type Sweeper struct {
	BaseURL string
	HTTP    resilience.HTTPClient
	Locker  lock.Locker
	Logger  zerolog.Logger
}

type sweepResponse struct {
	Data struct {
		Swept int `json:"swept"`
	} `json:"data"`
}

// HandleExpireTask processes one promo:expire task.
func (s Sweeper) HandleExpireTask(ctx context.Context, _ *asynq.Task) error {
	return s.Locker.WithLock(ctx, ExpireLockKey, func(ctx context.Context) error {
		swept, err := s.sweep(ctx)
		if err != nil {
			return err
		}
		if swept > 0 {
			s.Logger.Info().Int("swept", swept).Msg("expired rules deactivated")
		}
		return nil
	})
}

func (s Sweeper) sweep(ctx context.Context) (int, error) {
	client := s.HTTP
	if client.Client == nil {
		client.Client = &http.Client{Timeout: 10 * time.Second}
	}
	url := strings.TrimRight(s.BaseURL, "/") + "/api/v1/rules/sweep-expired"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, nil)
	if err != nil {
		return 0, err
	}
	resp, err := client.Do(ctx, req)
	if err != nil {
		return 0, err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("sweep expired rules: unexpected status %d", resp.StatusCode)
	}
	var body sweepResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return 0, err
	}
	if body.Data.Swept > 0 && obs.ExpiredRulesSwept != nil {
		obs.ExpiredRulesSwept.Add(float64(body.Data.Swept))
	}
	return body.Data.Swept, nil
}
