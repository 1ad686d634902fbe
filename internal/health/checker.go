package health

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
)

// Probes is the production Checker. The sales probe only asserts
// reachability; any HTTP response counts as alive.
type Probes struct {
	Redis        *redis.Client
	SalesBaseURL string
	HTTP         *http.Client
}

func (p Probes) PingRedis(ctx context.Context, timeout time.Duration) error {
	if p.Redis == nil {
		return errors.New("redis not configured")
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return p.Redis.Ping(ctx).Err()
}

func (p Probes) PingSalesAPI(ctx context.Context, timeout time.Duration) error {
	if p.SalesBaseURL == "" {
		return errors.New("sales api not configured")
	}
	client := p.HTTP
	if client == nil {
		client = http.DefaultClient
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, p.SalesBaseURL, nil)
	if err != nil {
		return err
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	_ = resp.Body.Close()
	return nil
}
