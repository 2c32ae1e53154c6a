package definition

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/sony/gobreaker"

	"github.com/playforge/gamehost/internal/v1/metrics"
)

const maxDefinitionBytes = 4 << 20

// RegistryClient fetches definitions from the template registry over HTTP.
// Calls are wrapped in a circuit breaker so a degraded registry cannot stall
// room creation indefinitely.
type RegistryClient struct {
	base   string
	client *http.Client
	cb     *gobreaker.CircuitBreaker
}

// NewRegistryClient points a client at the registry base URL.
func NewRegistryClient(base string) *RegistryClient {
	st := gobreaker.Settings{
		Name:        "definition-registry",
		MaxRequests: 3,
		Interval:    1 * time.Minute,
		Timeout:     30 * time.Second,
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			var stateVal float64
			switch to {
			case gobreaker.StateClosed:
				stateVal = 0
			case gobreaker.StateOpen:
				stateVal = 1
			case gobreaker.StateHalfOpen:
				stateVal = 2
			}
			metrics.CircuitBreakerState.WithLabelValues("definition-registry").Set(stateVal)
		},
	}

	return &RegistryClient{
		base:   base,
		client: &http.Client{Timeout: 10 * time.Second},
		cb:     gobreaker.NewCircuitBreaker(st),
	}
}

// Fetch downloads and validates one definition by id and optional version.
func (r *RegistryClient) Fetch(ctx context.Context, id, version string) (*Definition, error) {
	raw, err := r.cb.Execute(func() (interface{}, error) {
		u := fmt.Sprintf("%s/v1/definitions/%s", r.base, url.PathEscape(id))
		if version != "" {
			u += "?version=" + url.QueryEscape(version)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return nil, err
		}
		resp, err := r.client.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("registry returned %s for %s", resp.Status, id)
		}
		return io.ReadAll(io.LimitReader(resp.Body, maxDefinitionBytes))
	})
	if err != nil {
		if err == gobreaker.ErrOpenState {
			metrics.CircuitBreakerFailures.WithLabelValues("definition-registry").Inc()
			return nil, fmt.Errorf("definition registry unavailable (circuit open)")
		}
		return nil, err
	}

	return Parse(raw.([]byte))
}
