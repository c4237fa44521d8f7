package directory

import (
	"context"
	"errors"
	"fmt"

	"github.com/sony/gobreaker"

	"projectnotify/internal/config"
	"projectnotify/pkg/circuitbreaker"
)

// CircuitBreakerClient shields the directory API behind a breaker. When the
// breaker is open, calls fail fast with ErrUnavailable instead of hitting a
// struggling upstream.
type CircuitBreakerClient struct {
	client Client
	cb     *circuitbreaker.Wrapper
}

func NewCircuitBreakerClient(client Client, cfg config.CircuitBreakerConfig) *CircuitBreakerClient {
	if !cfg.Enabled {
		return &CircuitBreakerClient{
			client: client,
			cb:     nil,
		}
	}

	cbConfig := circuitbreaker.DefaultConfig("directory-api")
	if cfg.MaxRequests > 0 {
		cbConfig.MaxRequests = cfg.MaxRequests
	}
	if cfg.Interval > 0 {
		cbConfig.Interval = cfg.Interval
	}
	if cfg.Timeout > 0 {
		cbConfig.Timeout = cfg.Timeout
	}
	if cfg.FailureRatio > 0 && cfg.MinRequests > 0 {
		cbConfig.ReadyToTrip = func(counts gobreaker.Counts) bool {
			if counts.Requests < uint32(cfg.MinRequests) {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= cfg.FailureRatio
		}
	}

	return &CircuitBreakerClient{
		client: client,
		cb:     circuitbreaker.NewWrapper(cbConfig),
	}
}

func (c *CircuitBreakerClient) GetProjectByID(ctx context.Context, id int64) (*Project, error) {
	if c.cb == nil {
		return c.client.GetProjectByID(ctx, id)
	}

	result, err := c.execute(ctx, func() (interface{}, error) {
		return c.client.GetProjectByID(ctx, id)
	})
	if err != nil {
		return nil, err
	}

	project, ok := result.(*Project)
	if !ok {
		return nil, fmt.Errorf("%w: directory client returned invalid result type", ErrUnavailable)
	}
	return project, nil
}

func (c *CircuitBreakerClient) GetUserByID(ctx context.Context, id int64) (*User, error) {
	if c.cb == nil {
		return c.client.GetUserByID(ctx, id)
	}

	result, err := c.execute(ctx, func() (interface{}, error) {
		return c.client.GetUserByID(ctx, id)
	})
	if err != nil {
		return nil, err
	}

	user, ok := result.(*User)
	if !ok {
		return nil, fmt.Errorf("%w: directory client returned invalid result type", ErrUnavailable)
	}
	return user, nil
}

func (c *CircuitBreakerClient) GetSystemToken(ctx context.Context) (string, error) {
	if c.cb == nil {
		return c.client.GetSystemToken(ctx)
	}

	result, err := c.execute(ctx, func() (interface{}, error) {
		return c.client.GetSystemToken(ctx)
	})
	if err != nil {
		return "", err
	}

	token, ok := result.(string)
	if !ok {
		return "", fmt.Errorf("%w: directory client returned invalid result type", ErrUnavailable)
	}
	return token, nil
}

func (c *CircuitBreakerClient) CreateTopic(ctx context.Context, topic Topic) error {
	if c.cb == nil {
		return c.client.CreateTopic(ctx, topic)
	}

	_, err := c.execute(ctx, func() (interface{}, error) {
		return nil, c.client.CreateTopic(ctx, topic)
	})
	return err
}

func (c *CircuitBreakerClient) execute(ctx context.Context, fn func() (interface{}, error)) (interface{}, error) {
	result, err := c.cb.ExecuteWithContext(ctx, fn)

	c.cb.RecordRequest(err == nil)

	if err != nil {
		return nil, breakerError(err)
	}
	return result, nil
}

// breakerError keeps the client's failure taxonomy intact: gobreaker's own
// sentinels (breaker open, half-open request cap) surface as ErrUnavailable,
// everything else passes through unchanged.
func breakerError(err error) error {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: directory-api circuit breaker: %v", ErrUnavailable, err)
	}
	return err
}
