package directory

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"projectnotify/internal/config"
	"projectnotify/internal/constants"
	"projectnotify/internal/logger"
	"projectnotify/pkg/metrics"
)

// Client fetches project and user records from the directory API and creates
// discourse topics on its behalf. Every method fails fast; there is no
// internal retry.
type Client interface {
	GetProjectByID(ctx context.Context, id int64) (*Project, error)
	GetUserByID(ctx context.Context, id int64) (*User, error)
	GetSystemToken(ctx context.Context) (string, error)
	CreateTopic(ctx context.Context, topic Topic) error
}

type HTTPClient struct {
	cfg    config.DirectoryConfig
	client *http.Client
	logger logger.Logger

	tokenMu      sync.Mutex
	cachedToken  string
	tokenFetched time.Time
}

func NewHTTPClient(cfg config.DirectoryConfig, log logger.Logger) *HTTPClient {
	return &HTTPClient{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: log,
	}
}

// apiResponse is the directory's envelope: every payload sits under
// result.content.
type apiResponse struct {
	Result struct {
		Content json.RawMessage `json:"content"`
	} `json:"result"`
}

func (c *HTTPClient) GetProjectByID(ctx context.Context, id int64) (*Project, error) {
	token, err := c.GetSystemToken(ctx)
	if err != nil {
		return nil, err
	}

	content, err := c.get(ctx, fmt.Sprintf("%s/v4/projects/%d", c.cfg.BaseURL, id), token, "projects")
	if err != nil {
		return nil, err
	}

	var project Project
	if err := json.Unmarshal(content, &project); err != nil {
		return nil, fmt.Errorf("%w: decoding project %d: %v", ErrUnavailable, id, err)
	}
	return &project, nil
}

func (c *HTTPClient) GetUserByID(ctx context.Context, id int64) (*User, error) {
	query := url.QueryEscape("userId:" + strconv.FormatInt(id, 10))
	content, err := c.get(ctx, fmt.Sprintf("%s/v3/members/_search/?query=%s", c.cfg.BaseURL, query), "", "members")
	if err != nil {
		return nil, err
	}

	var users []User
	if err := json.Unmarshal(content, &users); err != nil {
		return nil, fmt.Errorf("%w: decoding user search for %d: %v", ErrUnavailable, id, err)
	}
	if len(users) == 0 {
		return nil, fmt.Errorf("%w: user %d", ErrNotFound, id)
	}
	return &users[0], nil
}

func (c *HTTPClient) GetSystemToken(ctx context.Context) (string, error) {
	c.tokenMu.Lock()
	defer c.tokenMu.Unlock()

	if c.cachedToken != "" && time.Since(c.tokenFetched) < c.cfg.TokenTTL {
		return c.cachedToken, nil
	}

	form := url.Values{}
	form.Set("clientId", c.cfg.ClientID)
	form.Set("secret", c.cfg.ClientSecret)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.cfg.BaseURL+"/v3/authorizations/", strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.client.Do(req)
	if err != nil {
		metrics.DirectoryRequestsTotal.WithLabelValues("authorizations", "error").Inc()
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()
	metrics.DirectoryRequestsTotal.WithLabelValues("authorizations", strconv.Itoa(resp.StatusCode)).Inc()

	if err := statusError(resp.StatusCode); err != nil {
		return "", fmt.Errorf("%w: fetching system token", err)
	}

	var body struct {
		Result struct {
			Content struct {
				Token string `json:"token"`
			} `json:"content"`
		} `json:"result"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("%w: decoding token response: %v", ErrUnavailable, err)
	}
	if body.Result.Content.Token == "" {
		return "", fmt.Errorf("%w: empty system token", ErrUnauthorized)
	}

	c.cachedToken = body.Result.Content.Token
	c.tokenFetched = time.Now()
	return c.cachedToken, nil
}

func (c *HTTPClient) CreateTopic(ctx context.Context, topic Topic) error {
	token, err := c.GetSystemToken(ctx)
	if err != nil {
		return err
	}

	payload, err := json.Marshal(topic)
	if err != nil {
		return fmt.Errorf("%w: encoding topic: %v", ErrUnavailable, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.cfg.BaseURL+"/v4/topics/", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.client.Do(req)
	if err != nil {
		metrics.DirectoryRequestsTotal.WithLabelValues("topics", "error").Inc()
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()
	metrics.DirectoryRequestsTotal.WithLabelValues("topics", strconv.Itoa(resp.StatusCode)).Inc()

	if err := statusError(resp.StatusCode); err != nil {
		return fmt.Errorf("%w: creating topic for project %s", err, topic.ReferenceID)
	}
	return nil
}

func (c *HTTPClient) get(ctx context.Context, rawURL, token, endpoint string) (json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		metrics.DirectoryRequestsTotal.WithLabelValues(endpoint, "error").Inc()
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()
	metrics.DirectoryRequestsTotal.WithLabelValues(endpoint, strconv.Itoa(resp.StatusCode)).Inc()

	if err := statusError(resp.StatusCode); err != nil {
		return nil, fmt.Errorf("%w: GET %s", err, rawURL)
	}

	var body apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("%w: decoding response: %v", ErrUnavailable, err)
	}
	return body.Result.Content, nil
}

func statusError(code int) error {
	switch {
	case code >= constants.HTTPStatusOKMin && code < constants.HTTPStatusOKMax:
		return nil
	case code == http.StatusNotFound:
		return ErrNotFound
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return ErrUnauthorized
	default:
		return ErrUnavailable
	}
}
