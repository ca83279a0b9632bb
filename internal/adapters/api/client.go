package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"reflect"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/taskmaster/client/internal/infrastructure/logger"
	"github.com/taskmaster/client/internal/infrastructure/metrics"
	"github.com/taskmaster/client/internal/ports"
)

const invalidJSONMessage = "Invalid JSON response"

// Options tunes the transport
type Options struct {
	Timeout        time.Duration
	RateLimitRPS   float64
	RateLimitBurst int
	HTTPClient     *http.Client
	Metrics        *metrics.Client
}

// Client is the API transport. It attaches the stored bearer token to every
// request and normalizes both response envelope shapes to the bare payload.
type Client struct {
	baseURL     string
	http        *http.Client
	credentials ports.CredentialStore
	limiter     *rate.Limiter
	metrics     *metrics.Client
	logger      *logger.Logger
}

// New creates a transport rooted at baseURL
func New(baseURL string, credentials ports.CredentialStore, opts Options, log *logger.Logger) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid base url %q", baseURL)
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: opts.Timeout}
	}

	var limiter *rate.Limiter
	if opts.RateLimitRPS > 0 {
		burst := opts.RateLimitBurst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.RateLimitRPS), burst)
	}

	return &Client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		http:        httpClient,
		credentials: credentials,
		limiter:     limiter,
		metrics:     opts.Metrics,
		logger:      log.WithComponent("api"),
	}, nil
}

// Get issues a GET with query parameters
func (c *Client) Get(ctx context.Context, path string, query map[string]interface{}, out interface{}) error {
	return c.Do(ctx, http.MethodGet, path, nil, query, out)
}

// Post issues a POST with a JSON body
func (c *Client) Post(ctx context.Context, path string, body, out interface{}) error {
	return c.Do(ctx, http.MethodPost, path, body, nil, out)
}

// Put issues a PUT with a JSON body
func (c *Client) Put(ctx context.Context, path string, body, out interface{}) error {
	return c.Do(ctx, http.MethodPut, path, body, nil, out)
}

// Delete issues a DELETE
func (c *Client) Delete(ctx context.Context, path string, out interface{}) error {
	return c.Do(ctx, http.MethodDelete, path, nil, nil, out)
}

// Do performs one request. Non-2xx statuses and undecodable bodies are
// returned as *TransportError. A 2xx response with an empty body leaves out untouched.
func (c *Client) Do(ctx context.Context, method, path string, body interface{}, query map[string]interface{}, out interface{}) error {
	endpoint := c.baseURL + path
	if values := EncodeQuery(query); len(values) > 0 {
		sep := "?"
		if strings.Contains(endpoint, "?") {
			sep = "&"
		}
		endpoint += sep + values.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}

	requestID := uuid.New().String()
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", requestID)

	if c.credentials != nil {
		token, err := c.credentials.Token(ctx)
		if err != nil {
			return fmt.Errorf("read credentials: %w", err)
		}
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return &TransportError{Message: err.Error(), Err: err}
		}
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.metrics.ObserveRequest(method, 0, time.Since(start))
		c.logger.WithRequestID(requestID).WithError(err).Warnw("API request failed", "method", method, "path", path)
		return &TransportError{Message: err.Error(), Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	duration := time.Since(start)
	c.metrics.ObserveRequest(method, resp.StatusCode, duration)
	c.logger.LogHTTPRequest(method, path, resp.StatusCode, float64(duration.Microseconds())/1000, requestID)
	if err != nil {
		return &TransportError{Status: resp.StatusCode, Message: err.Error(), Err: err}
	}

	return decodeResponse(resp.StatusCode, data, out)
}

type errorEnvelope struct {
	Success *bool `json:"success"`
	Error   *struct {
		Code    string                 `json:"code"`
		Message string                 `json:"message"`
		Fields  map[string]interface{} `json:"fields"`
	} `json:"error"`
}

func decodeResponse(status int, data []byte, out interface{}) error {
	ok := status >= 200 && status < 300
	trimmed := bytes.TrimSpace(data)

	if len(trimmed) == 0 {
		if ok {
			return nil
		}
		return statusError(status)
	}

	if !json.Valid(trimmed) {
		return &TransportError{Status: status, Message: invalidJSONMessage}
	}

	if !ok {
		var env errorEnvelope
		if err := json.Unmarshal(trimmed, &env); err == nil && env.Error != nil && env.Error.Message != "" {
			return &TransportError{
				Status:  status,
				Code:    env.Error.Code,
				Message: env.Error.Message,
				Fields:  env.Error.Fields,
			}
		}
		return statusError(status)
	}

	payload := unwrapEnvelope(trimmed)
	if out == nil || len(payload) == 0 || bytes.Equal(payload, []byte("null")) {
		return nil
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return &TransportError{Status: status, Message: invalidJSONMessage, Err: err}
	}
	return nil
}

// unwrapEnvelope returns data of a {success, data} wrapper, or the body
// itself for legacy bare payloads.
func unwrapEnvelope(body []byte) []byte {
	if body[0] != '{' {
		return body
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return body
	}
	if _, ok := fields["success"]; !ok {
		return body
	}
	return fields["data"]
}

// EncodeQuery serializes params, skipping nil values and nil pointers
func EncodeQuery(params map[string]interface{}) url.Values {
	values := url.Values{}
	for key, value := range params {
		if value == nil {
			continue
		}
		rv := reflect.ValueOf(value)
		if rv.Kind() == reflect.Ptr {
			if rv.IsNil() {
				continue
			}
			value = rv.Elem().Interface()
		}
		switch v := value.(type) {
		case time.Time:
			values.Add(key, v.UTC().Format(time.RFC3339))
		case []string:
			for _, s := range v {
				values.Add(key, s)
			}
		default:
			values.Add(key, fmt.Sprint(v))
		}
	}
	return values
}
