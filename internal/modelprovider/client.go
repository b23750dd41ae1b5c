// Package modelprovider implements the Model Adapter: the single HTTP
// client through which the pipeline calls out to the vision/quality model
// for description, same-take comparison, quality comparison, and
// enhancement.
package modelprovider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/shotsort/shotsort-api/internal/media"
)

// Static errors for Model Adapter operations.
var (
	ErrAPIKeyNotSet  = errors.New("modelprovider: SHOTSORT_MODEL_API_KEY environment variable is not set")
	ErrServerError   = errors.New("modelprovider: server error")
	ErrRateLimited   = errors.New("modelprovider: rate limited")
	ErrRequestFailed = errors.New("modelprovider: request failed")
)

// Client is the port the pipeline stages call against.
type Client interface {
	// Describe returns a short label for one media file, used by the
	// Labeler stage.
	Describe(ctx context.Context, data io.Reader, mediaType media.Type, mimeType string) (label string, err error)

	// SameTake judges whether two images depict the same take, used by the
	// Clustering stage's Phase A and Phase B comparisons.
	SameTake(ctx context.Context, a, b io.Reader) (same bool, err error)

	// CompareQuality judges which of two same-bucket media is higher
	// quality, used by the Ranking stage. promptVariant is an optional hint
	// (e.g. for video pairs) and may be empty.
	CompareQuality(ctx context.Context, a, b io.Reader, mediaType media.Type, promptVariant string) (result QualityResult, err error)

	// Enhance produces an improved version of an image top pick, used by
	// the Enhancement stage.
	Enhance(ctx context.Context, data io.Reader) (enhanced io.ReadCloser, err error)

	// NameBucket proposes a 2-4 word name for a bucket given a handful of
	// its members' labels.
	NameBucket(ctx context.Context, labels []string) (name string, err error)
}

// QualityResult is the outcome of a CompareQuality call.
type QualityResult struct {
	// Winner is "a" or "b".
	Winner string
	// Confidence in [0,1] scales the Elo update's K factor (spec §4.6).
	Confidence float64
	Reasoning  string
}

// HTTPClient is the HTTP implementation of Client.
type HTTPClient struct {
	apiKey      string
	baseURL     string
	httpClient  *http.Client
	maxRetries  int
	baseBackoff time.Duration
}

var _ Client = (*HTTPClient)(nil)

// ClientOption configures an HTTPClient.
type ClientOption func(*HTTPClient)

// WithAPIKey sets the API key for authentication.
func WithAPIKey(key string) ClientOption {
	return func(hc *HTTPClient) { hc.apiKey = key }
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(hc *HTTPClient) { hc.httpClient = c }
}

// WithBaseURL sets a custom base URL for the model provider API.
func WithBaseURL(url string) ClientOption {
	return func(hc *HTTPClient) { hc.baseURL = url }
}

// WithMaxRetries sets the maximum number of retries for transient failures.
func WithMaxRetries(n int) ClientOption {
	return func(hc *HTTPClient) { hc.maxRetries = n }
}

// WithBaseBackoff sets the initial backoff duration for retries.
func WithBaseBackoff(d time.Duration) ClientOption {
	return func(hc *HTTPClient) { hc.baseBackoff = d }
}

// NewClient creates a model provider HTTP client. If no API key is set via
// WithAPIKey, it is read from SHOTSORT_MODEL_API_KEY.
func NewClient(baseURL string, opts ...ClientOption) (*HTTPClient, error) {
	c := &HTTPClient{
		baseURL:     baseURL,
		httpClient:  &http.Client{Timeout: 30 * time.Second},
		maxRetries:  3,
		baseBackoff: 1 * time.Second,
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.apiKey == "" {
		c.apiKey = os.Getenv("SHOTSORT_MODEL_API_KEY")
	}
	if c.apiKey == "" {
		return nil, ErrAPIKeyNotSet
	}

	return c, nil
}

type describeRequest struct {
	MediaBase64 string `json:"mediaBase64"`
	MediaType   string `json:"mediaType"`
	MimeType    string `json:"mimeType"`
}

type describeResponse struct {
	Label string `json:"label"`
	Error string `json:"error,omitempty"`
}

// Describe implements Client.
func (c *HTTPClient) Describe(ctx context.Context, data io.Reader, mediaType media.Type, mimeType string) (string, error) {
	encoded, err := encodeBase64(data)
	if err != nil {
		return "", fmt.Errorf("modelprovider: encode media: %w", err)
	}

	reqBody, err := json.Marshal(describeRequest{MediaBase64: encoded, MediaType: string(mediaType), MimeType: mimeType})
	if err != nil {
		return "", fmt.Errorf("modelprovider: marshal describe request: %w", err)
	}

	var resp describeResponse
	if err := c.doRequestWithRetry(ctx, http.MethodPost, c.baseURL+"/describe", reqBody, &resp); err != nil {
		return "", err
	}
	if resp.Label == "" {
		return "", fmt.Errorf("%w: describe returned no label: %s", ErrRequestFailed, resp.Error)
	}
	return resp.Label, nil
}

type sameTakeRequest struct {
	MediaBase64A string `json:"mediaBase64A"`
	MediaBase64B string `json:"mediaBase64B"`
}

type sameTakeResponse struct {
	Same bool `json:"same"`
}

// SameTake implements Client.
func (c *HTTPClient) SameTake(ctx context.Context, a, b io.Reader) (bool, error) {
	encodedA, err := encodeBase64(a)
	if err != nil {
		return false, fmt.Errorf("modelprovider: encode media a: %w", err)
	}
	encodedB, err := encodeBase64(b)
	if err != nil {
		return false, fmt.Errorf("modelprovider: encode media b: %w", err)
	}

	reqBody, err := json.Marshal(sameTakeRequest{MediaBase64A: encodedA, MediaBase64B: encodedB})
	if err != nil {
		return false, fmt.Errorf("modelprovider: marshal sameTake request: %w", err)
	}

	var resp sameTakeResponse
	if err := c.doRequestWithRetry(ctx, http.MethodPost, c.baseURL+"/same-take", reqBody, &resp); err != nil {
		return false, err
	}
	return resp.Same, nil
}

type compareQualityRequest struct {
	MediaBase64A  string `json:"mediaBase64A"`
	MediaBase64B  string `json:"mediaBase64B"`
	MediaType     string `json:"mediaType"`
	PromptVariant string `json:"promptVariant,omitempty"`
}

type compareQualityResponse struct {
	Winner     string  `json:"winner"`
	Confidence float64 `json:"confidence"`
	Reasoning  string  `json:"reasoning"`
}

// CompareQuality implements Client.
func (c *HTTPClient) CompareQuality(ctx context.Context, a, b io.Reader, mediaType media.Type, promptVariant string) (QualityResult, error) {
	encodedA, err := encodeBase64(a)
	if err != nil {
		return QualityResult{}, fmt.Errorf("modelprovider: encode media a: %w", err)
	}
	encodedB, err := encodeBase64(b)
	if err != nil {
		return QualityResult{}, fmt.Errorf("modelprovider: encode media b: %w", err)
	}

	reqBody, err := json.Marshal(compareQualityRequest{
		MediaBase64A:  encodedA,
		MediaBase64B:  encodedB,
		MediaType:     string(mediaType),
		PromptVariant: promptVariant,
	})
	if err != nil {
		return QualityResult{}, fmt.Errorf("modelprovider: marshal compareQuality request: %w", err)
	}

	var resp compareQualityResponse
	if err := c.doRequestWithRetry(ctx, http.MethodPost, c.baseURL+"/compare-quality", reqBody, &resp); err != nil {
		return QualityResult{}, err
	}
	return QualityResult{Winner: resp.Winner, Confidence: resp.Confidence, Reasoning: resp.Reasoning}, nil
}

type enhanceRequest struct {
	MediaBase64 string `json:"mediaBase64"`
}

type enhanceResponse struct {
	EnhancedBase64 string `json:"enhancedBase64"`
	Error          string `json:"error,omitempty"`
}

// Enhance implements Client.
func (c *HTTPClient) Enhance(ctx context.Context, data io.Reader) (io.ReadCloser, error) {
	encoded, err := encodeBase64(data)
	if err != nil {
		return nil, fmt.Errorf("modelprovider: encode media: %w", err)
	}

	reqBody, err := json.Marshal(enhanceRequest{MediaBase64: encoded})
	if err != nil {
		return nil, fmt.Errorf("modelprovider: marshal enhance request: %w", err)
	}

	var resp enhanceResponse
	if err := c.doRequestWithRetry(ctx, http.MethodPost, c.baseURL+"/enhance", reqBody, &resp); err != nil {
		return nil, err
	}
	if resp.EnhancedBase64 == "" {
		return nil, fmt.Errorf("%w: enhance returned no output: %s", ErrRequestFailed, resp.Error)
	}

	decoded, err := decodeBase64(resp.EnhancedBase64)
	if err != nil {
		return nil, fmt.Errorf("modelprovider: decode enhanced media: %w", err)
	}
	return io.NopCloser(bytes.NewReader(decoded)), nil
}

type nameBucketRequest struct {
	Labels []string `json:"labels"`
}

type nameBucketResponse struct {
	Name string `json:"name"`
}

// NameBucket implements Client.
func (c *HTTPClient) NameBucket(ctx context.Context, labels []string) (string, error) {
	reqBody, err := json.Marshal(nameBucketRequest{Labels: labels})
	if err != nil {
		return "", fmt.Errorf("modelprovider: marshal nameBucket request: %w", err)
	}

	var resp nameBucketResponse
	if err := c.doRequestWithRetry(ctx, http.MethodPost, c.baseURL+"/name-bucket", reqBody, &resp); err != nil {
		return "", err
	}
	return resp.Name, nil
}

// doRequestWithRetry performs an HTTP request with exponential backoff retry.
func (c *HTTPClient) doRequestWithRetry(ctx context.Context, method, url string, body []byte, result interface{}) error {
	var lastErr error
	backoff := c.baseBackoff

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return fmt.Errorf("modelprovider: context cancelled: %w", ctx.Err())
			case <-time.After(backoff):
				backoff *= 2
			}
		}

		err := c.doRequest(ctx, method, url, body, result)
		if err == nil {
			return nil
		}

		if !isRetryable(err) {
			return err
		}

		lastErr = err
	}

	return fmt.Errorf("modelprovider: max retries exceeded: %w", lastErr)
}

func (c *HTTPClient) doRequest(ctx context.Context, method, url string, body []byte, result interface{}) error {
	var bodyReader io.Reader
	if body != nil {
		bodyReader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return fmt.Errorf("modelprovider: create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &retryableError{err: fmt.Errorf("modelprovider: request failed: %w", err)}
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return &retryableError{err: fmt.Errorf("modelprovider: read response: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if resp.StatusCode >= 500 {
			return &retryableError{err: fmt.Errorf("%w %d: %s", ErrServerError, resp.StatusCode, string(respBody))}
		}
		if resp.StatusCode == 429 {
			return &retryableError{err: fmt.Errorf("%w: %s", ErrRateLimited, string(respBody))}
		}
		return fmt.Errorf("%w with status %d: %s", ErrRequestFailed, resp.StatusCode, string(respBody))
	}

	if result != nil {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("modelprovider: unmarshal response: %w", err)
		}
	}

	return nil
}

// retryableError wraps errors that should be retried.
type retryableError struct {
	err error
}

func (e *retryableError) Error() string { return e.err.Error() }
func (e *retryableError) Unwrap() error { return e.err }

func isRetryable(err error) bool {
	var re *retryableError
	return errors.As(err, &re)
}
