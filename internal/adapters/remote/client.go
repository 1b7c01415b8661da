package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/scamshield/scam-detector/internal/domain"
	"github.com/scamshield/scam-detector/internal/ports"
)

// Compile-time interface check.
var _ ports.RemoteRiskScorer = (*Client)(nil)

// ErrInvalidScore is returned when the service answers with a score outside [0,1]
var ErrInvalidScore = errors.New("remote score outside [0,1]")

const (
	DefaultTimeout = 3 * time.Second
	scorePath      = "/api/risk-score"
)

// Client calls an external risk scoring service over HTTP
//
// Identical concurrent requests share one upstream call. Every call is bounded by
// a hard timeout and failures come back as a RemoteResult, never as a panic or error.
type Client struct {
	baseURL string
	timeout time.Duration
	client  *http.Client
	group   singleflight.Group
}

// NewClient creates a remote scorer client. A zero timeout selects DefaultTimeout.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		timeout: timeout,
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

type scoreRequest struct {
	Signals map[string]float64 `json:"signals"`
}

type scoreResponse struct {
	RiskScore *float64 `json:"risk_score"`
}

// Score asks the service for a risk estimate
func (c *Client) Score(ctx context.Context, signals map[string]float64) domain.RemoteResult {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	ch := c.group.DoChan(requestKey(signals), func() (any, error) {
		// Detached from any single caller so one cancelled caller cannot fail the others
		callCtx, cancel := context.WithTimeout(context.Background(), c.timeout)
		defer cancel()
		return c.call(callCtx, signals)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return domain.RemoteFailure(res.Err)
		}
		return domain.RemoteScore(res.Val.(float64))
	case <-ctx.Done():
		return domain.RemoteFailure(fmt.Errorf("remote scorer: %w", ctx.Err()))
	}
}

func (c *Client) call(ctx context.Context, signals map[string]float64) (float64, error) {
	payload, err := json.Marshal(scoreRequest{Signals: signals})
	if err != nil {
		return 0, fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+scorePath, bytes.NewReader(payload))
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("remote scorer request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return 0, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return 0, fmt.Errorf("remote scorer error (status %d): %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var result scoreResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return 0, fmt.Errorf("failed to parse response: %w", err)
	}
	if result.RiskScore == nil {
		return 0, errors.New("response has no risk_score")
	}
	score := *result.RiskScore
	if math.IsNaN(score) || score < 0 || score > 1 {
		return 0, fmt.Errorf("%w: %v", ErrInvalidScore, score)
	}

	return score, nil
}

// requestKey is a canonical encoding of the signal map used to collapse duplicate calls
func requestKey(signals map[string]float64) string {
	keys := make([]string, 0, len(signals))
	for k := range signals {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(strconv.FormatFloat(signals[k], 'g', -1, 64))
		b.WriteByte(';')
	}
	return b.String()
}
