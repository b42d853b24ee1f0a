// internal/monitoring/probe.go
package monitoring

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"ravenwatch/internal/config"
)

const (
	// DefaultProbeTimeout bounds a probe from dial to the last body byte.
	DefaultProbeTimeout = 30 * time.Second

	// DefaultMaxBodyBytes is how much of a response body is retained.
	DefaultMaxBodyBytes int64 = 1 << 20
)

// Outcome is the normalized result of one probe. Err is set when no
// response was received; the response fields are then zero.
type Outcome struct {
	URL           string
	StartedAt     time.Time
	FinishedAt    time.Time
	Duration      *time.Duration
	StatusCode    int
	StatusMessage string
	Body          string
	BodyTruncated bool
	ContentLength int64
	ContentType   string
	Location      string
	HasLocation   bool
	DateHeader    string
	BodyErr       error
	Err           error
}

// Responded reports whether a response (of any status) was received.
func (o Outcome) Responded() bool {
	return o.Err == nil
}

// StatusCodeString returns the status code as text, or "" without a response.
func (o Outcome) StatusCodeString() string {
	if !o.Responded() {
		return ""
	}
	return strconv.Itoa(o.StatusCode)
}

// CompletedAt prefers the server's Date header over the local end time.
func (o Outcome) CompletedAt() time.Time {
	if o.DateHeader != "" {
		if t, err := http.ParseTime(o.DateHeader); err == nil {
			return t
		}
	}
	return o.FinishedAt
}

// TransportError describes a probe that never received a response.
type TransportError struct {
	URL       string
	Err       error
	Diagnosis string
}

func (e *TransportError) Error() string {
	if e.Diagnosis != "" {
		return fmt.Sprintf("GET %s: %v (%s)", e.URL, e.Err, e.Diagnosis)
	}
	return fmt.Sprintf("GET %s: %v", e.URL, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Executor issues a single probe.
type Executor interface {
	Probe(ctx context.Context, target string) Outcome
}

// Diagnoser classifies why a host could not be reached.
type Diagnoser interface {
	Diagnose(ctx context.Context, host string) string
}

// Prober performs GET probes without following redirects.
type Prober struct {
	client       *http.Client
	timeout      time.Duration
	userAgent    string
	maxBodyBytes int64
	diagnoser    Diagnoser
}

// Option is a functional option for configuring a Prober.
type Option func(*Prober) error

// WithTimeout sets the total probe timeout.
func WithTimeout(d time.Duration) Option {
	return func(p *Prober) error {
		if d <= 0 {
			return fmt.Errorf("timeout must be positive, got %v", d)
		}
		p.timeout = d
		return nil
	}
}

// WithUserAgent sets the User-Agent header sent with every probe.
func WithUserAgent(ua string) Option {
	return func(p *Prober) error {
		if ua == "" {
			return errors.New("user agent must not be empty")
		}
		p.userAgent = ua
		return nil
	}
}

// WithMaxBodyBytes caps how much of each body is kept.
func WithMaxBodyBytes(n int64) Option {
	return func(p *Prober) error {
		if n < 0 {
			return fmt.Errorf("max body bytes must not be negative, got %d", n)
		}
		p.maxBodyBytes = n
		return nil
	}
}

// WithHTTPClient replaces the transport client. Its redirect policy is
// overridden so redirects are still never followed.
func WithHTTPClient(c *http.Client) Option {
	return func(p *Prober) error {
		if c == nil {
			return errors.New("http client must not be nil")
		}
		clone := *c
		p.client = &clone
		return nil
	}
}

// WithDiagnoser attaches a classifier for transport failures.
func WithDiagnoser(d Diagnoser) Option {
	return func(p *Prober) error {
		p.diagnoser = d
		return nil
	}
}

func NewProber(opts ...Option) (*Prober, error) {
	p := &Prober{
		client:       &http.Client{},
		timeout:      DefaultProbeTimeout,
		userAgent:    config.DefaultUserAgent,
		maxBodyBytes: DefaultMaxBodyBytes,
	}

	for _, opt := range opts {
		if err := opt(p); err != nil {
			return nil, fmt.Errorf("prober: %w", err)
		}
	}

	p.client.Timeout = p.timeout
	p.client.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}
	return p, nil
}

// NewProberFromConfig builds a Prober from the probe section of the config.
func NewProberFromConfig(cfg config.ProbeConfig) (*Prober, error) {
	opts := []Option{
		WithTimeout(cfg.Timeout),
		WithUserAgent(cfg.UserAgent),
		WithMaxBodyBytes(cfg.MaxBodyBytes),
	}
	if cfg.DNS.Enabled {
		d, err := NewDNSDiagnoser(cfg.DNS.Server, cfg.DNS.Timeout)
		if err != nil {
			return nil, err
		}
		opts = append(opts, WithDiagnoser(d))
	}
	return NewProber(opts...)
}

// Probe issues one GET against target. It never returns without an Outcome.
func (p *Prober) Probe(ctx context.Context, target string) Outcome {
	out := Outcome{URL: target, StartedAt: time.Now()}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		out.FinishedAt = time.Now()
		out.Err = &TransportError{URL: target, Err: err}
		return out
	}
	req.Header.Set("User-Agent", p.userAgent)

	resp, err := p.client.Do(req)
	if err != nil {
		out.FinishedAt = time.Now()
		elapsed := out.FinishedAt.Sub(out.StartedAt)
		out.Duration = &elapsed
		out.Err = p.transportError(ctx, target, err)
		return out
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, p.maxBodyBytes))
	if err != nil {
		out.BodyErr = err
	}
	rest, err := io.Copy(io.Discard, resp.Body)
	if err != nil && out.BodyErr == nil {
		out.BodyErr = err
	}

	out.FinishedAt = time.Now()
	elapsed := out.FinishedAt.Sub(out.StartedAt)
	out.Duration = &elapsed
	out.StatusCode = resp.StatusCode
	out.StatusMessage = statusMessage(resp)
	out.Body = string(body)
	out.BodyTruncated = rest > 0
	out.ContentLength = int64(len(body)) + rest
	out.ContentType = resp.Header.Get("Content-Type")
	out.DateHeader = resp.Header.Get("Date")
	if loc, ok := resp.Header["Location"]; ok && len(loc) > 0 {
		out.Location = loc[0]
		out.HasLocation = true
	}
	return out
}

func (p *Prober) transportError(ctx context.Context, target string, err error) *TransportError {
	te := &TransportError{URL: target, Err: err}
	if p.diagnoser == nil {
		return te
	}
	u, perr := url.Parse(target)
	if perr != nil || u.Hostname() == "" {
		return te
	}
	// The probe context may already be spent on a timeout.
	dctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	te.Diagnosis = p.diagnoser.Diagnose(dctx, u.Hostname())
	return te
}

// statusMessage extracts the reason phrase ("Moved Permanently") from resp.Status.
func statusMessage(resp *http.Response) string {
	code := strconv.Itoa(resp.StatusCode)
	if msg := strings.TrimSpace(strings.TrimPrefix(resp.Status, code)); msg != "" {
		return msg
	}
	return http.StatusText(resp.StatusCode)
}
