// Package httpc sends prepared requests over HTTP with resty.
package httpc

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/loykin/reqpipe/internal/common"
	"github.com/loykin/reqpipe/pkg/request"
)

// Config holds the transport settings.
type Config struct {
	// Insecure skips server certificate verification.
	Insecure bool
	// MinTLSVersion and MaxTLSVersion accept "1.0" .. "1.3" (or "tls1.2", "TLS13").
	MinTLSVersion string
	MaxTLSVersion string
	// Timeout bounds a whole exchange; zero means no limit beyond the caller's context.
	Timeout time.Duration
}

// TLSConfig builds the tls.Config implied by c, or nil when c keeps the defaults.
func (c Config) TLSConfig() *tls.Config {
	minV, maxV := ParseTLSVersion(c.MinTLSVersion), ParseTLSVersion(c.MaxTLSVersion)
	if !c.Insecure && minV == 0 && maxV == 0 {
		return nil
	}
	// #nosec G402 -- insecure mode is an explicit user setting for testing against self-signed servers
	return &tls.Config{InsecureSkipVerify: c.Insecure, MinVersion: minV, MaxVersion: maxV}
}

// New returns a resty client configured by c. Retries are always disabled.
func (c Config) New() *resty.Client {
	rc := resty.New().
		SetRetryCount(0).
		SetAllowGetMethodPayload(true)
	if cfg := c.TLSConfig(); cfg != nil {
		rc.SetTLSClientConfig(cfg)
	}
	if c.Timeout > 0 {
		rc.SetTimeout(c.Timeout)
	}
	return rc
}

// ParseTLSVersion maps a version string to a tls constant, 0 when unknown or empty.
func ParseTLSVersion(s string) uint16 {
	v := strings.ToLower(strings.TrimSpace(s))
	v = strings.TrimPrefix(v, "tls")
	v = strings.TrimPrefix(v, "v")
	switch v {
	case "1.0", "10":
		return tls.VersionTLS10
	case "1.1", "11":
		return tls.VersionTLS11
	case "1.2", "12":
		return tls.VersionTLS12
	case "1.3", "13":
		return tls.VersionTLS13
	default:
		return 0
	}
}

// StatusError is returned with a non-2xx response. The response is complete and
// may be handed to callers as a normal result.
type StatusError struct {
	Response *request.Response
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("request failed with status code %d", e.Response.Status)
}

// ResponseOf extracts the response carried by a *StatusError anywhere in err's chain.
func ResponseOf(err error) (*request.Response, bool) {
	var se *StatusError
	if errors.As(err, &se) && se.Response != nil {
		return se.Response, true
	}
	return nil, false
}

// Client dispatches prepared requests.
type Client struct {
	rc     *resty.Client
	logger *common.Logger
}

// NewClient builds a Client from cfg. A nil logger uses the process default.
func NewClient(cfg Config, logger *common.Logger) *Client {
	if logger == nil {
		logger = common.GetLogger()
	}
	logger = logger.WithComponent("httpc")
	rc := cfg.New()
	rc.SetLogger(restyLogger{logger})
	return &Client{rc: rc, logger: logger}
}

// Resty exposes the underlying client, for tests and tuning.
func (c *Client) Resty() *resty.Client { return c.rc }

// Do sends p. A response with a non-2xx status is returned together with a
// *StatusError; a failure without any response returns a nil response.
func (c *Client) Do(ctx context.Context, p *request.Prepared) (*request.Response, error) {
	r := c.rc.R().SetContext(ctx)
	for _, h := range p.Headers {
		r.SetHeader(h.Key, h.Value)
	}
	body, contentType, err := encodeBody(p.Data)
	if err != nil {
		return nil, err
	}
	if body != nil {
		r.SetBody(body)
		if _, ok := p.Headers.Get(request.HeaderContentType); !ok && contentType != "" {
			r.SetHeader("Content-Type", contentType)
		}
	}

	resp, err := r.Execute(p.Method, p.URL)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", p.Method, p.URL, err)
	}
	out := request.NewResponse(resp.StatusCode(), resp.Status(), resp.Header(), resp.Body(), resp.Time())
	if !out.IsSuccess() {
		return out, &StatusError{Response: out}
	}
	return out, nil
}

// encodeBody returns the wire body and the content type implied by its shape.
func encodeBody(data any) (any, string, error) {
	switch d := data.(type) {
	case nil:
		return nil, "", nil
	case string:
		return d, "", nil
	case []byte:
		return d, "", nil
	case request.JSONBody:
		return []byte(d), "application/json", nil
	case *request.Form:
		return d.Encode(), "application/x-www-form-urlencoded", nil
	case *request.Multipart:
		b, err := d.Encode()
		if err != nil {
			return nil, "", fmt.Errorf("encode multipart body: %w", err)
		}
		return b, d.ContentType(), nil
	default:
		b, err := json.Marshal(d)
		if err != nil {
			return nil, "", fmt.Errorf("encode json body: %w", err)
		}
		return b, "application/json", nil
	}
}

type restyLogger struct {
	l *common.Logger
}

func (r restyLogger) Errorf(format string, v ...interface{}) {
	r.l.Error(strings.TrimSpace(fmt.Sprintf(format, v...)))
}

func (r restyLogger) Warnf(format string, v ...interface{}) {
	r.l.Warn(strings.TrimSpace(fmt.Sprintf(format, v...)))
}

func (r restyLogger) Debugf(format string, v ...interface{}) {
	r.l.Debug(strings.TrimSpace(fmt.Sprintf(format, v...)))
}
