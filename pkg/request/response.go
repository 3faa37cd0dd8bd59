package request

import (
	"net/http"
	"strings"
	"time"
)

// Response is a transport response as seen by scripts and the orchestrator.
// Header keys are lower-cased; multiple values are joined with ", ".
type Response struct {
	Status     int
	StatusText string
	Headers    map[string]string
	Data       any
	Body       []byte
	Duration   time.Duration
}

// NewResponse builds a Response from raw transport values and decodes the body.
func NewResponse(status int, statusLine string, header http.Header, body []byte, d time.Duration) *Response {
	return &Response{
		Status:     status,
		StatusText: StatusText(status, statusLine),
		Headers:    FlattenHeader(header),
		Data:       DecodeBody(body),
		Body:       body,
		Duration:   d,
	}
}

// Header returns a response header value, case-insensitively.
func (r *Response) Header(key string) string {
	return r.Headers[strings.ToLower(key)]
}

// IsSuccess reports a 2xx status.
func (r *Response) IsSuccess() bool {
	return r.Status >= 200 && r.Status < 300
}

// Result normalizes the response into the shape returned to callers.
func (r *Response) Result() *Result {
	return &Result{
		Status:     r.Status,
		StatusText: r.StatusText,
		Headers:    r.Headers,
		Data:       r.Data,
	}
}

// Result is the normalized outcome of an execution, for both 2xx and error statuses.
type Result struct {
	Status     int               `json:"status"`
	StatusText string            `json:"statusText"`
	Headers    map[string]string `json:"headers"`
	Data       any               `json:"data"`
}

// StatusText derives the reason phrase from a status line such as "404 Not Found",
// falling back to the standard text for the code.
func StatusText(code int, statusLine string) string {
	line := strings.TrimSpace(statusLine)
	if i := strings.IndexByte(line, ' '); i > 0 {
		if reason := strings.TrimSpace(line[i+1:]); reason != "" {
			return reason
		}
	}
	return http.StatusText(code)
}

// FlattenHeader lower-cases keys and joins repeated values.
func FlattenHeader(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for k, vs := range h {
		out[strings.ToLower(k)] = strings.Join(vs, ", ")
	}
	return out
}
