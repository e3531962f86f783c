package flickr

import (
	"fmt"
	"net/url"
)

// RequestError is returned when a request to the photo API could not be
// completed: network errors, timeouts, cancellation, unexpected HTTP status
// codes or an open circuit breaker. The cause is available through errors.Unwrap.
type RequestError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *RequestError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("request to %s failed with status %d: %s", e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("request to %s failed: %s", e.URL, e.Err)
}

func (e *RequestError) Unwrap() error {
	return e.Err
}

func newRequestError(u *url.URL, status int, err error) *RequestError {
	return &RequestError{URL: redact(u), StatusCode: status, Err: err}
}

// redact removes the API key from u so that it can be logged
func redact(u *url.URL) string {
	if u == nil {
		return ""
	}
	c := *u
	q := c.Query()
	if q.Has("api_key") {
		q.Set("api_key", "xxx")
		c.RawQuery = q.Encode()
	}
	return c.String()
}
