// Package httpquery assembles request URLs from a base, a method path and
// query parameters.
package httpquery

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"unicode/utf8"

	"bitbucket.org/kleinnic74/pinphotos/logging"

	"github.com/google/go-querystring/query"
	"go.uber.org/zap"
)

// BuildURL concatenates base, method and suffix and appends params as a
// percent-encoded query string. Parameters whose value cannot be encoded
// (invalid UTF-8) are dropped. The order of the parameters is not significant.
func BuildURL(base, method, suffix string, params url.Values) (*url.URL, error) {
	raw := base + method + suffix
	if q := Encode(params); q != "" {
		raw += "?" + q
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid URL %q: %w", raw, err)
	}
	return u, nil
}

// Encode returns the &-joined key=value pairs of params, keys sorted
func Encode(params url.Values) string {
	if len(params) == 0 {
		return ""
	}
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	for _, k := range keys {
		if !utf8.ValidString(k) {
			dropped(k)
			continue
		}
		for _, v := range params[k] {
			if !utf8.ValidString(v) {
				dropped(k)
				continue
			}
			if b.Len() > 0 {
				b.WriteByte('&')
			}
			b.WriteString(url.QueryEscape(k))
			b.WriteByte('=')
			b.WriteString(url.QueryEscape(v))
		}
	}
	return b.String()
}

// Values converts a struct with `url:"..."` tags into query parameters
func Values(v interface{}) (url.Values, error) {
	values, err := query.Values(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode query parameters: %w", err)
	}
	return values, nil
}

func dropped(key string) {
	logging.From(context.Background()).Debug("Dropping query parameter", zap.ByteString("key", []byte(key)))
}
