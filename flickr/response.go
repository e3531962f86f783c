package flickr

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"bitbucket.org/kleinnic74/pinphotos/domain"
)

// Outcome tells apart the results of a search which completed at the
// transport level
type Outcome int

const (
	// OutcomeOK means at least one photo was found
	OutcomeOK Outcome = iota
	// OutcomeEmpty means the response was valid but contained no usable photo
	OutcomeEmpty
	// OutcomeMalformed means the response could not be interpreted
	OutcomeMalformed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeOK:
		return "ok"
	case OutcomeEmpty:
		return "empty"
	case OutcomeMalformed:
		return "malformed"
	default:
		return "Outcome(" + strconv.Itoa(int(o)) + ")"
	}
}

func (o Outcome) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

func (o *Outcome) UnmarshalText(text []byte) error {
	for _, candidate := range []Outcome{OutcomeOK, OutcomeEmpty, OutcomeMalformed} {
		if string(text) == candidate.String() {
			*o = candidate
			return nil
		}
	}
	return fmt.Errorf("unknown search outcome %q", string(text))
}

// PageMetadata describes the pagination of a search
type PageMetadata struct {
	Page  int `json:"page"`
	Pages int `json:"pages"`
	Total int `json:"total"`
}

// Result is the outcome of a search. Photos is never nil.
type Result struct {
	Outcome Outcome        `json:"outcome"`
	Photos  []domain.Photo `json:"photos"`
	Meta    PageMetadata   `json:"meta"`
	// Reason explains a malformed outcome
	Reason string `json:"reason,omitempty"`
}

func emptyResult(meta PageMetadata) *Result {
	return &Result{Outcome: OutcomeEmpty, Photos: []domain.Photo{}, Meta: meta}
}

func malformedResult(reason string) *Result {
	return &Result{Outcome: OutcomeMalformed, Photos: []domain.Photo{}, Reason: reason}
}

// flexInt accepts JSON numbers as well as strings containing a number
type flexInt int

func (i *flexInt) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return fmt.Errorf("null is not a number")
	}
	var raw json.Number
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		raw = json.Number(strings.TrimSpace(s))
	} else {
		raw = json.Number(data)
	}
	v, err := raw.Int64()
	if err != nil {
		f, ferr := raw.Float64()
		if ferr != nil {
			return fmt.Errorf("bad number %q: %w", string(data), err)
		}
		v = int64(f)
	}
	*i = flexInt(v)
	return nil
}

// flexString accepts JSON strings as well as numbers
type flexString string

func (s *flexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var v string
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		*s = flexString(v)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*s = flexString(n.String())
	return nil
}

type response struct {
	Stat    string      `json:"stat"`
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Photos  *photosPage `json:"photos"`
}

type photosPage struct {
	Page  *flexInt          `json:"page"`
	Pages *flexInt          `json:"pages"`
	Total *flexInt          `json:"total"`
	Photo []json.RawMessage `json:"photo"`
}

type photoEntry struct {
	ID    flexString `json:"id"`
	Title flexString `json:"title"`
	URL   string     `json:"url_m"`
}

func decodeResponse(body []byte) (*photosPage, error) {
	var r response
	if err := json.Unmarshal(body, &r); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	if r.Stat == "fail" {
		return nil, fmt.Errorf("API error %d: %s", r.Code, r.Message)
	}
	if r.Photos == nil {
		return nil, fmt.Errorf("missing key 'photos'")
	}
	return r.Photos, nil
}

// decodeMetadata extracts the pagination of a response
func decodeMetadata(body []byte) (PageMetadata, error) {
	p, err := decodeResponse(body)
	if err != nil {
		return PageMetadata{}, err
	}
	if p.Total == nil {
		return PageMetadata{}, fmt.Errorf("missing key 'total'")
	}
	if p.Pages == nil {
		return PageMetadata{}, fmt.Errorf("missing key 'pages'")
	}
	meta := PageMetadata{Pages: int(*p.Pages), Total: int(*p.Total)}
	if p.Page != nil {
		meta.Page = int(*p.Page)
	}
	return meta, nil
}

// decodePhotos extracts the photos of a response, entries which cannot be
// interpreted are skipped and counted
func decodePhotos(body []byte) (photos []domain.Photo, meta PageMetadata, skipped int, err error) {
	p, err := decodeResponse(body)
	if err != nil {
		return nil, meta, 0, err
	}
	if p.Photo == nil {
		return nil, meta, 0, fmt.Errorf("missing key 'photo'")
	}
	if p.Page != nil {
		meta.Page = int(*p.Page)
	}
	if p.Pages != nil {
		meta.Pages = int(*p.Pages)
	}
	if p.Total != nil {
		meta.Total = int(*p.Total)
	}
	photos = make([]domain.Photo, 0, len(p.Photo))
	for _, raw := range p.Photo {
		var e photoEntry
		if err := json.Unmarshal(raw, &e); err != nil || e.ID == "" || e.URL == "" {
			skipped++
			continue
		}
		photos = append(photos, domain.Photo{ID: string(e.ID), Title: string(e.Title), URL: e.URL})
	}
	return photos, meta, skipped, nil
}
