package logging

import (
	"bytes"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"time"

	"bitbucket.org/kleinnic74/pinphotos/consts"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var endpointFormat = "https://logs-01.loggly.com/bulk/%s/tag/bulk/"

type logglySink struct {
	url    string
	client *http.Client

	threshold int
	done      chan struct{}
	drained   chan struct{}
	q         chan []byte
}

func NewLogglyEncoder() zapcore.Encoder {
	return zapcore.NewJSONEncoder(func() zapcore.EncoderConfig {
		cfg := zap.NewProductionEncoderConfig()
		cfg.EncodeTime = zapcore.RFC3339NanoTimeEncoder
		cfg.TimeKey = "timestamp"
		return cfg
	}())
}

// NewLogglySink forwards log lines to loggly in bulk, a batch is sent once
// it exceeds 4kB and whatever is left is flushed on Close
func NewLogglySink(token string) zap.Sink {
	sink := &logglySink{
		url:       fmt.Sprintf(endpointFormat, token),
		client:    &http.Client{Timeout: 10 * time.Second},
		threshold: 4096,
		done:      make(chan struct{}),
		drained:   make(chan struct{}),
		q:         make(chan []byte, 10),
	}
	go sink.drain()
	return sink
}

func (s *logglySink) Write(p []byte) (int, error) {
	cpy := make([]byte, len(p))
	copy(cpy, p)
	select {
	case s.q <- cpy:
	case <-s.done:
	}
	return len(p), nil
}

func (s *logglySink) Sync() error {
	return nil
}

func (s *logglySink) Close() error {
	close(s.done)
	<-s.drained
	return nil
}

func (s *logglySink) drain() {
	defer close(s.drained)
	var buffer bytes.Buffer
	for {
		select {
		case b := <-s.q:
			buffer.Write(b)
			if buffer.Len() > s.threshold {
				s.push(buffer.Bytes())
				buffer.Reset()
			}
		case <-s.done:
		pending:
			for {
				select {
				case b := <-s.q:
					buffer.Write(b)
				default:
					break pending
				}
			}
			if buffer.Len() > 0 {
				s.push(buffer.Bytes())
			}
			return
		}
	}
}

func (s *logglySink) push(data []byte) {
	post, err := http.NewRequest(http.MethodPost, s.url, bytes.NewReader(data))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Loggly: failed to create HTTP POST request: %s\n", err)
		return
	}
	post.Header.Add("User-Agent", consts.UserAgent())
	post.Header.Add("Content-Type", "application/json")
	post.Header.Add("Content-Length", strconv.Itoa(len(data)))
	r, err := s.client.Do(post)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Loggly: failed to send logs: %s\n", err)
		return
	}
	r.Body.Close()
	if r.StatusCode != http.StatusOK {
		fmt.Fprintf(os.Stderr, "Loggly: unexpected status %d\n", r.StatusCode)
	}
}
