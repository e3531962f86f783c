package logging

import (
	"io/ioutil"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLogglySinkFlushesOnClose(t *testing.T) {
	received := make(chan string, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := ioutil.ReadAll(r.Body)
		assert.Equal(t, "/bulk/token/tag/bulk/", r.URL.Path)
		received <- string(body)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	previous := endpointFormat
	endpointFormat = server.URL + "/bulk/%s/tag/bulk/"
	defer func() { endpointFormat = previous }()

	sink := NewLogglySink("token")
	sink.Write([]byte(`{"msg":"hello"}`))
	assert.NoError(t, sink.Close())
	assert.Equal(t, `{"msg":"hello"}`, <-received)
}
