package s3http_test

import (
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/sagarc03/bucketry/s3http"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBody(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		body     s3http.Body
		wantSize int64
		want     string
	}{
		{name: "empty", body: s3http.Empty(), wantSize: 0},
		{name: "bytes", body: s3http.Bytes([]byte("hello")), wantSize: 5, want: "hello"},
		{name: "stream unknown size", body: s3http.Stream(io.NopCloser(strings.NewReader("streamed")), -1), wantSize: -1, want: "streamed"},
		{name: "stream known size", body: s3http.Stream(io.NopCloser(strings.NewReader("abc")), 3), wantSize: 3, want: "abc"},
		{name: "nil stream", body: s3http.Stream(nil, 10), wantSize: 0},
		{name: "no body stream", body: s3http.Stream(http.NoBody, 10), wantSize: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.wantSize, tt.body.Size())

			data, err := io.ReadAll(tt.body.Reader())
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(data))
			assert.NoError(t, tt.body.Close())
		})
	}
}

func TestBody_ReadCloser(t *testing.T) {
	t.Parallel()

	assert.Equal(t, http.NoBody, s3http.Empty().ReadCloser())

	rc := s3http.Bytes([]byte("xml")).ReadCloser()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "xml", string(data))
	assert.NoError(t, rc.Close())
}
