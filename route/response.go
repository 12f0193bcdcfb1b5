package route

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/sagarc03/bucketry/s3http"
)

// ErrorResponse represents a JSON error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// WriteError writes a JSON error response
func WriteError(w http.ResponseWriter, code int, errCode, message string) {
	if err := WriteJSON(w, code, ErrorResponse{Error: errCode, Message: message}); err != nil {
		slog.Error("failed to encode error response", "err", err)
	}
}

// WriteJSON writes a JSON response
func WriteJSON(w http.ResponseWriter, code int, data any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	return json.NewEncoder(w).Encode(data)
}

// bufferedWriter is an http.ResponseWriter that keeps everything in memory.
type bufferedWriter struct {
	header      http.Header
	status      int
	wroteHeader bool
	buf         bytes.Buffer
}

func newBufferedWriter() *bufferedWriter {
	return &bufferedWriter{header: make(http.Header), status: http.StatusOK}
}

func (w *bufferedWriter) Header() http.Header {
	return w.header
}

func (w *bufferedWriter) WriteHeader(status int) {
	if w.wroteHeader {
		return
	}
	w.wroteHeader = true
	w.status = status
}

func (w *bufferedWriter) Write(p []byte) (int, error) {
	w.WriteHeader(http.StatusOK)
	return w.buf.Write(p)
}

func (w *bufferedWriter) response() *s3http.Response {
	res := s3http.NewResponse(w.status)
	res.Header = w.header.Clone()
	res.Header.Del("Content-Length")
	if w.buf.Len() > 0 {
		res.Body = s3http.Bytes(w.buf.Bytes())
	}
	return res
}
