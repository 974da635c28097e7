package internal

import (
	"compress/gzip"
	"net/http"
	"strings"
)

// GzipMiddleware compresses responses for clients that accept gzip. Bodies
// that are already compressed (images) are passed through untouched; the
// decision is made when the handler writes its header.
func GzipMiddleware(level int, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.Header.Get("Accept-Encoding"), "gzip") {
			next.ServeHTTP(w, r)
			return
		}

		w.Header().Add("Vary", "Accept-Encoding")

		grw := &gzipResponseWriter{ResponseWriter: w, level: level}
		defer grw.Close()

		next.ServeHTTP(grw, r)
	})
}

type gzipResponseWriter struct {
	http.ResponseWriter
	level       int
	sink        *gzip.Writer
	wroteHeader bool
}

func compressible(contentType string) bool {
	return contentType == "" ||
		strings.HasPrefix(contentType, "text/") ||
		strings.HasPrefix(contentType, "application/json")
}

func (w *gzipResponseWriter) WriteHeader(status int) {
	if w.wroteHeader {
		return
	}
	w.wroteHeader = true

	if status != http.StatusNoContent && status != http.StatusNotModified && compressible(w.Header().Get("Content-Type")) {
		gz, err := gzip.NewWriterLevel(w.ResponseWriter, w.level)
		if err != nil {
			panic(err)
		}
		w.sink = gz
		w.Header().Set("Content-Encoding", "gzip")
		w.Header().Del("Content-Length")
	}

	w.ResponseWriter.WriteHeader(status)
}

func (w *gzipResponseWriter) Write(b []byte) (int, error) {
	if !w.wroteHeader {
		if w.Header().Get("Content-Type") == "" {
			w.Header().Set("Content-Type", http.DetectContentType(b))
		}
		w.WriteHeader(http.StatusOK)
	}

	if w.sink == nil {
		return w.ResponseWriter.Write(b)
	}

	return w.sink.Write(b)
}

func (w *gzipResponseWriter) Close() error {
	if w.sink == nil {
		return nil
	}
	return w.sink.Close()
}
