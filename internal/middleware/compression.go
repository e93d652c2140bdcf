package middleware

import (
	"compress/gzip"
	"io"
	"net/http"
	"strings"
	"sync"

	"smartlists/internal/logging"
)

// CompressionConfig holds configuration for the compression middleware
type CompressionConfig struct {
	// MinSize is the minimum response size in bytes before compression is applied
	MinSize int
	// CompressibleTypes lists media types eligible for compression
	CompressibleTypes []string
}

// DefaultCompressionConfig covers the API's JSON bodies and exported playlists.
func DefaultCompressionConfig() CompressionConfig {
	return CompressionConfig{
		MinSize: 1024,
		CompressibleTypes: []string{
			"application/json",
			"application/vnd.ms-wpl",
			"application/xml",
			"text/plain",
			"text/xml",
		},
	}
}

var gzipWriterPool = sync.Pool{
	New: func() any {
		return gzip.NewWriter(io.Discard)
	},
}

// gzipResponseWriter buffers up to MinSize bytes before deciding whether to
// compress the response.
type gzipResponseWriter struct {
	http.ResponseWriter
	gz         *gzip.Writer
	config     CompressionConfig
	buffer     []byte
	statusCode int
	decided    bool
	compress   bool
}

func newGzipResponseWriter(w http.ResponseWriter, config CompressionConfig) *gzipResponseWriter {
	return &gzipResponseWriter{
		ResponseWriter: w,
		config:         config,
		statusCode:     http.StatusOK,
		buffer:         make([]byte, 0, config.MinSize+1),
	}
}

func (g *gzipResponseWriter) WriteHeader(statusCode int) {
	if !g.decided {
		g.statusCode = statusCode
	}
}

func (g *gzipResponseWriter) Write(data []byte) (int, error) {
	if g.decided {
		if g.compress {
			return g.gz.Write(data)
		}
		return g.ResponseWriter.Write(data)
	}

	g.buffer = append(g.buffer, data...)
	if len(g.buffer) > g.config.MinSize {
		if err := g.decide(); err != nil {
			return 0, err
		}
	}
	return len(data), nil
}

func (g *gzipResponseWriter) compressible() bool {
	mediaType, _, _ := strings.Cut(g.Header().Get("Content-Type"), ";")
	mediaType = strings.ToLower(strings.TrimSpace(mediaType))
	if mediaType == "" {
		return false
	}
	for _, t := range g.config.CompressibleTypes {
		if mediaType == t {
			return true
		}
	}
	return false
}

// decide writes the status line and flushes the buffer, compressed or not.
func (g *gzipResponseWriter) decide() error {
	if g.decided {
		return nil
	}
	g.decided = true

	// Bodiless statuses never get a Content-Encoding.
	g.compress = len(g.buffer) >= g.config.MinSize &&
		g.statusCode != http.StatusNoContent &&
		g.statusCode != http.StatusNotModified &&
		g.Header().Get("Content-Encoding") == "" &&
		g.compressible()

	buf := g.buffer
	g.buffer = nil

	if !g.compress {
		g.ResponseWriter.WriteHeader(g.statusCode)
		_, err := g.ResponseWriter.Write(buf)
		return err
	}

	g.Header().Del("Content-Length")
	g.Header().Set("Content-Encoding", "gzip")
	g.Header().Add("Vary", "Accept-Encoding")

	g.gz = gzipWriterPool.Get().(*gzip.Writer)
	g.gz.Reset(g.ResponseWriter)
	g.ResponseWriter.WriteHeader(g.statusCode)
	_, err := g.gz.Write(buf)
	return err
}

// Close flushes anything still buffered and returns the writer to the pool.
func (g *gzipResponseWriter) Close() error {
	err := g.decide()
	if g.gz != nil {
		if cerr := g.gz.Close(); err == nil {
			err = cerr
		}
		gzipWriterPool.Put(g.gz)
		g.gz = nil
	}
	return err
}

func (g *gzipResponseWriter) Flush() {
	if err := g.decide(); err != nil {
		return
	}
	if g.gz != nil {
		_ = g.gz.Flush()
	}
	if f, ok := g.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func acceptsGzip(r *http.Request) bool {
	for _, part := range strings.Split(r.Header.Get("Accept-Encoding"), ",") {
		coding, params, _ := strings.Cut(strings.TrimSpace(part), ";")
		if strings.EqualFold(strings.TrimSpace(coding), "gzip") {
			return strings.ReplaceAll(strings.TrimSpace(params), " ", "") != "q=0"
		}
	}
	return false
}

// Compression returns a middleware that gzips eligible responses
func Compression(config CompressionConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodHead || !acceptsGzip(r) {
				next.ServeHTTP(w, r)
				return
			}

			gzw := newGzipResponseWriter(w, config)
			defer func() {
				if err := gzw.Close(); err != nil {
					logging.Debug("Compressed response for %s not completed: %v", r.URL.Path, err)
				}
			}()

			next.ServeHTTP(gzw, r)
		})
	}
}
