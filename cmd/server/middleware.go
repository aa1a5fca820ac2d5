package main

import (
    "compress/gzip"
    "io"
    "net/http"
    "runtime/debug"
    "strings"
    "sync"
    "time"

    "github.com/google/uuid"
    "github.com/rs/zerolog"
    "github.com/rs/zerolog/log"
)

const requestIDHeader = "X-Request-ID"

// withRequestID echoes or assigns a request id, attaches a request-scoped
// logger to the context and logs the finished request.
func withRequestID(next http.Handler) http.Handler {
    return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
        id := r.Header.Get(requestIDHeader)
        if id == "" || len(id) > 128 { id = uuid.NewString() }
        w.Header().Set(requestIDHeader, id)

        logger := log.With().Str("request_id", id).Logger()
        r = r.WithContext(logger.WithContext(r.Context()))

        rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
        start := time.Now()
        next.ServeHTTP(rec, r)
        logger.Info().
            Str("method", r.Method).
            Str("path", r.URL.Path).
            Int("status", rec.status).
            Dur("elapsed", time.Since(start)).
            Msg("request")
    })
}

type statusRecorder struct {
    http.ResponseWriter
    status int
}

func (s *statusRecorder) WriteHeader(code int) {
    s.status = code
    s.ResponseWriter.WriteHeader(code)
}

func withJSONHeaders(next http.Handler) http.Handler {
    return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
        w.Header().Set("Content-Type", "application/json; charset=utf-8")
        // Basic CORS for the browser calculator.
        w.Header().Set("Access-Control-Allow-Origin", "*")
        w.Header().Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
        w.Header().Set("Access-Control-Allow-Headers", "Content-Type,"+requestIDHeader)
        w.Header().Set("Access-Control-Expose-Headers", "X-Cache,"+requestIDHeader)
        if r.Method == http.MethodOptions {
            w.WriteHeader(http.StatusNoContent)
            return
        }
        next.ServeHTTP(w, r)
    })
}

var gzPool = sync.Pool{New: func() any {
    w, _ := gzip.NewWriterLevel(io.Discard, gzip.BestSpeed)
    return w
}}

// withGzip compresses JSON responses for clients that accept gzip. HEAD
// requests pass through untouched.
func withGzip(next http.Handler) http.Handler {
    return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
        w.Header().Add("Vary", "Accept-Encoding")
        if r.Method == http.MethodHead || !strings.Contains(r.Header.Get("Accept-Encoding"), "gzip") {
            next.ServeHTTP(w, r)
            return
        }
        gz := gzPool.Get().(*gzip.Writer)
        gz.Reset(w)
        defer func() {
            _ = gz.Close()
            gz.Reset(io.Discard)
            gzPool.Put(gz)
        }()
        w.Header().Set("Content-Encoding", "gzip")
        w.Header().Del("Content-Length")
        next.ServeHTTP(gzipResponseWriter{ResponseWriter: w, Writer: gz}, r)
    })
}

type gzipResponseWriter struct {
    http.ResponseWriter
    Writer io.Writer
}

func (g gzipResponseWriter) Write(b []byte) (int, error) {
    return g.Writer.Write(b)
}

// maxBodyBytes bounds POST /api/calculate, which carries at most an amount,
// a platform id and one snapshot.
const maxBodyBytes = 64 << 10

// limitBody caps request bodies at n bytes. Handlers see
// *http.MaxBytesError once the cap is hit.
func limitBody(n int64) func(http.Handler) http.Handler {
    return func(next http.Handler) http.Handler {
        return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
            if r.Body != nil && r.Body != http.NoBody {
                r.Body = http.MaxBytesReader(w, r.Body, n)
            }
            next.ServeHTTP(w, r)
        })
    }
}

// recoverPanic turns a handler panic into a 500 and logs it with the stack
// on the request logger.
func recoverPanic(next http.Handler) http.Handler {
    return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
        defer func() {
            if rec := recover(); rec != nil {
                zerolog.Ctx(r.Context()).Error().
                    Interface("panic", rec).
                    Str("method", r.Method).
                    Str("path", r.URL.Path).
                    Bytes("stack", debug.Stack()).
                    Msg("handler panic")
                w.Header().Set("Cache-Control", "no-store")
                writeError(w, http.StatusInternalServerError, "internal server error")
            }
        }()
        next.ServeHTTP(w, r)
    })
}
