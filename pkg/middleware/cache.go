package middleware

import (
	"net/http"
	"strconv"
)

// CacheControl lets shared caches keep successful GET responses for maxAge
// seconds. Any other status is marked no-store so a transient failure is
// never replayed. A non-positive maxAge behaves like NoStore.
func CacheControl(maxAge int) func(http.Handler) http.Handler {
	if maxAge <= 0 {
		return NoStore
	}
	value := "public, max-age=" + strconv.Itoa(maxAge)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodGet {
				next.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(&cacheWriter{ResponseWriter: w, value: value}, r)
		})
	}
}

// NoStore marks every response uncacheable.
func NoStore(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-store")
		next.ServeHTTP(w, r)
	})
}

// cacheWriter picks the Cache-Control value once the status is known.
type cacheWriter struct {
	http.ResponseWriter
	value   string
	decided bool
}

func (w *cacheWriter) decide(status int) {
	if w.decided {
		return
	}
	w.decided = true
	if status == http.StatusOK {
		w.Header().Set("Cache-Control", w.value)
	} else {
		w.Header().Set("Cache-Control", "no-store")
	}
}

func (w *cacheWriter) WriteHeader(status int) {
	w.decide(status)
	w.ResponseWriter.WriteHeader(status)
}

func (w *cacheWriter) Write(b []byte) (int, error) {
	w.decide(http.StatusOK)
	return w.ResponseWriter.Write(b)
}

func (w *cacheWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
