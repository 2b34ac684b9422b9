package recovery

import (
	"net/http"
	"runtime/debug"
	"sync/atomic"

	"budget/internal/log"
)

// Middleware turns handler panics into a 500 response instead of a dropped
// connection.
type Middleware struct {
	onPanic func(http.ResponseWriter, *http.Request)
	panics  int64
}

// NewMiddleware uses onPanic to write the response; when nil a plain 500 is sent.
func NewMiddleware(onPanic func(http.ResponseWriter, *http.Request)) *Middleware {
	return &Middleware{onPanic: onPanic}
}

func (m *Middleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			// Let the server abort the connection as it normally would.
			if rec == http.ErrAbortHandler {
				panic(rec)
			}
			atomic.AddInt64(&m.panics, 1)
			log.FromContext(r.Context()).ErrorContext(r.Context(), "Panic recovered",
				"panic", rec,
				log.FieldMethod, r.Method,
				log.FieldPath, r.URL.Path,
				"stack", string(debug.Stack()))

			if m.onPanic != nil {
				m.onPanic(w, r)
				return
			}
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		}()
		next.ServeHTTP(w, r)
	})
}

// Panics returns the number of recovered panics.
func (m *Middleware) Panics() int64 {
	return atomic.LoadInt64(&m.panics)
}
