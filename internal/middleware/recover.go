package middleware

import (
	"net/http"
	"runtime/debug"

	"backpropd/internal/logging"
	"backpropd/internal/metrics"
)

type internalError struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// Recover is the terminal fallback: a panic anywhere downstream is caught,
// logged with its stack, and turned into a generic 500 if the response has
// not started. The process keeps serving other requests.
func Recover(log *logging.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sw := newStatusWriter(w)

			defer func() {
				p := recover()
				if p == nil {
					return
				}
				if p == http.ErrAbortHandler {
					// net/http semantics: let the server abort the connection.
					panic(p)
				}

				setAction(r, metrics.ActionPanic)
				if log != nil {
					log.Error("panic in request pipeline", map[string]interface{}{
						"value":  p,
						"method": r.Method,
						"path":   r.URL.Path,
						"stack":  string(debug.Stack()),
					})
				}

				if !sw.wroteHeader {
					WriteJSON(sw, http.StatusInternalServerError, internalError{
						Error:   "internal_error",
						Message: "internal server error",
					})
				}
			}()

			next.ServeHTTP(sw, r)
		})
	}
}
