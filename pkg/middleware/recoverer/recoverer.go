package recoverer

import (
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/go-chi/render"
	"github.com/linkpulse/url-shortener/pkg/middleware"
	"github.com/linkpulse/url-shortener/pkg/response"
)

// New returns a middleware that turns a panic into a JSON 500 and logs it.
// http.ErrAbortHandler is re-raised so the server can drop the connection.
func New(logger *slog.Logger) middleware.Middleware {
	const op = "middleware.recoverer"

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rvr := recover()
				if rvr == nil {
					return
				}
				if rvr == http.ErrAbortHandler {
					panic(rvr)
				}

				logger.Error("panic while serving request",
					slog.String("op", op),
					slog.String("package", "middleware"),
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
					slog.Any("panic", rvr),
					slog.String("stack", string(debug.Stack())),
				)

				render.Status(r, http.StatusInternalServerError)
				render.JSON(w, r, response.ServerError)
			}()

			next.ServeHTTP(w, r)
		})
	}
}
