package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/dreschagin/risk-dashboard/pkg/logger"
)

// Recovery перехватывает panic в handler и отвечает 500
func Recovery(log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				// http.ErrAbortHandler используется для обрыва ответа, не логируем
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				log.Error("Panic in HTTP handler", fmt.Errorf("%v", rec),
					"path", r.URL.Path,
					"request_id", RequestIDFrom(r),
					"stack", string(debug.Stack()),
				)
				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			}()

			next.ServeHTTP(w, r)
		})
	}
}
