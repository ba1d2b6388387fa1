package middleware

import (
	"log"
	"net/http"
	"runtime/debug"

	"github.com/chamahub/backend/internal/contextkeys"
	"github.com/chamahub/backend/internal/handler"
)

// Recovery catches panics and returns a 500 error instead of crashing the server.
func Recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				if err == http.ErrAbortHandler {
					panic(err)
				}
				id, _ := r.Context().Value(contextkeys.RequestID).(string)
				log.Printf("PANIC (request=%s): %v\n%s", id, err, debug.Stack())
				handler.JSON(w, http.StatusInternalServerError, map[string]string{
					"error": "internal server error",
				})
			}
		}()
		next.ServeHTTP(w, r)
	})
}
