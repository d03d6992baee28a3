package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/Trios-de-tryharders/site-de-quiz/internal/dispatch"
	"github.com/Trios-de-tryharders/site-de-quiz/internal/ws"
)

func SetupRoutes(d *dispatch.Dispatcher, log *zap.Logger) http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", Healthz)
	r.Get("/ws", ws.Handler(d, log))
	return r
}

func Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}
