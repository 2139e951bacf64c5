package http

import (
	"log/slog"
	"net/http"

	"classquiz-service/internal/app"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter wires the REST, websocket, health and metrics endpoints.
func NewRouter(grouping *app.GroupingService, live *app.LiveService) *mux.Router {
	router := mux.NewRouter()
	router.Use(loggingMiddleware(slog.Default().With("component", "http")))
	router.Use(corsMiddleware)

	NewRESTHandler(grouping, live).RegisterRoutes(router)
	router.HandleFunc("/ws", NewWSHandler(live).ServeWS).Methods("GET")
	router.HandleFunc("/healthz", healthCheckHandler).Methods("GET")
	router.Handle("/metrics", promhttp.Handler()).Methods("GET")
	router.PathPrefix("/").HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}).Methods("OPTIONS")
	return router
}

func healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}
