package server

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	"sensorroom/internal/shared"
)

type RouterOptions struct {
	Store Store
	Gate  Gate
	Log   *slog.Logger

	// HealthRequiresAuth puts /health behind the gate too.
	HealthRequiresAuth bool
	// Metrics, when set, instruments every route and serves /metrics
	// behind the gate.
	Metrics *Metrics
}

type recoveryLogger struct {
	log *slog.Logger
}

func (l recoveryLogger) Println(v ...interface{}) {
	l.log.Error("recovered from panic", "panic", fmt.Sprint(v...))
}

// NewRouter composes the request pipeline:
// correlation -> panic recovery -> routing (+ metrics) -> auth gate -> handler.
func NewRouter(o RouterOptions) http.Handler {
	api := &API{Store: o.Store}

	r := mux.NewRouter()
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusNotFound, shared.ErrorResponse{Error: "not found"})
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, shared.ErrorResponse{Error: "method not allowed"})
	})
	if o.Metrics != nil {
		r.Use(o.Metrics.Middleware)
	}

	var health http.Handler = http.HandlerFunc(api.Health)
	if o.HealthRequiresAuth {
		health = o.Gate.RequireBearer(health)
	}
	r.Handle("/health", health).Methods(http.MethodGet)

	protected := r.NewRoute().Subrouter()
	protected.Use(o.Gate.RequireBearer)
	protected.HandleFunc("/sensors", api.ListSensors).Methods(http.MethodGet)
	protected.HandleFunc("/sensors", api.CreateSensor).Methods(http.MethodPost)
	protected.HandleFunc("/sensors/{id}", api.GetSensor).Methods(http.MethodGet)
	protected.HandleFunc("/sensors/{id}", api.UpdateSensor).Methods(http.MethodPut)
	protected.HandleFunc("/sensors/{id}", api.DeleteSensor).Methods(http.MethodDelete)
	if o.Metrics != nil {
		protected.Handle("/metrics", o.Metrics.Handler()).Methods(http.MethodGet)
	}

	recovery := handlers.RecoveryHandler(
		handlers.RecoveryLogger(recoveryLogger{o.Log}),
		handlers.PrintRecoveryStack(false),
	)
	return Correlate(o.Log, recovery(notePanics(r)))
}
