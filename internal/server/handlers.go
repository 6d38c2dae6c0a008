package server

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/juju/errors"

	"sensorroom/internal/shared"
)

const ServiceName = "sensorroom"

type API struct {
	Store Store
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps an error class onto a status code. Unclassified errors
// are treated as storage faults: the client gets a generic 500 and the
// cause goes to the request's completion log record.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, errors.NotFound):
		writeJSON(w, http.StatusNotFound, shared.ErrorResponse{Error: "not found", Detail: err.Error()})
	case errors.Is(err, errors.Unauthorized):
		writeJSON(w, http.StatusUnauthorized, shared.ErrorResponse{Error: err.Error()})
	case errors.Is(err, errors.NotValid):
		writeJSON(w, http.StatusUnprocessableEntity, shared.ErrorResponse{Error: "validation failed", Detail: err.Error()})
	case errors.Is(err, errors.BadRequest):
		writeJSON(w, http.StatusBadRequest, shared.ErrorResponse{Error: "bad request", Detail: err.Error()})
	default:
		noteError(r.Context(), err)
		writeJSON(w, http.StatusInternalServerError, shared.ErrorResponse{Error: "internal server error"})
	}
}

func readBody(r *http.Request) ([]byte, error) {
	defer r.Body.Close()
	return io.ReadAll(io.LimitReader(r.Body, 1<<20))
}

// decodeBody separates unparseable bodies (400) from well-formed JSON with
// wrongly typed fields (422).
func decodeBody(r *http.Request, v any) error {
	body, err := readBody(r)
	if err != nil {
		return errors.BadRequestf("reading body: %v", err)
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return errors.BadRequestf("empty body")
	}
	if err := json.Unmarshal(body, v); err != nil {
		var syn *json.SyntaxError
		if errors.As(err, &syn) {
			return errors.BadRequestf("malformed JSON: %v", err)
		}
		return errors.NewNotValid(err, "request body")
	}
	return nil
}

func (a *API) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, shared.HealthResponse{Status: "ok", Service: ServiceName})
}

func (a *API) ListSensors(w http.ResponseWriter, r *http.Request) {
	sensors, err := a.Store.List(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, shared.SensorList{Sensors: sensors, Count: len(sensors)})
}

func (a *API) GetSensor(w http.ResponseWriter, r *http.Request) {
	sensor, err := a.Store.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sensor)
}

func (a *API) CreateSensor(w http.ResponseWriter, r *http.Request) {
	var in shared.SensorCreate
	if err := decodeBody(r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	if err := in.Validate(); err != nil {
		writeError(w, r, err)
		return
	}

	sensor, err := a.Store.Create(r.Context(), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, sensor)
}

func (a *API) UpdateSensor(w http.ResponseWriter, r *http.Request) {
	var in shared.SensorUpdate
	if err := decodeBody(r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	if err := in.Validate(); err != nil {
		writeError(w, r, err)
		return
	}

	sensor, err := a.Store.Update(r.Context(), mux.Vars(r)["id"], in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sensor)
}

func (a *API) DeleteSensor(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	removed, err := a.Store.Delete(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if !removed {
		writeError(w, r, errors.NotFoundf("sensor %q", id))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
