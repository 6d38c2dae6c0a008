package server

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"
	"os"
	"time"

	"github.com/juju/errors"

	"sensorroom/internal/shared"
)

type seedSensor struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Type        string `json:"type"`
	Location    string `json:"location"`
	Value       any    `json:"value"` // number or boolean
	Unit        string `json:"unit"`
	Status      string `json:"status"`
	LastReading string `json:"last_reading"`
}

func readSeedFile(path string) ([]shared.Sensor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw []seedSensor
	if err := dec.Decode(&raw); err != nil {
		return nil, errors.Annotatef(err, "decoding %s", path)
	}

	now := formatTime(time.Now())
	out := make([]shared.Sensor, 0, len(raw))
	seen := make(map[string]bool, len(raw))
	for _, r := range raw {
		if _, ok := sensorSuffix(r.ID); !ok {
			return nil, errors.NotValidf("seed sensor id %q", r.ID)
		}
		if seen[r.ID] {
			return nil, errors.NotValidf("duplicate seed sensor id %q", r.ID)
		}
		seen[r.ID] = true

		v, err := shared.ValueOf(r.Value)
		if err != nil {
			return nil, errors.Annotatef(err, "seed sensor %q", r.ID)
		}
		if !shared.SensorTypes[r.Type] {
			return nil, errors.NotValidf("seed sensor %q type %q", r.ID, r.Type)
		}
		if !shared.SensorStatuses[r.Status] {
			return nil, errors.NotValidf("seed sensor %q status %q", r.ID, r.Status)
		}
		// Same field rules as an API create.
		create := shared.SensorCreate{
			Name: r.Name, Type: r.Type, Location: r.Location, Value: &v, Unit: r.Unit, Status: r.Status,
		}
		if err := create.Validate(); err != nil {
			return nil, errors.Annotatef(err, "seed sensor %q", r.ID)
		}
		lastReading := r.LastReading
		if lastReading == "" {
			lastReading = now
		}
		out = append(out, shared.Sensor{
			ID:          r.ID,
			Name:        r.Name,
			Type:        r.Type,
			Location:    r.Location,
			Value:       float64(v),
			Unit:        r.Unit,
			Status:      r.Status,
			LastReading: lastReading,
			CreatedAt:   now,
			UpdatedAt:   now,
		})
	}
	return out, nil
}

// SeedFromJSON loads sensors from a JSON array file into an empty sensors
// table. A populated table or a missing file is left alone. Returns the
// number of rows inserted.
func SeedFromJSON(ctx context.Context, db *sql.DB, path string, log *slog.Logger) (int, error) {
	var count int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sensors`).Scan(&count); err != nil {
		return 0, errors.Annotate(err, "counting sensors")
	}
	if count > 0 {
		log.Info("database already has data, skipping seed", "count", count)
		return 0, nil
	}

	sensors, err := readSeedFile(path)
	if os.IsNotExist(errors.Cause(err)) {
		log.Warn("seed file not found", "path", path)
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, errors.Trace(err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO sensors (`+sensorColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, errors.Trace(err)
	}
	defer stmt.Close()

	var maxSeq int64
	for _, s := range sensors {
		if _, err := stmt.ExecContext(ctx,
			s.ID, s.Name, s.Type, s.Location, s.Value, s.Unit, s.Status, s.LastReading, s.CreatedAt, s.UpdatedAt,
		); err != nil {
			return 0, errors.Annotatef(err, "seeding sensor %q", s.ID)
		}
		if n, ok := sensorSuffix(s.ID); ok && n > maxSeq {
			maxSeq = n
		}
	}
	if err := bumpSensorSeq(ctx, tx, maxSeq); err != nil {
		return 0, errors.Trace(err)
	}
	if err := tx.Commit(); err != nil {
		return 0, errors.Trace(err)
	}

	log.Info("seeded database from JSON", "count", len(sensors), "path", path)
	return len(sensors), nil
}

// SeedMemoryStore is SeedFromJSON for the in-memory store.
func SeedMemoryStore(store *MemoryStore, path string, log *slog.Logger) (int, error) {
	if existing, _ := store.List(context.Background()); len(existing) > 0 {
		return 0, nil
	}
	sensors, err := readSeedFile(path)
	if os.IsNotExist(errors.Cause(err)) {
		log.Warn("seed file not found", "path", path)
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	for _, s := range sensors {
		store.Put(s)
	}
	log.Info("seeded memory store from JSON", "count", len(sensors), "path", path)
	return len(sensors), nil
}
