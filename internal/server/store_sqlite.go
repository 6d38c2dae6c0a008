package server

import (
	"context"
	"database/sql"
	"strings"
	"sync"
	"time"

	"github.com/juju/errors"

	"sensorroom/internal/shared"
)

const sensorColumns = `id, name, type, location, value, unit, status, last_reading, created_at, updated_at`

type SQLiteStore struct {
	DB  *sql.DB
	Now func() time.Time

	// createMu serializes id allocation within this process; the
	// surrounding transaction covers other processes sharing the file.
	createMu sync.Mutex
}

func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{DB: db, Now: time.Now}
}

type rowQuerier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func scanSensor(row interface{ Scan(...any) error }) (shared.Sensor, error) {
	var s shared.Sensor
	err := row.Scan(&s.ID, &s.Name, &s.Type, &s.Location, &s.Value, &s.Unit, &s.Status, &s.LastReading, &s.CreatedAt, &s.UpdatedAt)
	return s, err
}

func getSensor(ctx context.Context, q rowQuerier, id string) (shared.Sensor, error) {
	s, err := scanSensor(q.QueryRowContext(ctx,
		`SELECT `+sensorColumns+` FROM sensors WHERE id = ?`, id,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return shared.Sensor{}, errors.NotFoundf("sensor %q", id)
	}
	if err != nil {
		return shared.Sensor{}, errors.Annotatef(err, "reading sensor %q", id)
	}
	return s, nil
}

func (s *SQLiteStore) List(ctx context.Context) ([]shared.Sensor, error) {
	rows, err := s.DB.QueryContext(ctx, `SELECT `+sensorColumns+` FROM sensors ORDER BY id`)
	if err != nil {
		return nil, errors.Annotate(err, "listing sensors")
	}
	defer rows.Close()

	sensors := []shared.Sensor{}
	for rows.Next() {
		sensor, err := scanSensor(rows)
		if err != nil {
			return nil, errors.Annotate(err, "listing sensors")
		}
		sensors = append(sensors, sensor)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Annotate(err, "listing sensors")
	}
	return sensors, nil
}

func (s *SQLiteStore) Get(ctx context.Context, id string) (shared.Sensor, error) {
	return getSensor(ctx, s.DB, id)
}

// nextSensorSeq returns the suffix for the next sensor id: one past the
// larger of the highest suffix present and the highest ever allocated.
func nextSensorSeq(ctx context.Context, q rowQuerier) (int64, error) {
	var last int64
	err := q.QueryRowContext(ctx, `
		SELECT MAX(
			COALESCE((SELECT last_value FROM sensor_sequence WHERE name = 'sensor'), 0),
			COALESCE((SELECT MAX(CAST(SUBSTR(id, 8) AS INTEGER)) FROM sensors
				WHERE id GLOB 'sensor-[0-9]*' AND SUBSTR(id, 8) NOT GLOB '*[^0-9]*'), 0)
		)`,
	).Scan(&last)
	if err != nil {
		return 0, err
	}
	return last + 1, nil
}

// NextID reports the id the next Create would allocate.
func (s *SQLiteStore) NextID(ctx context.Context) (string, error) {
	n, err := nextSensorSeq(ctx, s.DB)
	if err != nil {
		return "", errors.Trace(err)
	}
	return shared.FormatSensorID(n), nil
}

func bumpSensorSeq(ctx context.Context, tx *sql.Tx, n int64) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO sensor_sequence (name, last_value) VALUES ('sensor', ?)
		ON CONFLICT(name) DO UPDATE SET last_value = MAX(last_value, excluded.last_value)`, n,
	)
	return err
}

func (s *SQLiteStore) Create(ctx context.Context, in shared.SensorCreate) (shared.Sensor, error) {
	if err := in.Validate(); err != nil {
		return shared.Sensor{}, err
	}

	s.createMu.Lock()
	defer s.createMu.Unlock()

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return shared.Sensor{}, errors.Annotate(err, "creating sensor")
	}
	defer tx.Rollback()

	next, err := nextSensorSeq(ctx, tx)
	if err != nil {
		return shared.Sensor{}, errors.Annotate(err, "allocating sensor id")
	}
	id := shared.FormatSensorID(next)
	now := formatTime(s.Now())

	_, err = tx.ExecContext(ctx, `
		INSERT INTO sensors (`+sensorColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, in.Name, in.Type, in.Location, float64(*in.Value), in.Unit, in.Status, now, now, now,
	)
	if err != nil {
		return shared.Sensor{}, errors.Annotatef(err, "inserting sensor %q", id)
	}
	if err := bumpSensorSeq(ctx, tx, next); err != nil {
		return shared.Sensor{}, errors.Annotate(err, "allocating sensor id")
	}

	sensor, err := getSensor(ctx, tx, id)
	if err != nil {
		return shared.Sensor{}, err
	}
	if err := tx.Commit(); err != nil {
		return shared.Sensor{}, errors.Annotate(err, "creating sensor")
	}
	return sensor, nil
}

func (s *SQLiteStore) Update(ctx context.Context, id string, in shared.SensorUpdate) (shared.Sensor, error) {
	if err := in.Validate(); err != nil {
		return shared.Sensor{}, err
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return shared.Sensor{}, errors.Annotatef(err, "updating sensor %q", id)
	}
	defer tx.Rollback()

	existing, err := getSensor(ctx, tx, id)
	if err != nil {
		return shared.Sensor{}, err
	}
	if in.Empty() {
		return existing, nil
	}

	var sets []string
	var args []any
	set := func(col string, v any) {
		sets = append(sets, col+" = ?")
		args = append(args, v)
	}
	if in.Name != nil {
		set("name", *in.Name)
	}
	if in.Type != nil {
		set("type", *in.Type)
	}
	if in.Location != nil {
		set("location", *in.Location)
	}
	if in.Value != nil {
		set("value", float64(*in.Value))
	}
	if in.Unit != nil {
		set("unit", *in.Unit)
	}
	if in.Status != nil {
		set("status", *in.Status)
	}
	now := formatTime(s.Now())
	set("updated_at", now)
	set("last_reading", now)
	args = append(args, id)

	if _, err := tx.ExecContext(ctx,
		`UPDATE sensors SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...,
	); err != nil {
		return shared.Sensor{}, errors.Annotatef(err, "updating sensor %q", id)
	}

	sensor, err := getSensor(ctx, tx, id)
	if err != nil {
		return shared.Sensor{}, err
	}
	if err := tx.Commit(); err != nil {
		return shared.Sensor{}, errors.Annotatef(err, "updating sensor %q", id)
	}
	return sensor, nil
}

func (s *SQLiteStore) Delete(ctx context.Context, id string) (bool, error) {
	res, err := s.DB.ExecContext(ctx, `DELETE FROM sensors WHERE id = ?`, id)
	if err != nil {
		return false, errors.Annotatef(err, "deleting sensor %q", id)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, errors.Annotatef(err, "deleting sensor %q", id)
	}
	return n > 0, nil
}
