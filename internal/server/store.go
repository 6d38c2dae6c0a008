package server

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/juju/errors"

	"sensorroom/internal/shared"
)

//go:generate go run go.uber.org/mock/mockgen -package server -destination store_mock_test.go sensorroom/internal/server Store

// Store owns sensor persistence. Get and Update report a missing id with an
// error satisfying errors.Is(err, errors.NotFound); Delete reports it as
// false. Invalid input is rejected with errors.NotValid before anything is
// written.
type Store interface {
	List(ctx context.Context) ([]shared.Sensor, error)
	Get(ctx context.Context, id string) (shared.Sensor, error)
	Create(ctx context.Context, in shared.SensorCreate) (shared.Sensor, error)
	Update(ctx context.Context, id string, in shared.SensorUpdate) (shared.Sensor, error)
	Delete(ctx context.Context, id string) (bool, error)
}

var (
	_ Store = (*SQLiteStore)(nil)
	_ Store = (*MemoryStore)(nil)
)

const sensorIDPrefix = "sensor-"

// timestamps are stored as ISO-8601 UTC with millisecond precision.
const timeLayout = "2006-01-02T15:04:05.000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

// sensorSuffix returns the numeric part of a sensor-NNN id. The suffix
// must be digits only; nextSensorSeq applies the same rule in SQL.
func sensorSuffix(id string) (int64, bool) {
	digits, ok := strings.CutPrefix(id, sensorIDPrefix)
	if !ok || digits == "" || strings.Trim(digits, "0123456789") != "" {
		return 0, false
	}
	n, err := strconv.ParseInt(digits, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// MemoryStore keeps sensors in a map. It is meant for tests and ephemeral
// runs; nothing survives a restart.
type MemoryStore struct {
	mu      sync.Mutex
	sensors map[string]shared.Sensor
	lastSeq int64

	Now func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sensors: map[string]shared.Sensor{},
		Now:     time.Now,
	}
}

// Put inserts or replaces a sensor as-is, keeping the id sequence ahead of
// its suffix. Used for seeding.
func (s *MemoryStore) Put(sensor shared.Sensor) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sensors[sensor.ID] = sensor
	if n, ok := sensorSuffix(sensor.ID); ok && n > s.lastSeq {
		s.lastSeq = n
	}
}

func (s *MemoryStore) List(_ context.Context) ([]shared.Sensor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]shared.Sensor, 0, len(s.sensors))
	for _, sensor := range s.sensors {
		out = append(out, sensor)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (shared.Sensor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sensor, ok := s.sensors[id]
	if !ok {
		return shared.Sensor{}, errors.NotFoundf("sensor %q", id)
	}
	return sensor, nil
}

func (s *MemoryStore) Create(_ context.Context, in shared.SensorCreate) (shared.Sensor, error) {
	if err := in.Validate(); err != nil {
		return shared.Sensor{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.lastSeq
	for id := range s.sensors {
		if n, ok := sensorSuffix(id); ok && n > next {
			next = n
		}
	}
	next++
	s.lastSeq = next

	now := formatTime(s.Now())
	sensor := shared.Sensor{
		ID:          shared.FormatSensorID(next),
		Name:        in.Name,
		Type:        in.Type,
		Location:    in.Location,
		Value:       float64(*in.Value),
		Unit:        in.Unit,
		Status:      in.Status,
		LastReading: now,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	s.sensors[sensor.ID] = sensor
	return sensor, nil
}

func (s *MemoryStore) Update(_ context.Context, id string, in shared.SensorUpdate) (shared.Sensor, error) {
	if err := in.Validate(); err != nil {
		return shared.Sensor{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sensor, ok := s.sensors[id]
	if !ok {
		return shared.Sensor{}, errors.NotFoundf("sensor %q", id)
	}
	if in.Empty() {
		return sensor, nil
	}

	if in.Name != nil {
		sensor.Name = *in.Name
	}
	if in.Type != nil {
		sensor.Type = *in.Type
	}
	if in.Location != nil {
		sensor.Location = *in.Location
	}
	if in.Value != nil {
		sensor.Value = float64(*in.Value)
	}
	if in.Unit != nil {
		sensor.Unit = *in.Unit
	}
	if in.Status != nil {
		sensor.Status = *in.Status
	}
	now := formatTime(s.Now())
	sensor.UpdatedAt = now
	sensor.LastReading = now

	s.sensors[id] = sensor
	return sensor, nil
}

func (s *MemoryStore) Delete(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sensors[id]; !ok {
		return false, nil
	}
	delete(s.sensors, id)
	return true, nil
}
