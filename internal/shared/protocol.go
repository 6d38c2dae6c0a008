package shared

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"unicode/utf8"

	"github.com/juju/errors"
)

var SensorTypes = map[string]bool{
	"temperature": true,
	"motion":      true,
	"humidity":    true,
	"light":       true,
	"air_quality": true,
	"co2":         true,
	"contact":     true,
	"pressure":    true,
}

var SensorStatuses = map[string]bool{
	"active":   true,
	"inactive": true,
	"error":    true,
}

const (
	MaxNameLen     = 100
	MaxLocationLen = 100
	MaxUnitLen     = 50
)

// Value is a sensor reading. On the wire it may be a JSON number or a
// boolean; it is always stored and returned as a float.
type Value float64

func (v *Value) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch string(b) {
	case "true":
		*v = 1
		return nil
	case "false":
		*v = 0
		return nil
	}
	f, err := strconv.ParseFloat(string(b), 64)
	if err != nil {
		return errors.NotValidf("value %s (want number or boolean)", b)
	}
	*v = Value(f)
	return nil
}

// ValueOf coerces a decoded JSON value (as produced by encoding/json into
// an interface{}) into a Value.
func ValueOf(x any) (Value, error) {
	switch t := x.(type) {
	case bool:
		if t {
			return 1, nil
		}
		return 0, nil
	case float64:
		return Value(t), nil
	case int:
		return Value(t), nil
	case int64:
		return Value(t), nil
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return 0, errors.NotValidf("value %q", t.String())
		}
		return Value(f), nil
	default:
		return 0, errors.NotValidf("value of type %T", x)
	}
}

type Sensor struct {
	ID          string  `json:"id"` // "sensor-NNN"
	Name        string  `json:"name"`
	Type        string  `json:"type"`
	Location    string  `json:"location"`
	Value       float64 `json:"value"`
	Unit        string  `json:"unit"`
	Status      string  `json:"status"`
	LastReading string  `json:"last_reading"`
	CreatedAt   string  `json:"created_at"`
	UpdatedAt   string  `json:"updated_at"`
}

type SensorCreate struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Location string `json:"location"`
	Value    *Value `json:"value"`
	Unit     string `json:"unit"`
	Status   string `json:"status"`
}

func (s *SensorCreate) Validate() error {
	if err := checkText("name", s.Name, MaxNameLen); err != nil {
		return err
	}
	if !SensorTypes[s.Type] {
		return errors.NotValidf("sensor type %q", s.Type)
	}
	if err := checkText("location", s.Location, MaxLocationLen); err != nil {
		return err
	}
	if s.Value == nil {
		return errors.NotValidf("missing value")
	}
	if err := checkText("unit", s.Unit, MaxUnitLen); err != nil {
		return err
	}
	if !SensorStatuses[s.Status] {
		return errors.NotValidf("sensor status %q", s.Status)
	}
	return nil
}

// SensorUpdate carries a partial update; nil fields are left untouched.
type SensorUpdate struct {
	Name     *string `json:"name,omitempty"`
	Type     *string `json:"type,omitempty"`
	Location *string `json:"location,omitempty"`
	Value    *Value  `json:"value,omitempty"`
	Unit     *string `json:"unit,omitempty"`
	Status   *string `json:"status,omitempty"`
}

// Empty reports whether no field was supplied.
func (u *SensorUpdate) Empty() bool {
	return u.Name == nil && u.Type == nil && u.Location == nil &&
		u.Value == nil && u.Unit == nil && u.Status == nil
}

func (u *SensorUpdate) Validate() error {
	if u.Name != nil {
		if err := checkText("name", *u.Name, MaxNameLen); err != nil {
			return err
		}
	}
	if u.Type != nil && !SensorTypes[*u.Type] {
		return errors.NotValidf("sensor type %q", *u.Type)
	}
	if u.Location != nil {
		if err := checkText("location", *u.Location, MaxLocationLen); err != nil {
			return err
		}
	}
	if u.Unit != nil {
		if err := checkText("unit", *u.Unit, MaxUnitLen); err != nil {
			return err
		}
	}
	if u.Status != nil && !SensorStatuses[*u.Status] {
		return errors.NotValidf("sensor status %q", *u.Status)
	}
	return nil
}

func checkText(field, s string, max int) error {
	n := utf8.RuneCountInString(s)
	if n == 0 {
		return errors.NotValidf("empty %s", field)
	}
	if n > max {
		return errors.NotValidf("%s longer than %d characters", field, max)
	}
	return nil
}

type SensorList struct {
	Sensors []Sensor `json:"sensors"`
	Count   int      `json:"count"`
}

type HealthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
}

type ErrorResponse struct {
	Error  string `json:"error"`
	Detail string `json:"detail,omitempty"`
}

// FormatSensorID renders the numeric suffix in the sensor-NNN scheme.
func FormatSensorID(n int64) string {
	return fmt.Sprintf("sensor-%03d", n)
}
