package main

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	qt "github.com/frankban/quicktest"
	"go.uber.org/goleak"

	"sensorroom/internal/server"
	"sensorroom/internal/shared"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestReport(t *testing.T) {
	c := qt.New(t)
	ctx := context.Background()

	db, err := server.OpenDB(filepath.Join(c.TempDir(), "sensors.db"))
	c.Assert(err, qt.IsNil)
	defer db.Close()

	v := shared.Value(20)
	_, err = server.NewSQLiteStore(db).Create(ctx, shared.SensorCreate{
		Name: "Attic", Type: "temperature", Location: "attic", Value: &v, Unit: "celsius", Status: "active",
	})
	c.Assert(err, qt.IsNil)

	var out bytes.Buffer
	c.Assert(report(ctx, &out, db), qt.IsNil)
	c.Check(out.String(), qt.Equals, `Tables:
 - migrations
 - sensor_sequence
 - sensors
Sensors: 1
Next id: sensor-002
`)
}

func TestReportFailsOnClosedDB(t *testing.T) {
	c := qt.New(t)

	db, err := server.OpenDB(filepath.Join(c.TempDir(), "sensors.db"))
	c.Assert(err, qt.IsNil)
	c.Assert(db.Close(), qt.IsNil)

	var out bytes.Buffer
	c.Check(report(context.Background(), &out, db), qt.ErrorMatches, `listing tables: .*`)
}
