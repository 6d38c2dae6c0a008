package main

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/juju/errors"

	"sensorroom/internal/server"
)

func main() {
	dbPath := os.Getenv("DATABASE_PATH")
	if dbPath == "" {
		dbPath = "./data/sensors.db"
	}

	db, err := server.OpenDB(dbPath)
	if err != nil {
		log.Fatalf("OpenDB failed: %v", err)
	}
	defer db.Close()

	if err := report(context.Background(), os.Stdout, db); err != nil {
		log.Fatalf("dbcheck failed: %v", err)
	}
}

// report prints the tables, the sensor count and the id the next create
// would get.
func report(ctx context.Context, w io.Writer, db *sql.DB) error {
	rows, err := db.QueryContext(ctx, `SELECT name FROM sqlite_master WHERE type='table' ORDER BY name;`)
	if err != nil {
		return errors.Annotate(err, "listing tables")
	}
	defer rows.Close()

	fmt.Fprintln(w, "Tables:")
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return errors.Annotate(err, "scanning table name")
		}
		fmt.Fprintln(w, " -", name)
	}
	if err := rows.Err(); err != nil {
		return errors.Annotate(err, "listing tables")
	}

	store := server.NewSQLiteStore(db)
	sensors, err := store.List(ctx)
	if err != nil {
		return errors.Annotate(err, "listing sensors")
	}
	fmt.Fprintln(w, "Sensors:", len(sensors))

	next, err := store.NextID(ctx)
	if err != nil {
		return errors.Annotate(err, "next id")
	}
	fmt.Fprintln(w, "Next id:", next)
	return nil
}
