package server

import (
	"database/sql"
	"net/url"
	"os"
	"path/filepath"

	"github.com/juju/errors"
	_ "modernc.org/sqlite"
)

// OpenDB opens (creating if needed) the SQLite database at path and applies
// pending migrations. Pragmas are set through the DSN so that every pooled
// connection gets them, not only the first one.
func OpenDB(path string) (*sql.DB, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return nil, errors.Annotatef(err, "creating db dir %s", dir)
		}
	}

	q := url.Values{}
	q.Add("_pragma", "journal_mode(WAL)")
	q.Add("_pragma", "foreign_keys(ON)")
	q.Add("_pragma", "busy_timeout(5000)")
	q.Set("_txlock", "immediate")

	db, err := sql.Open("sqlite", "file:"+path+"?"+q.Encode())
	if err != nil {
		return nil, errors.Trace(err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, errors.Annotatef(err, "opening %s", path)
	}

	if err := RunMigrations(db); err != nil {
		db.Close()
		return nil, errors.Annotate(err, "migrations")
	}
	return db, nil
}
