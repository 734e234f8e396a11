// Package statlog keeps the history of watchdog intervals in SQLite.
package statlog

import (
	"errors"
	"time"

	"github.com/golang/glog"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/robotalks/crsflink/pkg/link"
)

const schema = `CREATE TABLE IF NOT EXISTS sessions (id text NOT NULL PRIMARY KEY, started integer);
CREATE TABLE IF NOT EXISTS intervals (id integer PRIMARY KEY AUTOINCREMENT, session text,
 stamp integer, baud integer, good integer, bad integer, rotated integer, connected integer)`

const (
	insertSession  = `INSERT INTO sessions (id, started) VALUES ($1, $2)`
	insertInterval = `INSERT INTO intervals (session, stamp, baud, good, bad, rotated, connected)
 VALUES ($1, $2, $3, $4, $5, $6, $7)`
	selectRecent = `SELECT session, stamp, baud, good, bad, rotated, connected FROM intervals
 ORDER BY id DESC LIMIT $1`
	selectSessions = `SELECT id, started FROM sessions ORDER BY started DESC`
)

// ErrNoSession is returned by Record on a Recorder from Load.
var ErrNoSession = errors.New("no session")

// Entry is a recorded interval.
type Entry struct {
	Session   string `db:"session"`
	Stamp     int64  `db:"stamp"`
	Baud      int    `db:"baud"`
	Good      uint32 `db:"good"`
	Bad       uint32 `db:"bad"`
	Rotated   bool   `db:"rotated"`
	Connected bool   `db:"connected"`
}

// Time returns when the interval ended.
func (e Entry) Time() time.Time {
	return FromMillis(e.Stamp)
}

// FromMillis converts a stored unix time in milliseconds.
func FromMillis(ms int64) time.Time {
	return time.Unix(0, ms*int64(time.Millisecond))
}

// Session is one run of the engine.
type Session struct {
	ID      string `db:"id"`
	Started int64  `db:"started"`
}

// Recorder appends intervals under a new session.
type Recorder struct {
	Session string

	db *sqlx.DB
}

// Open opens or creates the database at path and starts a session.
func Open(path string) (*Recorder, error) {
	r, err := Load(path)
	if err != nil {
		return nil, err
	}
	r.Session = uuid.New().String()
	if _, err = r.db.Exec(insertSession, r.Session, millis(time.Now())); err != nil {
		r.db.Close()
		return nil, err
	}
	glog.V(1).Infof("statlog: session %s in %s", r.Session, path)
	return r, nil
}

// Load opens or creates the database at path without a session, for
// reading the history.
func Load(path string) (*Recorder, error) {
	db, err := sqlx.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	if _, err = db.Exec(schema); err != nil {
		db.Close()
		return nil, err
	}
	return &Recorder{db: db}, nil
}

// Record appends rep.
func (r *Recorder) Record(rep link.WatchdogReport) error {
	if r.Session == "" {
		return ErrNoSession
	}
	_, err := r.db.Exec(insertInterval, r.Session, millis(rep.Time),
		rep.Baud, rep.Good, rep.Bad, rep.Rotated, rep.Connected)
	return err
}

// Recent returns the latest n intervals of all sessions, newest first.
func (r *Recorder) Recent(n int) ([]Entry, error) {
	var entries []Entry
	if err := r.db.Select(&entries, selectRecent, n); err != nil {
		return nil, err
	}
	return entries, nil
}

// Sessions lists the sessions, newest first.
func (r *Recorder) Sessions() ([]Session, error) {
	var sessions []Session
	if err := r.db.Select(&sessions, selectSessions); err != nil {
		return nil, err
	}
	return sessions, nil
}

// Close implements io.Closer.
func (r *Recorder) Close() error {
	return r.db.Close()
}

func millis(t time.Time) int64 {
	return t.UnixNano() / int64(time.Millisecond)
}
