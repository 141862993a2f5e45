// Package store reads the checker's SQLite database for the dashboard
// endpoints. It never writes appointment data.
package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strings"

	"github.com/goccy/go-json"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"

	"github.com/schengenwatch/visadash/internal/model"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

var (
	// ErrInvalidColumn is returned for columns outside the filter fields
	ErrInvalidColumn = errors.New("invalid filter column")
	// ErrNotFound is returned when an appointment id does not exist
	ErrNotFound = errors.New("appointment not found")
)

// Options tunes query limits
type Options struct {
	LogLimit      int
	ResponseLimit int
	Migrate       bool
}

// Store serves read queries over the checker database
type Store struct {
	db   *sqlx.DB
	opts Options
}

// Open connects to the SQLite file at path and optionally brings the schema
// up to date.
func Open(path string, opts Options) (*Store, error) {
	if opts.LogLimit <= 0 {
		opts.LogLimit = 10
	}
	if opts.ResponseLimit <= 0 {
		opts.ResponseLimit = 10
	}

	db, err := sqlx.Connect("sqlite3", "file:"+path+"?_fk=1&mode=rwc&_mutex=full")
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	db.SetMaxIdleConns(5)
	db.SetMaxOpenConns(5)

	s := &Store{db: db, opts: opts}
	if opts.Migrate {
		if err := s.migrate(); err != nil {
			db.Close()
			return nil, err
		}
	}
	return s, nil
}

func (s *Store) migrate() error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("migration source: %w", err)
	}
	drv, err := sqlite3.WithInstance(s.db.DB, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("migration driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite3", drv)
	if err != nil {
		return fmt.Errorf("migration init: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration up: %w", err)
	}
	return nil
}

// Close releases the database handle
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the database connection
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

const appointmentColumns = `
	u.id AS unique_appointment_id,
	COALESCE(u.center_name, '') AS center_name,
	COALESCE(u.visa_category, '') AS visa_category,
	COALESCE(u.visa_subcategory, '') AS visa_subcategory,
	COALESCE(u.source_country, '') AS source_country,
	COALESCE(u.mission_country, '') AS mission_country,
	COALESCE(u.book_now_link, '') AS book_now_link,
	COALESCE(l.appointment_date, '') AS appointment_date,
	COALESCE(l.last_checked, '') AS last_checked,
	COALESCE(l.people_looking, 0) AS people_looking
FROM unique_appointments u
LEFT JOIN appointment_logs l
	ON l.id = (SELECT MAX(id) FROM appointment_logs WHERE unique_appointment_id = u.id)`

// FilteredAppointments returns every appointment with its latest check,
// keeping rows whose fields contain each non-empty filter value.
func (s *Store) FilteredAppointments(ctx context.Context, q model.FilterQuery) ([]model.Appointment, error) {
	var where []string
	var args []any
	for _, f := range model.FilterFields {
		v, ok := q[f]
		if !ok {
			continue
		}
		// f comes from the fixed field list, never from input
		where = append(where, "u."+f+` LIKE ? ESCAPE '\'`)
		args = append(args, "%"+escapeLike(v)+"%")
	}

	query := "SELECT" + appointmentColumns
	if len(where) > 0 {
		query += "\nWHERE " + strings.Join(where, " AND ")
	}
	query += "\nORDER BY l.last_checked DESC, u.id"

	rows := []model.Appointment{}
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("filtered appointments: %w", err)
	}
	return rows, nil
}

// FilterOptions lists the distinct non-empty values of one filter column
func (s *Store) FilterOptions(ctx context.Context, column string) ([]string, error) {
	if !model.IsFilterField(column) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidColumn, column)
	}
	query := fmt.Sprintf(
		"SELECT DISTINCT %[1]s FROM unique_appointments WHERE %[1]s IS NOT NULL AND %[1]s <> '' ORDER BY %[1]s",
		column)

	out := []string{}
	if err := s.db.SelectContext(ctx, &out, query); err != nil {
		return nil, fmt.Errorf("filter options %s: %w", column, err)
	}
	return out, nil
}

// AppointmentHistory returns one appointment and all of its checks, newest
// first.
func (s *Store) AppointmentHistory(ctx context.Context, id int64) (*model.AppointmentHistory, error) {
	var h model.AppointmentHistory
	err := s.db.GetContext(ctx, &h.Appointment, "SELECT"+appointmentColumns+"\nWHERE u.id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("appointment %d: %w", id, err)
	}

	h.Checks = []model.CheckLog{}
	err = s.db.SelectContext(ctx, &h.Checks, `
		SELECT COALESCE(timestamp, '') AS timestamp,
			COALESCE(appointment_date, '') AS appointment_date,
			COALESCE(last_checked, '') AS last_checked,
			COALESCE(people_looking, 0) AS people_looking
		FROM appointment_logs
		WHERE unique_appointment_id = ?
		ORDER BY id DESC`, id)
	if err != nil {
		return nil, fmt.Errorf("appointment %d checks: %w", id, err)
	}
	return &h, nil
}

// RecentAppointments returns the newest entries of the found-appointment feed
func (s *Store) RecentAppointments(ctx context.Context) ([]model.LogEntry, error) {
	return s.messages(ctx, "appointments")
}

// Logs returns the newest general log entries
func (s *Store) Logs(ctx context.Context) ([]model.LogEntry, error) {
	return s.messages(ctx, "logs")
}

func (s *Store) messages(ctx context.Context, table string) ([]model.LogEntry, error) {
	out := []model.LogEntry{}
	query := "SELECT COALESCE(timestamp, '') AS timestamp, COALESCE(message, '') AS message FROM " + table + " ORDER BY id DESC LIMIT ?"
	if err := s.db.SelectContext(ctx, &out, query, s.opts.LogLimit); err != nil {
		return nil, fmt.Errorf("%s: %w", table, err)
	}
	return out, nil
}

// Responses returns the newest stored upstream responses. Payloads that are
// not valid JSON are returned as JSON strings.
func (s *Store) Responses(ctx context.Context) ([]model.ResponseChange, error) {
	var rows []struct {
		Timestamp string         `db:"timestamp"`
		Response  sql.NullString `db:"response"`
	}
	err := s.db.SelectContext(ctx, &rows,
		"SELECT COALESCE(timestamp, '') AS timestamp, response FROM responses ORDER BY id DESC LIMIT ?", s.opts.ResponseLimit)
	if err != nil {
		return nil, fmt.Errorf("responses: %w", err)
	}

	out := make([]model.ResponseChange, 0, len(rows))
	for _, r := range rows {
		payload := []byte(r.Response.String)
		if !r.Response.Valid {
			payload = []byte("null")
		} else if !json.Valid(payload) {
			payload, _ = json.Marshal(r.Response.String)
		}
		out = append(out, model.ResponseChange{Timestamp: r.Timestamp, Response: payload})
	}
	return out, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
