package mysql

/*
Settings understood by the MySQL store:

host = "localhost"
port = "3306"
user = "root"
password = "root"
database = "dispatch"
table = "vehicle"
*/

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"

	"github.com/dispatchd/fleettrack/cli/tracker/types"
)

var now = time.Now // For mocking time.Now() in tests

type Store struct {
	connection *sql.DB
	config     map[string]string
}

func (s *Store) Init(cfg map[string]string) error {
	if cfg == nil {
		return fmt.Errorf("invalid config section reference")
	}
	s.config = cfg

	connStr := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?parseTime=true",
		s.config["user"], s.config["password"], s.config["host"], s.config["port"], s.config["database"])

	var err error
	if s.connection, err = sql.Open("mysql", connStr); err != nil {
		return fmt.Errorf("failed to connect to MySQL: %v", err)
	}
	if err = s.connection.Ping(); err != nil {
		return fmt.Errorf("MySQL unavailable: %v", err)
	}
	return nil
}

func (s *Store) table() string {
	if t := s.config["table"]; t != "" {
		return t
	}
	return "vehicle"
}

func (s *Store) UpdateLocation(id string, upd types.LocationUpdate) error {
	if upd.Empty() {
		return nil
	}

	query, args := BuildUpsert(s.table(), id, upd, now().UTC())
	if _, err := s.connection.Exec(query, args...); err != nil {
		return fmt.Errorf("failed to upsert location for %s: %v", id, err)
	}
	return nil
}

// BuildUpsert renders the location upsert for one vehicle. Only the set
// fields of the update appear in the column list.
func BuildUpsert(table, id string, upd types.LocationUpdate, at time.Time) (string, []interface{}) {
	columns := []string{"id"}
	args := []interface{}{id}

	if upd.Lat != nil {
		columns = append(columns, "lat")
		args = append(args, *upd.Lat)
	}
	if upd.Lng != nil {
		columns = append(columns, "lng")
		args = append(args, *upd.Lng)
	}
	if upd.Address != nil {
		columns = append(columns, "address")
		args = append(args, *upd.Address)
	}
	columns = append(columns, "last_updated")
	args = append(args, at)

	placeholders := make([]string, len(columns))
	for i := range columns {
		placeholders[i] = "?"
	}

	assignments := make([]string, 0, len(columns)-1)
	for _, col := range columns[1:] {
		assignments = append(assignments, fmt.Sprintf("%s = VALUES(%s)", col, col))
	}

	query := fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s) ON DUPLICATE KEY UPDATE %s",
		table,
		strings.Join(columns, ", "),
		strings.Join(placeholders, ", "),
		strings.Join(assignments, ", "),
	)
	return query, args
}

func (s *Store) ListActive() ([]types.Vehicle, error) {
	query := fmt.Sprintf(
		"SELECT id, status, lat, lng FROM %s WHERE status <> ?",
		s.table())

	rows, err := s.connection.Query(query, types.StatusIdle)
	if err != nil {
		return nil, fmt.Errorf("failed to list active vehicles: %v", err)
	}
	defer rows.Close()

	var vehicles []types.Vehicle
	for rows.Next() {
		var v types.Vehicle
		var lat, lng sql.NullFloat64
		if err := rows.Scan(&v.ID, &v.Status, &lat, &lng); err != nil {
			return nil, err
		}
		if lat.Valid {
			v.Lat = &lat.Float64
		}
		if lng.Valid {
			v.Lng = &lng.Float64
		}
		vehicles = append(vehicles, v)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return vehicles, nil
}

func (s *Store) Close() error {
	return s.connection.Close()
}
