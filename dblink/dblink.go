/*************************************************************************
 * Copyright 2017 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

// Package dblink bridges DB_QUERY/DB_RESULT frames (§4.3) to a backing SQL
// database. The interface is deliberately minimal: authorization is by
// possession of a valid client certificate, not anything this package
// enforces.
package dblink

import (
	"database/sql"
	"fmt"

	_ "github.com/go-sql-driver/mysql"

	"github.com/kazad/kazad/object"
)

// Config names the backing database (§6 `database/*` keys).
type Config struct {
	Driver   string
	DBName   string
	Hostname string
	Port     int
	Username string
	Password string
}

// DSN builds the driver-specific data source name. Only mysql is wired;
// other drivers listed in config but unsupported here fail at Open time
// with a clear error rather than silently falling back.
func (c Config) DSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s", c.Username, c.Password, c.Hostname, c.Port, c.DBName)
}

// Link executes ad-hoc SQL against a backing database and implements
// session.DB.
type Link struct {
	db *sql.DB
}

func Open(cfg Config) (*Link, error) {
	if cfg.Driver != "" && cfg.Driver != "mysql" {
		return nil, fmt.Errorf("dblink: unsupported driver %q", cfg.Driver)
	}
	db, err := sql.Open("mysql", cfg.DSN())
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}
	return &Link{db: db}, nil
}

func (l *Link) Close() error { return l.db.Close() }

// Query executes sql verbatim and converts every row into the tagged
// scalar values the frame protocol carries (§4.3: "execute verbatim
// against the backing SQL database").
func (l *Link) Query(query string) ([]string, [][]object.Value, error) {
	rows, err := l.db.Query(query)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, nil, err
	}

	var out [][]object.Value
	scanBuf := make([]interface{}, len(cols))
	scanPtrs := make([]interface{}, len(cols))
	for i := range scanBuf {
		scanPtrs[i] = &scanBuf[i]
	}

	for rows.Next() {
		if err := rows.Scan(scanPtrs...); err != nil {
			return nil, nil, err
		}
		row := make([]object.Value, len(cols))
		for i, v := range scanBuf {
			row[i] = toValue(v)
		}
		out = append(out, row)
	}
	return cols, out, rows.Err()
}

// toValue maps a database/sql scan result onto the dynamic scalar type.
func toValue(v interface{}) object.Value {
	switch t := v.(type) {
	case nil:
		return object.Invalid()
	case int64:
		return object.Int(t)
	case float64:
		return object.Float(t)
	case bool:
		return object.Bool(t)
	case []byte:
		return object.String(string(t))
	case string:
		return object.String(t)
	default:
		return object.String(fmt.Sprintf("%v", t))
	}
}
