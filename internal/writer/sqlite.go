// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package writer

import (
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"

	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/imgfx/pkg/types"
)

const (
	metaShape = "shape"
	metaDtype = "dtype"
)

// writeSQLite stores one row per patch. Each vector is the row's features
// encoded as little-endian float32; the full tensor shape goes to the meta
// table so the tensor can be rebuilt.
func writeSQLite(path string, shape []int, data []float32, rows []types.PatchSource) error {
	if len(shape) == 0 || shape[0] == 0 {
		return fmt.Errorf("sqlite output needs at least one row, got shape %v", shape)
	}
	return atomicWrite(path, func(tmp string) error {
		db, err := sql.Open("sqlite3", tmp)
		if err != nil {
			return fmt.Errorf("opening database: %w", err)
		}
		if err := fillSQLite(db, shape, data, rows); err != nil {
			db.Close()
			return err
		}
		return db.Close()
	})
}

func fillSQLite(db *sql.DB, shape []int, data []float32, rows []types.PatchSource) error {
	statements := []string{
		`CREATE TABLE meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,
		`CREATE TABLE features (
			row INTEGER PRIMARY KEY,
			source TEXT,
			x INTEGER,
			y INTEGER,
			vector BLOB NOT NULL
		)`,
	}
	for _, stmt := range statements {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}

	shapeJSON, err := json.Marshal(shape)
	if err != nil {
		return fmt.Errorf("encoding shape: %w", err)
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`INSERT INTO meta (key, value) VALUES (?, ?), (?, ?)`,
		metaShape, string(shapeJSON), metaDtype, "float32"); err != nil {
		return fmt.Errorf("inserting meta: %w", err)
	}

	stmt, err := tx.Prepare(`INSERT INTO features (row, source, x, y, vector) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	n := shape[0]
	per := len(data) / n
	for i := 0; i < n; i++ {
		var src types.PatchSource
		if len(rows) == n {
			src = rows[i]
		}
		vec := encodeVector(data[i*per : (i+1)*per])
		if _, err := stmt.Exec(i, src.Source, src.X, src.Y, vec); err != nil {
			return fmt.Errorf("inserting row %d: %w", i, err)
		}
	}
	return tx.Commit()
}

// readSQLite rebuilds the tensor written by writeSQLite.
func readSQLite(path string) ([]int, []float32, error) {
	db, err := sql.Open("sqlite3", "file:"+path+"?mode=ro")
	if err != nil {
		return nil, nil, fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	var shapeJSON string
	if err := db.QueryRow(`SELECT value FROM meta WHERE key = ?`, metaShape).Scan(&shapeJSON); err != nil {
		return nil, nil, fmt.Errorf("reading shape: %w", err)
	}
	var shape []int
	if err := json.Unmarshal([]byte(shapeJSON), &shape); err != nil {
		return nil, nil, fmt.Errorf("decoding shape %q: %w", shapeJSON, err)
	}

	rs, err := db.Query(`SELECT vector FROM features ORDER BY row`)
	if err != nil {
		return nil, nil, fmt.Errorf("querying features: %w", err)
	}
	defer rs.Close()

	var data []float32
	for rs.Next() {
		var blob []byte
		if err := rs.Scan(&blob); err != nil {
			return nil, nil, fmt.Errorf("scanning row: %w", err)
		}
		data = append(data, decodeVector(blob)...)
	}
	if err := rs.Err(); err != nil {
		return nil, nil, err
	}

	n := 1
	for _, d := range shape {
		n *= d
	}
	if n != len(data) {
		return nil, nil, fmt.Errorf("shape %v needs %d values, database holds %d", shape, n, len(data))
	}
	return shape, data, nil
}

func encodeVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(f))
	}
	return buf
}

func decodeVector(b []byte) []float32 {
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[4*i:]))
	}
	return v
}
