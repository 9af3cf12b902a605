package store

import (
	"database/sql"
	"strconv"

	"github.com/jmoiron/sqlx"
)

// GetCursor returns a named scraper cursor value, or "" if unset.
func (s *Store) GetCursor(name string) (string, error) {
	var value string
	err := s.db.Get(&value, `SELECT value FROM user.kv WHERE name = ?`, name)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}

// SetCursor persists a named scraper cursor value.
func (s *Store) SetCursor(name, value string) error {
	_, err := s.db.Exec(`
		INSERT INTO user.kv (name, value) VALUES (?, ?)
		ON CONFLICT(name) DO UPDATE SET value = excluded.value`, name, value)
	return err
}

func getCursorTx(tx *sqlx.Tx, name string) (string, error) {
	var value string
	err := tx.Get(&value, `SELECT value FROM user.kv WHERE name = ?`, name)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}

func setCursorTx(tx *sqlx.Tx, name, value string) error {
	_, err := tx.Exec(`
		INSERT INTO user.kv (name, value) VALUES (?, ?)
		ON CONFLICT(name) DO UPDATE SET value = excluded.value`, name, value)
	return err
}

func getIntCursorTx(tx *sqlx.Tx, name string) (int, error) {
	v, err := getCursorTx(tx, name)
	if err != nil || v == "" {
		return 0, err
	}
	return strconv.Atoi(v)
}

func setIntCursorTx(tx *sqlx.Tx, name string, value int) error {
	return setCursorTx(tx, name, strconv.Itoa(value))
}
