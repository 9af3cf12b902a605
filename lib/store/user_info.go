package store

import (
	"database/sql"

	"github.com/btncache/mirror/core"

	"github.com/jmoiron/sqlx"
)

// UpsertUserInfo overwrites the singleton user_info row with info. Unlike
// the metadata-graph upserts, there's no prior state worth preserving here:
// the row is always a snapshot of the account's current stats, not a tailed
// history, so every poll simply replaces it outright and mints a fresh
// change-stamp.
func (s *Store) UpsertUserInfo(info core.UserInfo) error {
	return withImmediate(s.db, func(tx *sqlx.Tx) error {
		cs, err := nextChangestamp(tx)
		if err != nil {
			return err
		}
		info.ID = 1
		info.UpdatedAt = cs
		_, err = tx.NamedExec(`
			INSERT INTO user.user_info
				(id, username, email, uploaded, downloaded, enabled, invites, lumens, join_date, updated_at)
			VALUES
				(:id, :username, :email, :uploaded, :downloaded, :enabled, :invites, :lumens, :join_date, :updated_at)
			ON CONFLICT(id) DO UPDATE SET
				username = excluded.username, email = excluded.email,
				uploaded = excluded.uploaded, downloaded = excluded.downloaded,
				enabled = excluded.enabled, invites = excluded.invites,
				lumens = excluded.lumens, join_date = excluded.join_date,
				updated_at = excluded.updated_at`, info)
		return err
	})
}

// GetUserInfo returns the singleton user_info row, or sql.ErrNoRows if
// UpsertUserInfo hasn't run yet.
func (s *Store) GetUserInfo() (core.UserInfo, error) {
	var info core.UserInfo
	err := s.db.Get(&info, `SELECT * FROM user.user_info WHERE id = 1`)
	if err == sql.ErrNoRows {
		return core.UserInfo{}, err
	}
	return info, err
}
