package migrations

import (
	"database/sql"

	"github.com/pressly/goose"
)

func init() {
	goose.AddMigration(up00001, down00001)
}

func up00001(tx *sql.Tx) error {
	if _, err := tx.Exec(`CREATE TABLE IF NOT EXISTS series (
		id              integer   PRIMARY KEY,
		imdb_id         text      NOT NULL DEFAULT '',
		tvdb_id         integer   NOT NULL DEFAULT 0,
		tvrage_id       integer   NOT NULL DEFAULT 0,
		name            text      NOT NULL DEFAULT '',
		banner          text      NOT NULL DEFAULT '',
		poster          text      NOT NULL DEFAULT '',
		youtube_trailer text      NOT NULL DEFAULT '',
		updated_at      integer   NOT NULL,
		deleted         integer   NOT NULL DEFAULT 0
	);`); err != nil {
		return err
	}
	if _, err := tx.Exec(`CREATE INDEX IF NOT EXISTS series_updated_at ON series (updated_at);`); err != nil {
		return err
	}

	if _, err := tx.Exec(`CREATE TABLE IF NOT EXISTS torrent_group (
		id         integer PRIMARY KEY,
		category   text    NOT NULL DEFAULT '',
		name       text    NOT NULL DEFAULT '',
		series_id  integer NOT NULL,
		updated_at integer NOT NULL,
		deleted    integer NOT NULL DEFAULT 0
	);`); err != nil {
		return err
	}
	if _, err := tx.Exec(`CREATE INDEX IF NOT EXISTS torrent_group_series_id ON torrent_group (series_id);`); err != nil {
		return err
	}
	if _, err := tx.Exec(`CREATE INDEX IF NOT EXISTS torrent_group_updated_at ON torrent_group (updated_at);`); err != nil {
		return err
	}

	if _, err := tx.Exec(`CREATE TABLE IF NOT EXISTS torrent_entry (
		id                 integer PRIMARY KEY,
		group_id           integer NOT NULL,
		info_hash          text    NOT NULL DEFAULT '',
		codec              text    NOT NULL DEFAULT '',
		container          text    NOT NULL DEFAULT '',
		origin             text    NOT NULL DEFAULT '',
		resolution         text    NOT NULL DEFAULT '',
		source             text    NOT NULL DEFAULT '',
		release_name       text    NOT NULL DEFAULT '',
		size               integer NOT NULL DEFAULT 0,
		time               integer NOT NULL DEFAULT 0,
		seeders            integer NOT NULL DEFAULT 0,
		leechers           integer NOT NULL DEFAULT 0,
		snatched           integer NOT NULL DEFAULT 0,
		raw_torrent_cached integer NOT NULL DEFAULT 0,
		updated_at         integer NOT NULL,
		deleted            integer NOT NULL DEFAULT 0
	);`); err != nil {
		return err
	}
	if _, err := tx.Exec(`CREATE INDEX IF NOT EXISTS torrent_entry_group_id ON torrent_entry (group_id);`); err != nil {
		return err
	}
	if _, err := tx.Exec(`CREATE INDEX IF NOT EXISTS torrent_entry_updated_at ON torrent_entry (updated_at);`); err != nil {
		return err
	}
	if _, err := tx.Exec(`CREATE INDEX IF NOT EXISTS torrent_entry_deleted_id ON torrent_entry (deleted, id);`); err != nil {
		return err
	}

	if _, err := tx.Exec(`CREATE TABLE IF NOT EXISTS file_info (
		torrent_id  integer NOT NULL,
		file_index  integer NOT NULL,
		path        blob    NOT NULL,
		start       integer NOT NULL,
		stop        integer NOT NULL,
		PRIMARY KEY (torrent_id, file_index)
	);`); err != nil {
		return err
	}

	return nil
}

func down00001(tx *sql.Tx) error {
	for _, stmt := range []string{
		`DROP TABLE file_info;`,
		`DROP TABLE torrent_entry;`,
		`DROP TABLE torrent_group;`,
		`DROP TABLE series;`,
	} {
		if _, err := tx.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}
