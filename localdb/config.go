package localdb

// Config configures the two locally embedded SQLite databases that back the
// mirror: the catalog (MetadataSource, "metadata.db") and the rate-limit /
// user / cursor state (UserSource, "user.db"). The two are ATTACHed into one
// connection namespace per spec.md §6, so callers issue queries against
// either schema through a single *sqlx.DB handle.
type Config struct {
	MetadataSource string `yaml:"metadata_source"`
	UserSource     string `yaml:"user_source"`
}

func (c Config) applyDefaults() Config {
	if c.MetadataSource == "" {
		c.MetadataSource = "metadata.db"
	}
	if c.UserSource == "" {
		c.UserSource = "user.db"
	}
	return c
}
