// Copyright (c) 2016-2019 Uber Technologies, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package config defines the on-disk config.yaml schema read by every
// binary in this module: gateway credentials, bucket rates, and cache
// directory layout.
package config

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"

	"github.com/btncache/mirror/utils/configutil"
)

// Default bucket parameters, per config.yaml §6.
const (
	DefaultTokenRate      = 20
	DefaultTokenPeriod    = 100
	DefaultAPITokenRate   = 150
	DefaultAPITokenPeriod = 3600
)

// DefaultSite and DefaultRPCURL match original_source/btn/__init__.py's
// API.HOST and API.API_HOST/API_PATH.
const (
	DefaultSite   = "broadcasthe.net"
	DefaultRPCURL = "https://api.broadcasthe.net/"
)

// Config is the top-level config.yaml schema.
type Config struct {
	// CacheDir roots the filesystem layout: metadata.db, user.db, and
	// torrents/<id>.torrent. Defaults to $HOME/.btn.
	CacheDir string `yaml:"cache_dir"`

	// Key is the API key sent as the first RPC parameter.
	Key string `yaml:"key"`

	// Auth, AuthKey, PassKey are session/tracker credentials used when
	// building torrent download URLs and the feed URL.
	Auth    string `yaml:"auth"`
	AuthKey string `yaml:"authkey"`
	PassKey string `yaml:"passkey"`

	// TokenRate/TokenPeriod parameterize the generic (HTTP) bucket.
	TokenRate   int `yaml:"token_rate"`
	TokenPeriod int `yaml:"token_period"`

	// APITokenRate/APITokenPeriod parameterize the time-series (API call)
	// bucket.
	APITokenRate   int `yaml:"api_token_rate"`
	APITokenPeriod int `yaml:"api_token_period"`

	// StoreRawTorrent persists metafile bytes to torrents/<id>.torrent in
	// addition to keeping them transiently in memory.
	StoreRawTorrent bool `yaml:"store_raw_torrent"`

	// Site is the tracker hostname used to build torrent download URLs,
	// e.g. "broadcasthe.net".
	Site string `yaml:"site"`

	// RPCURL is the JSON-RPC endpoint invoked for every gateway call.
	RPCURL string `yaml:"rpc_url"`
}

// ErrMissingCredentials is returned by RequireCredentials when a
// scraper-required field is unset.
var ErrMissingCredentials = errors.New("config: missing key, authkey, or passkey")

func (c Config) applyDefaults() Config {
	if c.CacheDir == "" {
		home, err := os.UserHomeDir()
		if err == nil {
			c.CacheDir = filepath.Join(home, ".btn")
		}
	}
	if c.TokenRate == 0 {
		c.TokenRate = DefaultTokenRate
	}
	if c.TokenPeriod == 0 {
		c.TokenPeriod = DefaultTokenPeriod
	}
	if c.APITokenRate == 0 {
		c.APITokenRate = DefaultAPITokenRate
	}
	if c.APITokenPeriod == 0 {
		c.APITokenPeriod = DefaultAPITokenPeriod
	}
	if c.Site == "" {
		c.Site = DefaultSite
	}
	if c.RPCURL == "" {
		c.RPCURL = DefaultRPCURL
	}
	return c
}

// MetadataPath returns the path to the catalog database.
func (c Config) MetadataPath() string {
	return filepath.Join(c.CacheDir, "metadata.db")
}

// UserPath returns the path to the buckets/KV/snatch database.
func (c Config) UserPath() string {
	return filepath.Join(c.CacheDir, "user.db")
}

// TorrentPath returns the path a raw metafile for id is cached at.
func (c Config) TorrentPath(id int64) string {
	return filepath.Join(c.CacheDir, "torrents", strconv.FormatInt(id, 10)+".torrent")
}

// RequireCredentials returns ErrMissingCredentials if any of Key, AuthKey,
// or PassKey is unset. Scrapers that build download URLs or authenticate
// RPC calls require this; read-only store queries don't.
func (c Config) RequireCredentials() error {
	if c.Key == "" || c.AuthKey == "" || c.PassKey == "" {
		return ErrMissingCredentials
	}
	return nil
}

// Load reads and validates a config.yaml file at path, applying defaults
// for any unset bucket parameters.
func Load(path string) (Config, error) {
	var c Config
	if err := configutil.Load(path, &c); err != nil {
		return Config{}, err
	}
	return c.applyDefaults(), nil
}
