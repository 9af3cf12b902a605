package core

import (
	"fmt"
	"net/url"
	"strings"
)

// MagnetOptions configures optional magnet URI fields.
type MagnetOptions struct {
	Announce string // tr=
	AS       string // as=, percent-encoded link.
}

// MagnetURI builds a magnet link for a torrent, per spec.md §6:
//
//	magnet:?dn=<name>&xt=urn:btih:<hex>&xl=<size>&tr=<announce>...[&as=<link>]
func MagnetURI(name string, hash InfoHash, size int64, opts MagnetOptions) string {
	var b strings.Builder
	b.WriteString("magnet:?dn=")
	b.WriteString(url.QueryEscape(name))
	b.WriteString("&xt=urn:btih:")
	b.WriteString(hash.Hex())
	b.WriteString(fmt.Sprintf("&xl=%d", size))
	if opts.Announce != "" {
		b.WriteString("&tr=")
		b.WriteString(url.QueryEscape(opts.Announce))
	}
	if opts.AS != "" {
		b.WriteString("&as=")
		b.WriteString(url.QueryEscape(opts.AS))
	}
	return b.String()
}

// DownloadURL builds the per-torrent metafile download URL, per spec.md §6:
//
//	https://<site>/torrents.php?action=download&authkey=<authkey>&torrent_pass=<passkey>&id=<id>
func DownloadURL(site, authkey, passkey string, id int64) string {
	v := url.Values{}
	v.Set("action", "download")
	v.Set("authkey", authkey)
	v.Set("torrent_pass", passkey)
	v.Set("id", fmt.Sprintf("%d", id))
	return fmt.Sprintf("https://%s/torrents.php?%s", site, v.Encode())
}
