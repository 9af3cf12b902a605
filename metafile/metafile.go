// Package metafile decodes a bencoded torrent metafile into the file
// layout rows it describes, per the contiguity invariant enforced by
// lib/store.
package metafile

import (
	"errors"
	"fmt"

	"github.com/btncache/mirror/bencode"
	"github.com/btncache/mirror/core"
)

// ErrNotDict, ErrMissingInfo, ErrMissingName are returned when the decoded
// bencode value doesn't have the shape of a metafile.
var (
	ErrNotDict     = errors.New("metafile: top-level value is not a dict")
	ErrMissingInfo = errors.New("metafile: missing info dict")
	ErrMissingName = errors.New("metafile: missing info.name")
)

// Decode parses raw as a bencoded metafile and returns the FileInfo rows it
// describes for torrentID, in file order, satisfying the layout contiguity
// invariant: each file's Start equals the previous file's Stop, the first
// file's Start is 0.
func Decode(raw []byte, torrentID int64) ([]core.FileInfo, error) {
	v, err := bencode.Decode(raw)
	if err != nil {
		return nil, fmt.Errorf("decode bencode: %w", err)
	}
	top, ok := bencode.Dict(v)
	if !ok {
		return nil, ErrNotDict
	}
	infoVal, ok := top["info"]
	if !ok {
		return nil, ErrMissingInfo
	}
	info, ok := bencode.Dict(infoVal)
	if !ok {
		return nil, ErrMissingInfo
	}
	nameVal, ok := info["name"]
	if !ok {
		return nil, ErrMissingName
	}
	name, ok := bencode.Bytes(nameVal)
	if !ok {
		return nil, ErrMissingName
	}

	filesVal, ok := info["files"]
	if !ok {
		return singleFileLayout(torrentID, name, info)
	}
	files, ok := bencode.List(filesVal)
	if !ok {
		return nil, fmt.Errorf("metafile: info.files is not a list")
	}
	return multiFileLayout(torrentID, name, files)
}

func singleFileLayout(torrentID int64, name []byte, info map[string]interface{}) ([]core.FileInfo, error) {
	lengthVal, ok := info["length"]
	if !ok {
		return nil, fmt.Errorf("metafile: missing info.length in single-file mode")
	}
	length, ok := bencode.Int(lengthVal)
	if !ok {
		return nil, fmt.Errorf("metafile: info.length is not an integer")
	}
	return []core.FileInfo{{
		TorrentID: torrentID,
		Index:     0,
		Path:      name,
		Start:     0,
		Stop:      length,
	}}, nil
}

func multiFileLayout(torrentID int64, name []byte, entries []interface{}) ([]core.FileInfo, error) {
	layout := make([]core.FileInfo, 0, len(entries))
	var offset int64
	for i, entryVal := range entries {
		entry, ok := bencode.Dict(entryVal)
		if !ok {
			return nil, fmt.Errorf("metafile: info.files[%d] is not a dict", i)
		}
		lengthVal, ok := entry["length"]
		if !ok {
			return nil, fmt.Errorf("metafile: info.files[%d] missing length", i)
		}
		length, ok := bencode.Int(lengthVal)
		if !ok {
			return nil, fmt.Errorf("metafile: info.files[%d] length is not an integer", i)
		}
		pathVal, ok := entry["path"]
		if !ok {
			return nil, fmt.Errorf("metafile: info.files[%d] missing path", i)
		}
		pathParts, ok := bencode.List(pathVal)
		if !ok {
			return nil, fmt.Errorf("metafile: info.files[%d] path is not a list", i)
		}
		path, err := joinPath(name, pathParts)
		if err != nil {
			return nil, fmt.Errorf("metafile: info.files[%d]: %w", i, err)
		}
		start := offset
		stop := start + length
		layout = append(layout, core.FileInfo{
			TorrentID: torrentID,
			Index:     i,
			Path:      path,
			Start:     start,
			Stop:      stop,
		})
		offset = stop
	}
	return layout, nil
}

// joinPath builds name + "/" + join(parts, "/") as raw bytes, with no text
// decoding of the path components.
func joinPath(name []byte, parts []interface{}) ([]byte, error) {
	out := make([]byte, 0, len(name)+1)
	out = append(out, name...)
	for _, p := range parts {
		b, ok := bencode.Bytes(p)
		if !ok {
			return nil, fmt.Errorf("path component is not a byte string")
		}
		out = append(out, '/')
		out = append(out, b...)
	}
	return out, nil
}
