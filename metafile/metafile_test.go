package metafile

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDecodeSingleFileMode(t *testing.T) {
	require := require.New(t)

	// {"info": {"name": "solo.mp3", "length": 200}}
	raw := []byte("d4:infod4:name8:solo.mp36:lengthi200eee")

	layout, err := Decode(raw, 7)
	require.NoError(err)
	require.Len(layout, 1)
	require.Equal(int64(7), layout[0].TorrentID)
	require.Equal(0, layout[0].Index)
	require.Equal([]byte("solo.mp3"), layout[0].Path)
	require.EqualValues(0, layout[0].Start)
	require.EqualValues(200, layout[0].Stop)
}

func TestDecodeMultiFileMode(t *testing.T) {
	require := require.New(t)

	// {"info": {"name": "x", "files": [
	//   {"length": 100, "path": ["a"]},
	//   {"length": 50, "path": ["b", "c"]},
	// ]}}
	raw := []byte(
		"d4:infod4:name1:x5:filesl" +
			"d6:lengthi100e4:pathl1:aee" +
			"d6:lengthi50e4:pathl1:b1:cee" +
			"eee")

	layout, err := Decode(raw, 42)
	require.NoError(err)
	require.Len(layout, 2)

	require.Equal(0, layout[0].Index)
	require.Equal([]byte("x/a"), layout[0].Path)
	require.EqualValues(0, layout[0].Start)
	require.EqualValues(100, layout[0].Stop)

	require.Equal(1, layout[1].Index)
	require.Equal([]byte("x/b/c"), layout[1].Path)
	require.EqualValues(100, layout[1].Start)
	require.EqualValues(150, layout[1].Stop)
}

func TestDecodeMultiFileModeContiguity(t *testing.T) {
	require := require.New(t)

	raw := []byte(
		"d4:infod4:name1:x5:filesl" +
			"d6:lengthi10e4:pathl1:aee" +
			"d6:lengthi20e4:pathl1:bee" +
			"d6:lengthi5e4:pathl1:cee" +
			"eee")

	layout, err := Decode(raw, 1)
	require.NoError(err)
	require.Len(layout, 3)
	for i := 1; i < len(layout); i++ {
		require.Equal(layout[i-1].Stop, layout[i].Start)
	}
	require.EqualValues(0, layout[0].Start)
	require.EqualValues(35, layout[len(layout)-1].Stop)
}

func TestDecodeMissingInfo(t *testing.T) {
	require := require.New(t)

	_, err := Decode([]byte("d4:name1:xe"), 1)
	require.ErrorIs(err, ErrMissingInfo)
}

func TestDecodeNotDict(t *testing.T) {
	require := require.New(t)

	_, err := Decode([]byte("i1e"), 1)
	require.ErrorIs(err, ErrNotDict)
}

func TestDecodeMissingName(t *testing.T) {
	require := require.New(t)

	_, err := Decode([]byte("d4:infod6:lengthi1eee"), 1)
	require.ErrorIs(err, ErrMissingName)
}
