package metainfo

import (
	"crypto/sha1"
	"testing"

	"github.com/shammishailaj/gorain/internal/bencode"
	"github.com/stretchr/testify/require"
)

func sha1sum(s string) []byte {
	h := sha1.Sum([]byte(s))
	return h[:]
}

func TestInfoHashMatchesCanonicalEncoding(t *testing.T) {
	pieces := append(append(append(
		sha1sum("hell"), sha1sum("o, w")...), sha1sum("orld")...), sha1sum("!\n")...)

	infoDict := (&bencode.DictBuilder{}).
		Set("length", bencode.NewInt(14)).
		Set("name", bencode.NewStringFromString("abc.txt")).
		Set("piece length", bencode.NewInt(4)).
		Set("pieces", bencode.NewString(pieces)).
		Build()

	root := (&bencode.DictBuilder{}).
		Set("announce", bencode.NewStringFromString("http://tracker.example/announce")).
		Set("info", infoDict).
		Build()

	mi, err := Parse(bencode.EncodeBytes(root))
	require.NoError(t, err)

	want := sha1.Sum(bencode.EncodeBytes(infoDict))
	require.Equal(t, want, mi.Info.InfoHash)
	require.Equal(t, 14, int(mi.Info.TotalSize()))
	require.Equal(t, 4, mi.Info.PiecesAmount())
}

func TestInfoHashStableAcrossRoundTrips(t *testing.T) {
	infoDict := (&bencode.DictBuilder{}).
		Set("length", bencode.NewInt(1)).
		Set("name", bencode.NewStringFromString("a")).
		Set("piece length", bencode.NewInt(1)).
		Set("pieces", bencode.NewString(sha1sum("a"))).
		Build()
	root := (&bencode.DictBuilder{}).Set("announce", bencode.NewStringFromString("http://t")).Set("info", infoDict).Build()

	mi1, err := Parse(bencode.EncodeBytes(root))
	require.NoError(t, err)
	mi2, err := Parse(bencode.EncodeBytes(root))
	require.NoError(t, err)
	require.Equal(t, mi1.Info.InfoHash, mi2.Info.InfoHash)
}

func TestBadPieceTable(t *testing.T) {
	infoDict := (&bencode.DictBuilder{}).
		Set("length", bencode.NewInt(1)).
		Set("name", bencode.NewStringFromString("a")).
		Set("piece length", bencode.NewInt(1)).
		Set("pieces", bencode.NewStringFromString("short")).
		Build()
	_, err := NewInfo(infoDict)
	require.ErrorIs(t, err, ErrBadPieceTable)
}

func TestMultiFileMD5SumIsFileLevelOnly(t *testing.T) {
	file1 := (&bencode.DictBuilder{}).
		Set("length", bencode.NewInt(1)).
		Set("path", bencode.NewList([]bencode.Value{bencode.NewStringFromString("a.txt")})).
		Set("md5sum", bencode.NewStringFromString("deadbeefdeadbeefdead")).
		Build()
	file2 := (&bencode.DictBuilder{}).
		Set("length", bencode.NewInt(2)).
		Set("path", bencode.NewList([]bencode.Value{bencode.NewStringFromString("b.txt")})).
		Build()
	infoDict := (&bencode.DictBuilder{}).
		Set("name", bencode.NewStringFromString("multi")).
		Set("piece length", bencode.NewInt(4)).
		Set("pieces", bencode.NewString(make([]byte, 20))).
		// A parent-level md5sum must never be consulted for per-file data.
		Set("md5sum", bencode.NewStringFromString("ignored")).
		Set("files", bencode.NewList([]bencode.Value{file1, file2})).
		Build()

	info, err := NewInfo(infoDict)
	require.NoError(t, err)
	require.True(t, info.MultiFile)
	require.Len(t, info.Files, 2)
	require.Equal(t, "deadbeefdeadbeefdead", string(info.Files[0].MD5Sum))
	require.Nil(t, info.Files[1].MD5Sum)
	require.EqualValues(t, 3, info.TotalSize())
}

func TestInvalidPathRejected(t *testing.T) {
	file := (&bencode.DictBuilder{}).
		Set("length", bencode.NewInt(1)).
		Set("path", bencode.NewList([]bencode.Value{bencode.NewStringFromString(".."), bencode.NewStringFromString("etc")})).
		Build()
	infoDict := (&bencode.DictBuilder{}).
		Set("name", bencode.NewStringFromString("multi")).
		Set("piece length", bencode.NewInt(4)).
		Set("pieces", bencode.NewString(make([]byte, 20))).
		Set("files", bencode.NewList([]bencode.Value{file})).
		Build()
	_, err := NewInfo(infoDict)
	require.ErrorIs(t, err, ErrInvalidPath)
}

func TestGetTrackersDeduplicates(t *testing.T) {
	mi := &MetaInfo{
		Announce: "http://a",
		AnnounceList: [][]string{
			{"http://a", "http://b"},
			{"http://c"},
		},
	}
	require.Equal(t, []string{"http://a", "http://b", "http://c"}, mi.GetTrackers())
}
