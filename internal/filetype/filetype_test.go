package filetype

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetect(t *testing.T) {
	cases := map[string]Category{
		"/a/photo.JPG":      Image,
		"clip.mkv":          Video,
		"notes.txt":         Text,
		"report.pdf":        Document,
		"song.flac":         Audio,
		"backup.tar":        Archive,
		"noext":             Unknown,
		"strange.qqqq":      Unknown,
		"/dir.with.dot/x":   Unknown,
		"nested/.hidden.md": Text,
	}
	for path, want := range cases {
		assert.Equal(t, want, Detect(path), path)
	}
}

func TestMIME(t *testing.T) {
	assert.Equal(t, "", MIME("noext"))
	assert.Equal(t, "", MIME("file.qqqq"))
	assert.Contains(t, MIME("index.html"), "text/html")
}

func TestExt(t *testing.T) {
	assert.Equal(t, ".Txt", Ext("/x/A.Txt"))
	assert.Equal(t, "", Ext("/x/Makefile"))
}
