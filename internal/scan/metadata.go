package scan

import (
	"errors"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"

	"github.com/eargollo/dupfind/internal/filetype"
)

// Describe stats path once and builds its FileRecord (without fingerprint).
// Symlinks are followed for size and timestamps, as the enumerator does.
// A path that no longer exists yields *NotFoundError; any other stat failure
// yields *IOError.
func Describe(fsys afero.Fs, root, path string) (FileRecord, error) {
	info, err := fsys.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return FileRecord{}, &NotFoundError{Path: path, Err: err}
		}
		return FileRecord{}, &IOError{Path: path, Op: "stat", Err: err}
	}

	rec := FileRecord{
		Path:     path,
		RelPath:  relPath(root, path),
		Size:     info.Size(),
		Ext:      filetype.Ext(path),
		Type:     filetype.Detect(path),
		MIME:     filetype.MIME(path),
		InTrash:  inTrash(path),
		Modified: info.ModTime(),
		Links:    1,
	}
	rec.Created, rec.Accessed = rec.Modified, rec.Modified

	if links, ctime, atime, ok := platformStat(info); ok {
		rec.Links = links
		rec.Created = ctime
		rec.Accessed = atime
	}
	rec.IsHardlink = rec.Links > 1

	if ls, ok := fsys.(afero.Lstater); ok {
		if li, lstatCalled, err := ls.LstatIfPossible(path); err == nil && lstatCalled {
			rec.IsSymlink = li.Mode()&fs.ModeSymlink != 0
		}
	}
	return rec, nil
}

// inTrash reports whether any path component is a desktop trash folder.
func inTrash(path string) bool {
	for _, part := range strings.Split(filepath.ToSlash(path), "/") {
		if strings.HasPrefix(part, ".Trash") {
			return true
		}
	}
	return false
}
