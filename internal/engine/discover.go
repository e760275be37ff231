package engine

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"go.uber.org/zap"
)

// LocatorError reports a scan root that cannot be used.
type LocatorError struct {
	Path string
	Err  error
}

func (e *LocatorError) Error() string {
	return fmt.Sprintf("locate %s: %v", e.Path, e.Err)
}

func (e *LocatorError) Unwrap() error { return e.Err }

var sourceExts = []string{".rs"}

// discoverFiles returns the files to analyze under root in lexical order.
// A file root is returned as is, whatever its extension. Paths matching an
// exclude glob (relative to root, slash separated) are pruned.
func discoverFiles(ctx context.Context, root string, exclude []string, log *zap.Logger) ([]string, error) {
	fi, err := os.Stat(root)
	if err != nil {
		return nil, &LocatorError{Path: root, Err: err}
	}
	if !fi.IsDir() {
		return []string{root}, nil
	}
	var out []string
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			log.Debug("skipping unreadable entry", zap.String("path", path), zap.Error(err))
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		rel, _ := filepath.Rel(root, path)
		rel = filepath.ToSlash(rel)
		if rel != "." && excluded(rel, d.IsDir(), exclude) {
			if d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		if hasSourceExt(d.Name()) {
			out = append(out, path)
		}
		return nil
	})
	if err != nil {
		if ctx.Err() != nil {
			return out, ctx.Err()
		}
		return nil, &LocatorError{Path: root, Err: err}
	}
	return out, nil
}

func hasSourceExt(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, e := range sourceExts {
		if ext == e {
			return true
		}
	}
	return false
}

// excluded matches rel against the globs. Directories are also tested with
// a trailing "/x" so "**/target/**" prunes target itself.
func excluded(rel string, dir bool, globs []string) bool {
	for _, g := range globs {
		if ok, _ := doublestar.Match(g, rel); ok {
			return true
		}
		if dir {
			if ok, _ := doublestar.Match(g, rel+"/x"); ok {
				return true
			}
		}
	}
	return false
}
