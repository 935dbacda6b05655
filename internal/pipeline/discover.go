package pipeline

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/backmassage/hz432/internal/media"
)

// Discover lists every regular file under root, unsupported extensions
// included, so the walker can report them as skipped. Without recursive only
// root's own entries are read. Hidden files and directories (leading dot)
// are ignored. Results are sorted by relative path for deterministic
// processing order.
func Discover(root string, recursive bool) ([]media.File, error) {
	root = filepath.Clean(root)
	var files []media.File

	add := func(path string, d fs.DirEntry) error {
		if !d.Type().IsRegular() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		files = append(files, media.NewFile(root, path, info.Size()))
		return nil
	}

	if !recursive {
		entries, err := os.ReadDir(root)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrDiscovery, err)
		}
		for _, e := range entries {
			if hidden(e.Name()) {
				continue
			}
			if err := add(filepath.Join(root, e.Name()), e); err != nil {
				return nil, fmt.Errorf("%w: %w", ErrDiscovery, err)
			}
		}
	} else {
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if path == root {
				return nil
			}
			if hidden(d.Name()) {
				if d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
			if d.IsDir() {
				return nil
			}
			return add(path, d)
		})
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrDiscovery, err)
		}
	}

	sort.Slice(files, func(i, j int) bool { return files[i].RelPath < files[j].RelPath })
	return files, nil
}

func hidden(name string) bool {
	return strings.HasPrefix(name, ".")
}
