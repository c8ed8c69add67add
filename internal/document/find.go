package document

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	derrors "github.com/Aman-CERP/docrag/internal/errors"
)

// Find walks root recursively and returns supported files in lexical order.
// Hidden directories are skipped.
func Find(root string) ([]string, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, derrors.New(derrors.ErrCodeConfigInvalid,
			fmt.Sprintf("document root not accessible: %s", root), err).
			WithStage(derrors.StageLoad).
			WithDetail("path", root).
			WithSuggestion("Set paths.docs_path or DOCRAG_DOCS_PATH to an existing directory")
	}
	if !info.IsDir() {
		if _, ok := FormatOf(root); ok {
			return []string{root}, nil
		}
		return nil, derrors.New(derrors.ErrCodeConfigInvalid,
			fmt.Sprintf("document root is neither a directory nor a supported file: %s", root), nil).
			WithStage(derrors.StageLoad).
			WithDetail("path", root)
	}

	var paths []string
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// Unreadable subtrees are skipped like unreadable files.
			if d != nil && d.IsDir() && path != root {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			if path != root && strings.HasPrefix(d.Name(), ".") {
				return fs.SkipDir
			}
			return nil
		}
		if _, ok := FormatOf(path); ok {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, derrors.New(derrors.ErrCodeDocumentLoad, "walk document root", err).
			WithStage(derrors.StageLoad).
			WithDetail("path", root)
	}

	sort.Strings(paths)
	return paths, nil
}
