// Package scanner finds the source files below a directory, skipping the
// directories the go command ignores in "./..." patterns.
package scanner

import (
	"io/fs"
	"path/filepath"
	"strings"
)

type FileInfo struct {
	Path string
	Size int64
}

type Scanner struct {
	rootDir    string
	extensions map[string]bool
}

// New returns a scanner for the files under rootDir with one of extensions.
// Without extensions every file matches.
func New(rootDir string, extensions ...string) *Scanner {
	s := &Scanner{rootDir: rootDir}
	if len(extensions) > 0 {
		s.extensions = make(map[string]bool, len(extensions))
		for _, ext := range extensions {
			s.extensions[ext] = true
		}
	}
	return s
}

// Scan walks the tree in lexical order. Below the root it skips testdata,
// vendor, and directories whose name starts with "." or "_".
func (s *Scanner) Scan() ([]FileInfo, error) {
	var files []FileInfo
	err := filepath.WalkDir(s.rootDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != s.rootDir && skipDir(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		if !s.isTargetFile(path) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		files = append(files, FileInfo{Path: path, Size: info.Size()})
		return nil
	})
	return files, err
}

// Paths is Scan without the sizes.
func (s *Scanner) Paths() ([]string, error) {
	files, err := s.Scan()
	paths := make([]string, len(files))
	for i, f := range files {
		paths[i] = f.Path
	}
	return paths, err
}

func skipDir(name string) bool {
	return name == "testdata" || name == "vendor" ||
		strings.HasPrefix(name, ".") || strings.HasPrefix(name, "_")
}

func (s *Scanner) isTargetFile(path string) bool {
	if s.extensions == nil {
		return true
	}
	return s.extensions[filepath.Ext(path)]
}
