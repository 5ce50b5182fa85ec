// Package batch expands command line inputs into the list of image files to process.
package batch

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"

	"github.com/MeKo-Tech/tablo/internal/utils"
)

// ErrNoFiles is returned when discovery finds nothing to process.
var ErrNoFiles = errors.New("no image files found")

// Options control directory expansion. Patterns are matched against the base name.
type Options struct {
	Recursive bool
	Include   []string
	Exclude   []string
}

// Discover expands paths into image files. Explicit files are kept in argument order even
// when their extension is not a supported image, so the caller can report them. Directories
// contribute their supported images in lexical order; subdirectories are only entered when
// Recursive is set.
func Discover(paths []string, opts Options) ([]string, error) {
	if err := validatePatterns(opts.Include); err != nil {
		return nil, err
	}
	if err := validatePatterns(opts.Exclude); err != nil {
		return nil, err
	}

	var files []string
	for _, arg := range paths {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, fmt.Errorf("cannot access %s: %w", arg, err)
		}

		if !info.IsDir() {
			if opts.shouldInclude(arg) {
				files = append(files, arg)
			}
			continue
		}

		found, err := discoverInDirectory(arg, opts)
		if err != nil {
			return nil, err
		}
		files = append(files, found...)
	}

	if len(files) == 0 {
		return nil, ErrNoFiles
	}
	return files, nil
}

func discoverInDirectory(dir string, opts Options) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if !opts.Recursive && path != dir {
				return filepath.SkipDir
			}
			return nil
		}
		if utils.IsSupportedImage(path) && opts.shouldInclude(path) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", dir, err)
	}
	slices.Sort(files)
	return files, nil
}

// shouldInclude applies exclude patterns first, then include patterns if any are set.
func (o Options) shouldInclude(path string) bool {
	if matchesAnyPattern(path, o.Exclude) {
		return false
	}
	if len(o.Include) == 0 {
		return true
	}
	return matchesAnyPattern(path, o.Include)
}

func matchesAnyPattern(path string, patterns []string) bool {
	base := filepath.Base(path)
	for _, pattern := range patterns {
		if matched, _ := filepath.Match(pattern, base); matched {
			return true
		}
	}
	return false
}

func validatePatterns(patterns []string) error {
	for _, p := range patterns {
		if _, err := filepath.Match(p, ""); err != nil {
			return fmt.Errorf("invalid pattern %q: %w", p, err)
		}
	}
	return nil
}
