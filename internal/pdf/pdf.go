// Package pdf extracts the raster image of a single PDF page for table extraction.
package pdf

import (
	"errors"
	"fmt"
	"image"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/MeKo-Tech/tablo/internal/utils"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

var (
	// ErrMultiPage is returned when a request names more than one page.
	ErrMultiPage = errors.New("pdf: exactly one page must be selected")
	// ErrPageOutOfRange is returned for a page number outside the document.
	ErrPageOutOfRange = errors.New("pdf: page out of range")
	// ErrNoImages is returned when the selected page carries no embedded image.
	ErrNoImages = errors.New("pdf: page has no embedded images")
)

// Options carries the passwords for encrypted documents.
type Options struct {
	UserPassword  string
	OwnerPassword string
}

func (o Options) configuration() *model.Configuration {
	conf := model.NewDefaultConfiguration()
	conf.UserPW = o.UserPassword
	conf.OwnerPW = o.OwnerPassword
	return conf
}

// PageCount returns the number of pages in filename.
func PageCount(filename string, opts Options) (int, error) {
	f, err := os.Open(filename) //nolint:gosec // G304: Reading user-provided PDF file path is expected
	if err != nil {
		return 0, err
	}
	defer func() { _ = f.Close() }()

	n, err := api.PageCount(f, opts.configuration())
	if err != nil {
		return 0, fmt.Errorf("failed to read PDF %s: %w", filename, err)
	}
	return n, nil
}

// ParsePage parses a single 1-based page number. Ranges and lists are rejected with
// ErrMultiPage.
func ParsePage(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 1, nil
	}
	if strings.ContainsAny(s, ",-") {
		return 0, fmt.Errorf("%w: %q", ErrMultiPage, s)
	}
	page, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid page number: %s", s)
	}
	if page < 1 {
		return 0, fmt.Errorf("%w: %d", ErrPageOutOfRange, page)
	}
	return page, nil
}

// ExtractPageImage extracts the embedded images of one page and returns the largest one,
// which for scanned documents is the page itself.
func ExtractPageImage(filename string, page int, opts Options) (image.Image, error) {
	if page < 1 {
		return nil, fmt.Errorf("%w: %d", ErrPageOutOfRange, page)
	}
	total, err := PageCount(filename, opts)
	if err != nil {
		return nil, err
	}
	if page > total {
		return nil, fmt.Errorf("%w: %d (document has %d pages)", ErrPageOutOfRange, page, total)
	}

	tempDir, err := os.MkdirTemp("", "tablo-pdf-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp directory: %w", err)
	}
	defer func() { _ = os.RemoveAll(tempDir) }()

	if err := api.ExtractImagesFile(filename, tempDir, []string{strconv.Itoa(page)}, opts.configuration()); err != nil {
		return nil, fmt.Errorf("failed to extract images from PDF: %w", err)
	}

	img, err := largestImage(tempDir)
	if err != nil {
		return nil, err
	}
	if img == nil {
		return nil, fmt.Errorf("%w: page %d", ErrNoImages, page)
	}

	b := img.Bounds()
	slog.Debug("PDF page image extracted", "file", filepath.Base(filename), "page", page,
		"width", b.Dx(), "height", b.Dy())
	return img, nil
}

// largestImage decodes every image in dir and keeps the one with the largest pixel area.
// Files that are not images or fail to decode are skipped.
func largestImage(dir string) (image.Image, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read extracted images: %w", err)
	}

	var (
		best     image.Image
		bestArea int
	)
	for _, e := range entries {
		if e.IsDir() || !utils.IsSupportedImage(e.Name()) {
			continue
		}
		img, _, err := utils.LoadImage(filepath.Join(dir, e.Name()))
		if err != nil {
			slog.Debug("Skipping unreadable PDF image", "file", e.Name(), "error", err)
			continue
		}
		b := img.Bounds()
		if area := b.Dx() * b.Dy(); area > bestArea {
			best, bestArea = img, area
		}
	}
	return best, nil
}
