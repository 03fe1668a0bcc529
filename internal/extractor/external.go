package extractor

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// ocrLanguages are the tesseract language packs used for statements.
const ocrLanguages = "fra+eng"

type toolRunner interface {
	LookPath(name string) (string, error)
	Output(ctx context.Context, name string, args ...string) ([]byte, error)
}

type execRunner struct{}

func (execRunner) LookPath(name string) (string, error) {
	return exec.LookPath(name)
}

func (execRunner) Output(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}

// writeTemp stores data in a temporary file for the command line tools.
func writeTemp(data []byte) (string, func(), error) {
	f, err := os.CreateTemp("", "statement-*.pdf")
	if err != nil {
		return "", nil, fmt.Errorf("creating temp file: %w", err)
	}
	cleanup := func() { os.Remove(f.Name()) }
	if _, err := f.Write(data); err != nil {
		f.Close()
		cleanup()
		return "", nil, fmt.Errorf("writing temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		cleanup()
		return "", nil, fmt.Errorf("writing temp file: %w", err)
	}
	return f.Name(), cleanup, nil
}

// pageCount reads the page count reported by pdfinfo, or 0 when unknown.
func pageCount(ctx context.Context, tools toolRunner, path string) int {
	if _, err := tools.LookPath("pdfinfo"); err != nil {
		return 0
	}
	out, err := tools.Output(ctx, "pdfinfo", path)
	if err != nil {
		return 0
	}
	return parsePdfinfoPages(string(out))
}

func parsePdfinfoPages(out string) int {
	for _, line := range strings.Split(out, "\n") {
		if !strings.HasPrefix(line, "Pages:") {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(strings.TrimPrefix(line, "Pages:")))
		if err == nil && n > 0 {
			return n
		}
	}
	return 0
}

// extractWithPdftotext runs pdftotext -layout page by page, keeping page
// boundaries, and falls back to the whole document in one call.
func extractWithPdftotext(ctx context.Context, tools toolRunner, path string, numPages int) ([]string, error) {
	if _, err := tools.LookPath("pdftotext"); err != nil {
		return nil, fmt.Errorf("pdftotext not available: %w", err)
	}

	var pages []string
	for i := 1; i <= numPages; i++ {
		n := strconv.Itoa(i)
		out, err := tools.Output(ctx, "pdftotext", "-layout", "-f", n, "-l", n, path, "-")
		if err != nil {
			continue
		}
		if text := strings.TrimSpace(string(out)); text != "" {
			pages = append(pages, text)
		}
	}
	if len(pages) > 0 {
		return pages, nil
	}

	out, err := tools.Output(ctx, "pdftotext", "-layout", path, "-")
	if err != nil {
		return nil, fmt.Errorf("pdftotext failed: %w", err)
	}
	text := strings.TrimSpace(string(out))
	if text == "" {
		return nil, fmt.Errorf("pdftotext produced no output")
	}
	return []string{text}, nil
}

// extractWithOCR renders every page to a 300 DPI PNG with pdftoppm and
// reads it back with tesseract.
func extractWithOCR(ctx context.Context, tools toolRunner, path string) ([]string, error) {
	for _, tool := range []string{"pdftoppm", "tesseract"} {
		if _, err := tools.LookPath(tool); err != nil {
			return nil, fmt.Errorf("%s not available: %w", tool, err)
		}
	}

	dir, err := os.MkdirTemp("", "statement-ocr-*")
	if err != nil {
		return nil, fmt.Errorf("creating temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	if _, err := tools.Output(ctx, "pdftoppm", "-r", "300", "-png", path, filepath.Join(dir, "page")); err != nil {
		return nil, fmt.Errorf("pdftoppm failed: %w", err)
	}
	images, err := filepath.Glob(filepath.Join(dir, "*.png"))
	if err != nil {
		return nil, err
	}
	if len(images) == 0 {
		return nil, fmt.Errorf("pdftoppm produced no page images")
	}
	sort.Strings(images)

	var pages []string
	for _, img := range images {
		// psm 4: a single column of text of variable sizes.
		out, err := tools.Output(ctx, "tesseract", img, "stdout", "-l", ocrLanguages, "--psm", "4")
		if err != nil {
			continue
		}
		if text := strings.TrimSpace(string(out)); text != "" {
			pages = append(pages, text)
		}
	}
	if len(pages) == 0 {
		return nil, fmt.Errorf("tesseract produced no text from %d page images", len(images))
	}
	return pages, nil
}
