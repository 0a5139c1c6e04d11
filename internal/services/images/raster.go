package images

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/precis/internal/interfaces"
)

// PopplerRasterizer renders PDF pages via the pdftoppm binary
type PopplerRasterizer struct {
	binary string
	logger arbor.ILogger
}

var _ interfaces.IRasterizer = (*PopplerRasterizer)(nil)

// NewPopplerRasterizer creates a rasterizer backed by pdftoppm.
// binary defaults to "pdftoppm" on the PATH.
func NewPopplerRasterizer(binary string, logger arbor.ILogger) *PopplerRasterizer {
	if binary == "" {
		binary = "pdftoppm"
	}
	return &PopplerRasterizer{
		binary: binary,
		logger: logger,
	}
}

// Available reports whether the binary can be found on the PATH
func (r *PopplerRasterizer) Available() bool {
	_, err := exec.LookPath(r.binary)
	return err == nil
}

// RenderPage renders a single 1-indexed page to an image file in outDir
// and returns the output path
func (r *PopplerRasterizer) RenderPage(ctx context.Context, pdfPath string, page int, outDir string, opts interfaces.RasterOptions) (string, error) {
	if page < 1 {
		return "", fmt.Errorf("page must be >= 1, got %d", page)
	}

	outBase := filepath.Join(outDir, fmt.Sprintf("page_%d", page))

	args := []string{
		"-f", strconv.Itoa(page),
		"-l", strconv.Itoa(page),
		"-r", strconv.Itoa(opts.DPI),
		"-singlefile",
	}

	ext := ".png"
	switch opts.Format {
	case "jpeg", "jpg":
		args = append(args, "-jpeg")
		if opts.Quality > 0 {
			args = append(args, "-jpegopt", fmt.Sprintf("quality=%d", opts.Quality))
		}
		ext = ".jpg"
	default:
		args = append(args, "-png")
	}

	if opts.MaxWidth > 0 {
		args = append(args, "-scale-to-x", strconv.Itoa(opts.MaxWidth), "-scale-to-y", "-1")
	}

	args = append(args, pdfPath, outBase)

	cmd := exec.CommandContext(ctx, r.binary, args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		if ctx.Err() != nil {
			return "", fmt.Errorf("rasterization cancelled: %w", ctx.Err())
		}
		return "", fmt.Errorf("pdftoppm failed for page %d: %w (output: %s)", page, err, string(output))
	}

	outPath := outBase + ext
	if _, err := os.Stat(outPath); err != nil {
		return "", fmt.Errorf("pdftoppm produced no output for page %d: %w", page, err)
	}

	return outPath, nil
}
