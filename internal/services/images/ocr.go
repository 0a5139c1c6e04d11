package images

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/precis/internal/common"
	"github.com/ternarybob/precis/internal/interfaces"
)

// TesseractOCR extracts text from images via the tesseract binary.
// When the binary turns out to be missing the engine disables itself
// process-wide instead of failing every page.
type TesseractOCR struct {
	binary   string
	language string
	timeout  time.Duration
	disabled atomic.Bool
	logger   arbor.ILogger
}

var _ interfaces.IOCREngine = (*TesseractOCR)(nil)

// NewTesseractOCR creates an OCR engine backed by tesseract
func NewTesseractOCR(config *common.OCRConfig, timeout time.Duration, logger arbor.ILogger) *TesseractOCR {
	binary := config.Binary
	if binary == "" {
		binary = "tesseract"
	}
	language := config.Language
	if language == "" {
		language = "eng"
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	engine := &TesseractOCR{
		binary:   binary,
		language: language,
		timeout:  timeout,
		logger:   logger,
	}

	if !config.Enabled {
		engine.disabled.Store(true)
	}

	return engine
}

// Available reports whether OCR is currently usable
func (o *TesseractOCR) Available() bool {
	return !o.disabled.Load()
}

// ExtractText runs tesseract over an image file and returns the text.
// A missing binary disables the engine for the rest of the process.
func (o *TesseractOCR) ExtractText(ctx context.Context, imagePath string) (string, error) {
	if o.disabled.Load() {
		return "", common.NewError(common.KindOCRUnavailable, "OCR engine is disabled")
	}

	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	outBase := strings.TrimSuffix(imagePath, filepath.Ext(imagePath)) + "_ocr"
	defer os.Remove(outBase + ".txt")

	cmd := exec.CommandContext(ctx, o.binary, imagePath, outBase, "-l", o.language, "--dpi", "150")
	output, err := cmd.CombinedOutput()
	if err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			o.disabled.Store(true)
			o.logger.Warn().Str("binary", o.binary).Msg("OCR binary not found, disabling OCR for this process")
			return "", common.WrapError(common.KindOCRUnavailable, err, "OCR binary not found: %s", o.binary)
		}
		if ctx.Err() == context.DeadlineExceeded {
			return "", common.WrapError(common.KindTimeout, ctx.Err(), "OCR timed out after %s", o.timeout)
		}
		return "", fmt.Errorf("tesseract failed: %w (output: %s)", err, string(output))
	}

	text, err := os.ReadFile(outBase + ".txt")
	if err != nil {
		return "", fmt.Errorf("failed to read OCR output: %w", err)
	}

	return strings.TrimSpace(string(text)), nil
}
