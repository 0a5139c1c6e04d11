// -----------------------------------------------------------------------
// Image Extraction Service - Render PDF pages to images with retry,
// dimension probing and optional OCR
// -----------------------------------------------------------------------

package images

import (
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/precis/internal/common"
	"github.com/ternarybob/precis/internal/interfaces"
	"github.com/ternarybob/precis/internal/models"
)

// abortThreshold is the number of consecutive page failures after which
// extraction gives up on the remaining pages
const abortThreshold = 5

// Extractor renders each PDF page to an image, persists the result to
// object storage and optionally runs OCR over it
type Extractor struct {
	rasterizer interfaces.IRasterizer
	ocr        interfaces.IOCREngine
	objects    interfaces.IObjectStorage
	config     *common.ImagesConfig
	logger     arbor.ILogger
}

// NewExtractor creates an image extraction service
func NewExtractor(rasterizer interfaces.IRasterizer, ocr interfaces.IOCREngine, objects interfaces.IObjectStorage, config *common.ImagesConfig, logger arbor.ILogger) *Extractor {
	return &Extractor{
		rasterizer: rasterizer,
		ocr:        ocr,
		objects:    objects,
		config:     config,
		logger:     logger,
	}
}

// ProgressFunc receives (pagesDone, pagesTotal) after each page
type ProgressFunc func(done, total int)

// ExtractPages renders every page of the PDF at pdfPath. Individual
// page failures are retried once with degraded settings; extraction
// aborts after abortThreshold consecutive failures but still returns
// the images collected so far.
func (e *Extractor) ExtractPages(ctx context.Context, documentID, pdfPath string, pageCount int, onProgress ProgressFunc) (*models.ImageExtractionResult, error) {
	if pageCount <= 0 {
		if info, err := os.Stat(pdfPath); err == nil {
			pageCount = EstimatePageCount(info.Size())
			e.logger.Warn().
				Str("document_id", documentID).
				Int("estimated_pages", pageCount).
				Msg("Page count unknown, estimating from file size")
		}
	}
	if !e.rasterizer.Available() {
		e.logger.Warn().Msg("Rasterizer unavailable, skipping image extraction")
		return &models.ImageExtractionResult{PagesTotal: pageCount}, nil
	}

	tempDir, err := os.MkdirTemp("", "precis-raster-")
	if err != nil {
		return nil, fmt.Errorf("failed to create raster temp dir: %w", err)
	}
	defer os.RemoveAll(tempDir)

	result := &models.ImageExtractionResult{
		Images:     make([]models.ExtractedImage, 0, pageCount),
		PagesTotal: pageCount,
	}

	consecutiveFailures := 0
	for page := 1; page <= pageCount; page++ {
		if err := ctx.Err(); err != nil {
			return result, common.WrapError(common.KindCancelled, err, "image extraction cancelled at page %d", page)
		}

		img, err := e.extractPage(ctx, documentID, pdfPath, page, tempDir)
		if err != nil {
			result.PagesFailed++
			consecutiveFailures++
			e.logger.Warn().
				Err(err).
				Str("document_id", documentID).
				Int("page", page).
				Int("consecutive_failures", consecutiveFailures).
				Msg("Page image extraction failed")

			if consecutiveFailures >= abortThreshold {
				result.Aborted = true
				e.logger.Error().
					Str("document_id", documentID).
					Int("page", page).
					Msg("Aborting image extraction after repeated failures")
				return result, common.NewError(common.KindImageExtractionAborted,
					"aborted after %d consecutive page failures at page %d", consecutiveFailures, page)
			}
			continue
		}

		consecutiveFailures = 0
		result.Images = append(result.Images, *img)
		if onProgress != nil {
			onProgress(page, pageCount)
		}
	}

	return result, nil
}

// extractPage renders one page, retrying once with degraded settings
// when the first attempt fails
func (e *Extractor) extractPage(ctx context.Context, documentID, pdfPath string, page int, tempDir string) (*models.ExtractedImage, error) {
	opts := interfaces.RasterOptions{
		DPI:       e.config.DPI,
		Format:    e.config.Format,
		Quality:   e.config.Quality,
		MaxWidth:  e.config.MaxWidth,
		MaxHeight: e.config.MaxHeight,
	}

	outPath, err := e.rasterizer.RenderPage(ctx, pdfPath, page, tempDir, opts)
	if err != nil {
		// Retry with reduced fidelity before declaring the page failed
		degraded := interfaces.RasterOptions{
			DPI:       minInt(opts.DPI, 96),
			Format:    opts.Format,
			Quality:   minInt(opts.Quality, 80),
			MaxWidth:  minInt(opts.MaxWidth, 1400),
			MaxHeight: minInt(opts.MaxHeight, 1400),
		}
		e.logger.Debug().
			Int("page", page).
			Int("dpi", degraded.DPI).
			Msg("Retrying page render with degraded settings")

		outPath, err = e.rasterizer.RenderPage(ctx, pdfPath, page, tempDir, degraded)
		if err != nil {
			return nil, err
		}
		opts = degraded
	}
	defer os.Remove(outPath)

	width, height := probeDimensions(outPath)

	file, err := os.Open(outPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open rendered page %d: %w", page, err)
	}
	defer file.Close()

	stored, err := e.objects.Save(ctx, file, interfaces.SaveOptions{
		OriginalName: fmt.Sprintf("%s_page_%d%s", documentID, page, filepath.Ext(outPath)),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to store page %d image: %w", page, err)
	}

	img := &models.ExtractedImage{
		ID:          common.NewImageID(),
		DocumentID:  documentID,
		Page:        page,
		Format:      formatFromExt(outPath),
		StoragePath: stored.Path,
		Width:       width,
		Height:      height,
		SizeBytes:   stored.SizeBytes,
		DPI:         opts.DPI,
		CreatedAt:   time.Now(),
	}

	if e.ocr != nil && e.ocr.Available() {
		text, err := e.ocr.ExtractText(ctx, outPath)
		if err != nil {
			e.logger.Debug().Err(err).Int("page", page).Msg("OCR failed for page image")
		} else {
			img.OCRText = text
		}
	}

	return img, nil
}

// probeDimensions decodes just the image header. Failures return zeros
// rather than failing the page.
func probeDimensions(path string) (int, int) {
	file, err := os.Open(path)
	if err != nil {
		return 0, 0
	}
	defer file.Close()

	config, _, err := image.DecodeConfig(file)
	if err != nil {
		return 0, 0
	}
	return config.Width, config.Height
}

func formatFromExt(path string) models.ImageFormat {
	switch filepath.Ext(path) {
	case ".jpg", ".jpeg":
		return models.ImageFormatJPEG
	case ".tif", ".tiff":
		return models.ImageFormatTIFF
	default:
		return models.ImageFormatPNG
	}
}

func minInt(a, b int) int {
	if a == 0 {
		return b
	}
	if b == 0 {
		return a
	}
	if a < b {
		return a
	}
	return b
}
