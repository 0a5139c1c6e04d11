package images

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/precis/internal/common"
	"github.com/ternarybob/precis/internal/interfaces"
	"github.com/ternarybob/precis/internal/storage/filesystem"
)

// stubRasterizer renders fake page files, failing pages listed in fail
type stubRasterizer struct {
	fail      map[int]bool
	available bool
	calls     []interfaces.RasterOptions
}

func (s *stubRasterizer) Available() bool { return s.available }

func (s *stubRasterizer) RenderPage(ctx context.Context, pdfPath string, page int, outDir string, opts interfaces.RasterOptions) (string, error) {
	s.calls = append(s.calls, opts)
	if s.fail[page] {
		return "", fmt.Errorf("render failed for page %d", page)
	}
	outPath := filepath.Join(outDir, fmt.Sprintf("page_%d.png", page))
	if err := os.WriteFile(outPath, []byte("fake image data"), 0644); err != nil {
		return "", err
	}
	return outPath, nil
}

type stubOCR struct {
	text      string
	available bool
}

func (s *stubOCR) Available() bool { return s.available }

func (s *stubOCR) ExtractText(ctx context.Context, imagePath string) (string, error) {
	return s.text, nil
}

func newTestExtractor(t *testing.T, raster *stubRasterizer, ocr interfaces.IOCREngine) *Extractor {
	t.Helper()
	objects, err := filesystem.NewObjectStorage(&common.FilesystemConfig{}, t.TempDir(), common.GetLogger())
	require.NoError(t, err)

	config := &common.ImagesConfig{DPI: 150, Format: "png", Quality: 90}
	return NewExtractor(raster, ocr, objects, config, common.GetLogger())
}

func TestExtractPages_AllSucceed(t *testing.T) {
	raster := &stubRasterizer{available: true, fail: map[int]bool{}}
	extractor := newTestExtractor(t, raster, &stubOCR{available: true, text: "scanned text"})

	var progress []int
	result, err := extractor.ExtractPages(context.Background(), "doc_x", "in.pdf", 3, func(done, total int) {
		progress = append(progress, done)
	})
	require.NoError(t, err)

	assert.Len(t, result.Images, 3)
	assert.Equal(t, 0, result.PagesFailed)
	assert.False(t, result.Aborted)
	assert.Equal(t, []int{1, 2, 3}, progress)

	for i, img := range result.Images {
		assert.Equal(t, i+1, img.Page)
		assert.Equal(t, "doc_x", img.DocumentID)
		assert.Equal(t, "scanned text", img.OCRText)
		assert.NotEmpty(t, img.StoragePath)
	}
}

func TestExtractPages_RetriesWithDegradedSettings(t *testing.T) {
	// Every page fails first, so the degraded retry always runs
	raster := &stubRasterizer{available: true, fail: map[int]bool{1: true}}
	extractor := newTestExtractor(t, raster, nil)

	result, err := extractor.ExtractPages(context.Background(), "doc_x", "in.pdf", 1, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, result.PagesFailed)

	// First call at configured fidelity, retry degraded
	require.Len(t, raster.calls, 2)
	assert.Equal(t, 150, raster.calls[0].DPI)
	assert.Equal(t, 96, raster.calls[1].DPI)
	assert.Equal(t, 80, raster.calls[1].Quality)
}

func TestExtractPages_AbortsAfterConsecutiveFailures(t *testing.T) {
	fail := map[int]bool{}
	for p := 1; p <= 10; p++ {
		fail[p] = p >= 3 // pages 3..10 fail both attempts
	}
	raster := &stubRasterizer{available: true, fail: fail}
	extractor := newTestExtractor(t, raster, nil)

	result, err := extractor.ExtractPages(context.Background(), "doc_x", "in.pdf", 10, nil)
	require.Error(t, err)
	assert.Equal(t, common.KindImageExtractionAborted, common.KindOf(err))

	require.NotNil(t, result)
	assert.True(t, result.Aborted)
	// Pages 1 and 2 succeeded before the failure run
	assert.Len(t, result.Images, 2)
	assert.Equal(t, abortThreshold, result.PagesFailed)
}

func TestExtractPages_RasterizerUnavailable(t *testing.T) {
	raster := &stubRasterizer{available: false}
	extractor := newTestExtractor(t, raster, nil)

	result, err := extractor.ExtractPages(context.Background(), "doc_x", "in.pdf", 5, nil)
	require.NoError(t, err)
	assert.Empty(t, result.Images)
	assert.Empty(t, raster.calls)
}

func TestExtractPages_Cancelled(t *testing.T) {
	raster := &stubRasterizer{available: true, fail: map[int]bool{}}
	extractor := newTestExtractor(t, raster, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := extractor.ExtractPages(ctx, "doc_x", "in.pdf", 3, nil)
	require.Error(t, err)
	assert.Equal(t, common.KindCancelled, common.KindOf(err))
}

func TestEstimatePageCount(t *testing.T) {
	tests := []struct {
		name      string
		sizeBytes int64
		want      int
	}{
		{"tiny file is one page", 10 * 1024, 1},
		{"small file at 50KB per page", 400 * 1024, 8},
		{"medium file at 150KB per page", 3000 * 1024, 20},
		{"large file at 300KB per page", 60000 * 1024, 200},
		{"huge file caps at 500", 1024 * 1024 * 1024, 500},
		{"zero size still one page", 0, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, EstimatePageCount(tt.sizeBytes))
		})
	}
}
