package interfaces

import (
	"context"
)

// RasterOptions control one page render
type RasterOptions struct {
	DPI       int
	Format    string // png or jpeg
	Quality   int    // jpeg only
	MaxWidth  int
	MaxHeight int
}

// IRasterizer renders a single PDF page to an image file and returns
// the output path
type IRasterizer interface {
	RenderPage(ctx context.Context, pdfPath string, page int, outDir string, opts RasterOptions) (string, error)
	Available() bool
}

// IOCREngine extracts text from an image file. Implementations disable
// themselves process-wide when the underlying binary is missing.
type IOCREngine interface {
	ExtractText(ctx context.Context, imagePath string) (string, error)
	Available() bool
}
