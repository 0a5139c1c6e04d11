package models

import (
	"time"
)

// ImageFormat is the encoding of an extracted page image
type ImageFormat string

const (
	ImageFormatPNG  ImageFormat = "png"
	ImageFormatJPEG ImageFormat = "jpeg"
	ImageFormatTIFF ImageFormat = "tiff"
)

// ExtractedImage records one page rendered to an image during extraction
type ExtractedImage struct {
	ID          string      `json:"id" badgerhold:"key"`
	DocumentID  string      `json:"document_id" badgerhold:"index"`
	Page        int         `json:"page"`
	Format      ImageFormat `json:"format"`
	StoragePath string      `json:"storage_path"`
	Width       int         `json:"width"`
	Height      int         `json:"height"`
	SizeBytes   int64       `json:"size_bytes"`
	DPI         int         `json:"dpi"`
	OCRText     string      `json:"ocr_text,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
}

// ImageExtractionResult is the outcome of extracting images for a document.
// Aborted is set when consecutive page failures crossed the abort threshold;
// the images extracted before the abort are still returned.
type ImageExtractionResult struct {
	Images      []ExtractedImage `json:"images"`
	PagesTotal  int              `json:"pages_total"`
	PagesFailed int              `json:"pages_failed"`
	Aborted     bool             `json:"aborted"`
}
