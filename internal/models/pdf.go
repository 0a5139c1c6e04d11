package models

import (
	"time"
)

// PDFMetadata is the document-information dictionary of a parsed PDF
type PDFMetadata struct {
	Title        string    `json:"title,omitempty"`
	Author       string    `json:"author,omitempty"`
	Subject      string    `json:"subject,omitempty"`
	Keywords     string    `json:"keywords,omitempty"`
	Creator      string    `json:"creator,omitempty"`
	Producer     string    `json:"producer,omitempty"`
	CreationDate time.Time `json:"creation_date,omitempty"`
	ModDate      time.Time `json:"mod_date,omitempty"`
}

// Paragraph is one text block extracted from a page.
// Confidence reflects how likely the block is a real paragraph rather
// than layout noise, in [0,1].
type Paragraph struct {
	ID         string  `json:"id"`
	Text       string  `json:"text"`
	Page       int     `json:"page"`
	Index      int     `json:"index"`
	Confidence float64 `json:"confidence"`
}

// Table is a tabular structure detected on a page
type Table struct {
	ID      string     `json:"id"`
	Page    int        `json:"page"`
	Rows    int        `json:"rows"`
	Columns int        `json:"columns"`
	Cells   [][]string `json:"cells,omitempty"`
	Caption string     `json:"caption,omitempty"`
}

// Page is one parsed page of a PDF
type Page struct {
	Number     int         `json:"number"`
	Text       string      `json:"text"`
	Paragraphs []Paragraph `json:"paragraphs"`
	Tables     []Table     `json:"tables"`
}

// PDFDocument is the full parse result for one PDF file
type PDFDocument struct {
	Metadata  PDFMetadata `json:"metadata"`
	Pages     []Page      `json:"pages"`
	PageCount int         `json:"page_count"`
	SizeBytes int64       `json:"size_bytes"`
}
