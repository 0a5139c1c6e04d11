package images

// EstimatePageCount guesses a page count from file size when the real
// count is unknown. Density tiers reflect that large PDFs are usually
// image-heavy with fewer KB per page of text.
func EstimatePageCount(sizeBytes int64) int {
	kb := sizeBytes / 1024

	var pages int64
	switch {
	case kb < 500:
		pages = ceilDiv(kb, 50)
	case kb < 5000:
		pages = ceilDiv(kb, 150)
	default:
		pages = ceilDiv(kb, 300)
	}

	if pages < 1 {
		pages = 1
	}
	if pages > 500 {
		pages = 500
	}
	return int(pages)
}

func ceilDiv(a, b int64) int64 {
	return (a + b - 1) / b
}
