package extract

import (
	"bytes"
	"regexp"
)

// pdfHeader marks the start of a PDF file.
var pdfHeader = []byte("%PDF-")

// pageObjectPattern matches page object declarations in the PDF body.
var pageObjectPattern = regexp.MustCompile(`/Type\s*/Page[^s]`)

// IsPDF reports whether the bytes look like a PDF file.
func IsPDF(data []byte) bool {
	return bytes.HasPrefix(data, pdfHeader)
}

// CountPages estimates the page count by scanning for page objects.
// Extraction quality does not depend on this number, only quota accounting
// does, so a parse miss falls back to charging a single page.
func CountPages(data []byte) int {
	if len(data) == 0 {
		return 1
	}
	count := len(pageObjectPattern.FindAll(data, -1))
	if count < 1 {
		return 1
	}
	return count
}
