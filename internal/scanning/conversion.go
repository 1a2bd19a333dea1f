package scanning

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"  // Register GIF decoder
	_ "image/jpeg" // Register JPEG decoder
	"image/png"
	"net/http"
	"strings"

	"github.com/gen2brain/go-fitz"
	"github.com/gen2brain/heic"
)

// textExtractionPrompt is the shared prompt used by the vision model backends
const textExtractionPrompt = `You are reading a scanned identity document (for example an identity card, family card, passport or driving license). Transcribe every line of printed text exactly as it appears, top to bottom and left to right.

Return ONLY valid JSON in this exact format:
{
  "lines": ["first line", "second line"]
}

Important:
- Keep the original spelling, capitalization and punctuation
- One array entry per printed line; do not merge or split lines
- Do not translate, summarize or correct the text
- Do not include any text before or after the JSON
- Do not use markdown code blocks`

// pdfToImage renders the first page of a PDF as a PNG image
func pdfToImage(pdfData []byte) ([]byte, error) {
	doc, err := fitz.NewFromMemory(pdfData)
	if err != nil {
		return nil, fmt.Errorf("opening PDF: %w", err)
	}
	defer doc.Close()

	img, err := doc.Image(0)
	if err != nil {
		return nil, fmt.Errorf("rendering PDF page: %w", err)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encoding PNG: %w", err)
	}

	return buf.Bytes(), nil
}

// imageToPNG converts a GIF or HEIC/HEIF image to PNG
func imageToPNG(imageData []byte, mimeType string) ([]byte, error) {
	var img image.Image
	var err error

	// Go's standard image package doesn't support HEIC
	if isHEICFormat(imageData) || isHEICMimeType(mimeType) {
		img, err = heic.Decode(bytes.NewReader(imageData))
		if err != nil {
			return nil, fmt.Errorf("decoding HEIC/HEIF image: %w", err)
		}
	} else {
		img, _, err = image.Decode(bytes.NewReader(imageData))
		if err != nil {
			return nil, fmt.Errorf("decoding image: %w", err)
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encoding PNG: %w", err)
	}

	return buf.Bytes(), nil
}

// isHEICFormat checks for an ftyp box with a HEIC/HEIF brand at offset 4
func isHEICFormat(data []byte) bool {
	if len(data) < 12 || string(data[4:8]) != "ftyp" {
		return false
	}
	brand := string(data[8:12])
	return brand == "heic" || brand == "heif" || brand == "mif1" || brand == "msf1"
}

// isHEICMimeType checks if the MIME type indicates HEIC/HEIF format
func isHEICMimeType(mimeType string) bool {
	mimeType = strings.ToLower(strings.TrimSpace(mimeType))
	return strings.Contains(mimeType, "heic") || strings.Contains(mimeType, "heif")
}

// DetectContentType sniffs the MIME type of an image payload
func DetectContentType(data []byte) string {
	if isHEICFormat(data) {
		return "image/heic"
	}
	mimeType := http.DetectContentType(data)
	if i := strings.Index(mimeType, ";"); i != -1 {
		mimeType = mimeType[:i]
	}
	return mimeType
}

// PrepareImage makes a payload acceptable to the vision backends. PDF,
// HEIC/HEIF and GIF are converted to PNG; everything else, JPEG and PNG
// included, is returned untouched with its sniffed MIME type.
// Returns the final data, its MIME type and whether conversion occurred.
func PrepareImage(imageData []byte) ([]byte, string, bool, error) {
	if len(imageData) == 0 {
		return nil, "", false, fmt.Errorf("empty image")
	}

	mimeType := DetectContentType(imageData)
	switch {
	case mimeType == "application/pdf":
		pngData, err := pdfToImage(imageData)
		if err != nil {
			return nil, "", false, fmt.Errorf("converting PDF to image: %w", err)
		}
		return pngData, "image/png", true, nil
	case mimeType == "image/gif" || isHEICMimeType(mimeType):
		pngData, err := imageToPNG(imageData, mimeType)
		if err != nil {
			return nil, "", false, fmt.Errorf("converting image to PNG: %w", err)
		}
		return pngData, "image/png", true, nil
	default:
		return imageData, mimeType, false, nil
	}
}

// imageFormat returns the short format name ("png", "jpeg") for a MIME type
func imageFormat(mimeType string) string {
	return strings.TrimPrefix(strings.ToLower(mimeType), "image/")
}
