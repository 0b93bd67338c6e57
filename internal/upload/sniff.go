package upload

import (
	"bytes"
	"errors"
	"net/http"
	"strings"
)

type MediaType string

const (
	TypePDF  MediaType = "pdf"
	TypeJPEG MediaType = "jpeg"
	TypePNG  MediaType = "png"
	TypeGIF  MediaType = "gif"
	TypeWEBP MediaType = "webp"
	TypeAVIF MediaType = "avif"
	TypeSVG  MediaType = "svg"
)

var ErrUnknownType = errors.New("unknown media type")

type Sniffed struct {
	Type MediaType
	MIME string
}

const sniffLen = 512

// DetectHead classifies content from its leading bytes.
func DetectHead(head []byte) (Sniffed, error) {
	switch {
	case len(head) == 0:
		return Sniffed{}, ErrUnknownType
	case isPDF(head):
		return Sniffed{Type: TypePDF, MIME: "application/pdf"}, nil
	case isJPEG(head):
		return Sniffed{Type: TypeJPEG, MIME: "image/jpeg"}, nil
	case isPNG(head):
		return Sniffed{Type: TypePNG, MIME: "image/png"}, nil
	case isGIF(head):
		return Sniffed{Type: TypeGIF, MIME: "image/gif"}, nil
	case isWEBP(head):
		return Sniffed{Type: TypeWEBP, MIME: "image/webp"}, nil
	case isAVIF(head):
		return Sniffed{Type: TypeAVIF, MIME: "image/avif"}, nil
	case isSVG(head):
		return Sniffed{Type: TypeSVG, MIME: "image/svg+xml"}, nil
	}
	return Sniffed{}, ErrUnknownType
}

func isPDF(head []byte) bool {
	// some generators put a BOM or whitespace before the header
	return bytes.HasPrefix(bytes.TrimLeft(head, "\xef\xbb\xbf \r\n\t"), []byte("%PDF-"))
}

func isJPEG(head []byte) bool {
	return len(head) > 3 && head[0] == 0xff && head[1] == 0xd8 && head[2] == 0xff
}

func isPNG(head []byte) bool {
	return bytes.HasPrefix(head, []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'})
}

func isGIF(head []byte) bool {
	return bytes.HasPrefix(head, []byte("GIF87a")) || bytes.HasPrefix(head, []byte("GIF89a"))
}

func isWEBP(head []byte) bool {
	return len(head) >= 12 && bytes.Equal(head[:4], []byte("RIFF")) && bytes.Equal(head[8:12], []byte("WEBP"))
}

func isAVIF(head []byte) bool {
	return len(head) >= 12 && string(head[4:8]) == "ftyp" && bytes.Contains(head[8:], []byte("avif"))
}

func isSVG(head []byte) bool {
	trimmed := strings.ToLower(strings.TrimSpace(string(head)))
	if strings.HasPrefix(trimmed, "<svg") {
		return true
	}
	return strings.HasPrefix(trimmed, "<?xml") && strings.Contains(trimmed, "<svg")
}

// DeclaredType strips parameters from a part's Content-Type header.
func DeclaredType(header map[string][]string) string {
	contentType := http.Header(header).Get("Content-Type")
	if idx := strings.Index(contentType, ";"); idx >= 0 {
		contentType = contentType[:idx]
	}
	return strings.ToLower(strings.TrimSpace(contentType))
}
