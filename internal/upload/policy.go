package upload

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"path/filepath"
	"sort"
	"strings"
)

type Category string

const (
	CategoryPDF   Category = "pdf"
	CategoryImage Category = "image"
)

var (
	ErrEmpty          = errors.New("empty file")
	ErrTooLarge       = errors.New("file too large")
	ErrTypeMismatch   = errors.New("declared type does not match content")
	ErrTypeNotAllowed = errors.New("file type not allowed")
	ErrNoFile         = errors.New("no file selected")
)

// Policy holds the configured limits for each upload category.
type Policy struct {
	MaxSize int64
	allowed map[Category]map[string]struct{}
}

func NewPolicy(maxSize int64, imageTypes, pdfTypes []string) Policy {
	return Policy{
		MaxSize: maxSize,
		allowed: map[Category]map[string]struct{}{
			CategoryImage: toSet(imageTypes),
			CategoryPDF:   toSet(pdfTypes),
		},
	}
}

func (p Policy) Allowed(c Category) []string {
	out := make([]string, 0, len(p.allowed[c]))
	for m := range p.allowed[c] {
		out = append(out, m)
	}
	sort.Strings(out)
	return out
}

// File is a validated upload ready to be forwarded to the backend.
type File struct {
	Category Category
	Name     string
	MIME     string
	Type     MediaType
	Data     []byte
}

func (f File) Size() int64 { return int64(len(f.Data)) }

// ValidateHeader opens a multipart file and validates it.
func (p Policy) ValidateHeader(c Category, fh *multipart.FileHeader) (File, error) {
	if fh == nil {
		return File{}, ErrNoFile
	}
	if p.MaxSize > 0 && fh.Size > p.MaxSize {
		return File{}, fmt.Errorf("%w: %d bytes", ErrTooLarge, fh.Size)
	}
	f, err := fh.Open()
	if err != nil {
		return File{}, fmt.Errorf("open upload: %w", err)
	}
	defer f.Close()

	return p.Validate(c, fh.Filename, DeclaredType(fh.Header), f)
}

// Validate reads at most MaxSize bytes, sniffs the content, checks it against
// the declared type and the category allow-list and sanitizes SVG.
func (p Policy) Validate(c Category, name, declared string, r io.Reader) (File, error) {
	allowed, ok := p.allowed[c]
	if !ok {
		return File{}, fmt.Errorf("%w: unknown category %q", ErrTypeNotAllowed, c)
	}

	limit := p.MaxSize
	if limit <= 0 {
		limit = 1 << 30
	}
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return File{}, fmt.Errorf("read upload: %w", err)
	}
	if len(data) == 0 {
		return File{}, ErrEmpty
	}
	if int64(len(data)) > limit {
		return File{}, ErrTooLarge
	}

	head := data
	if len(head) > sniffLen {
		head = head[:sniffLen]
	}
	sniffed, err := DetectHead(head)
	if err != nil {
		return File{}, fmt.Errorf("%w: %v", ErrTypeNotAllowed, err)
	}

	if declared != "" && declared != "application/octet-stream" && declared != sniffed.MIME {
		return File{}, fmt.Errorf("%w: declared %s, actual %s", ErrTypeMismatch, declared, sniffed.MIME)
	}
	if _, ok := allowed[sniffed.MIME]; !ok {
		return File{}, fmt.Errorf("%w: %s", ErrTypeNotAllowed, sniffed.MIME)
	}

	if sniffed.Type == TypeSVG {
		if data, err = SanitizeSVG(data); err != nil {
			return File{}, fmt.Errorf("sanitize svg: %w", err)
		}
	}

	return File{
		Category: c,
		Name:     cleanName(name, sniffed.Type),
		MIME:     sniffed.MIME,
		Type:     sniffed.Type,
		Data:     data,
	}, nil
}

// Message turns a validation error into the text shown next to the field.
func Message(err error) string {
	switch {
	case errors.Is(err, ErrNoFile):
		return "Selecione um arquivo."
	case errors.Is(err, ErrEmpty):
		return "O arquivo está vazio."
	case errors.Is(err, ErrTooLarge):
		return "O arquivo excede o tamanho máximo permitido."
	case errors.Is(err, ErrTypeMismatch):
		return "O conteúdo do arquivo não corresponde ao tipo informado."
	case errors.Is(err, ErrTypeNotAllowed):
		return "Tipo de arquivo não permitido."
	}
	return "Não foi possível processar o arquivo."
}

func cleanName(name string, t MediaType) string {
	base := filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	if base == "." || base == "/" || base == "" {
		base = "arquivo"
	}
	if filepath.Ext(base) == "" {
		base += "." + string(t)
	}
	return base
}

func toSet(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		if v = strings.ToLower(strings.TrimSpace(v)); v != "" {
			set[v] = struct{}{}
		}
	}
	return set
}
