package upload

import (
	"bytes"
	"errors"
	"regexp"
)

var (
	scriptTagPattern  = regexp.MustCompile(`(?is)<\s*script[\s>].*?<\s*/\s*script\s*>`)
	eventAttrPattern  = regexp.MustCompile(`(?is)\son[a-z]+\s*=\s*("[^"]*"|'[^']*')`)
	jsHrefPattern     = regexp.MustCompile(`(?is)\s(xlink:)?href\s*=\s*("\s*javascript:[^"]*"|'\s*javascript:[^']*')`)
	foreignObjPattern = regexp.MustCompile(`(?is)<\s*foreignObject[\s>].*?<\s*/\s*foreignObject\s*>`)
)

// SanitizeSVG drops scripts, inline event handlers, javascript: links and
// embedded HTML from an SVG document.
func SanitizeSVG(input []byte) ([]byte, error) {
	if !bytes.Contains(bytes.ToLower(input), []byte("<svg")) {
		return nil, errors.New("not an svg document")
	}

	clean := scriptTagPattern.ReplaceAll(input, nil)
	clean = foreignObjPattern.ReplaceAll(clean, nil)
	clean = eventAttrPattern.ReplaceAll(clean, nil)
	clean = jsHrefPattern.ReplaceAll(clean, nil)
	return clean, nil
}
