// Package amf reads and writes AMF (Additive Manufacturing Format)
// model files: an XML document, optionally wrapped in a single-entry
// deflate archive. The writer always emits plain XML.
package amf

import (
	"errors"
	"strconv"
	"strings"
)

// AMF errors. Reads fail with a wrapped sentinel so callers can tell
// the archive-shape failures from malformed documents.
var (
	ErrMultipleEntries  = errors.New("amf: archive contains more than one file")
	ErrBadRoot          = errors.New("amf: root element is not <amf>")
	ErrBadUnit          = errors.New("amf: unsupported unit")
	ErrMissingAttribute = errors.New("amf: missing required attribute")
	ErrMissingValue     = errors.New("amf: missing element value")
	ErrBadNumber        = errors.New("amf: malformed numeric value")
	ErrUnknownObject    = errors.New("amf: reference to unknown object id")
)

// zipMagic is the ZIP local file header signature used to detect the
// deflate-archive form.
const zipMagic = "PK\x03\x04"

// configPrefix marks object and volume metadata entries that carry
// serialized print settings.
const configPrefix = "slic3r."

func ftoa(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// xmlEscape escapes text for use in element content and attribute
// values.
var xmlEscape = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
).Replace
