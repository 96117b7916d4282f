// Package xmlstream drives a SAX-style handler over an XML document.
// The codecs keep a pushdown stack of node kinds in their handler and
// may abort parsing from inside a callback via Stop.
package xmlstream

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
)

// ErrStopped is the parse result when a handler called Stop without a
// more specific reason.
var ErrStopped = errors.New("parsing stopped by handler")

// Handler receives document events in order. StartElement always
// precedes its matching EndElement; self-closing elements deliver
// both.
type Handler interface {
	StartElement(name xml.Name, attrs []xml.Attr)
	EndElement(name xml.Name)
	Characters(data []byte)
}

// Parser runs one document through a Handler.
type Parser struct {
	stopErr error
	stopped bool
}

// Stop aborts the parse from inside a callback. The reason, when
// non-nil, becomes the error returned by Parse.
func (p *Parser) Stop(reason error) {
	if p.stopped {
		return
	}
	p.stopped = true
	if reason != nil {
		p.stopErr = reason
	} else {
		p.stopErr = ErrStopped
	}
}

// Stopped reports whether Stop has been called.
func (p *Parser) Stopped() bool {
	return p.stopped
}

// Parse streams the document through the handler. It returns the
// handler's stop reason, or a wrapped decoder error on malformed
// input.
func (p *Parser) Parse(r io.Reader, h Handler) error {
	dec := xml.NewDecoder(r)
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			if p.stopped {
				return p.stopErr
			}
			return nil
		}
		if err != nil {
			return fmt.Errorf("xml parse: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			h.StartElement(t.Name, t.Attr)
		case xml.EndElement:
			h.EndElement(t.Name)
		case xml.CharData:
			h.Characters([]byte(t))
		}
		if p.stopped {
			return p.stopErr
		}
	}
}

// Attr returns the value of the named attribute, matching on the local
// name, and whether it was present.
func Attr(attrs []xml.Attr, name string) (string, bool) {
	for _, a := range attrs {
		if a.Name.Local == name {
			return a.Value, true
		}
	}
	return "", false
}
