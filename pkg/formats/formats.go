// Package formats dispatches model file I/O by extension to the AMF
// and 3MF codecs.
package formats

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/fabworks/modelio/pkg/amf"
	"github.com/fabworks/modelio/pkg/model"
	"github.com/fabworks/modelio/pkg/tmf"
)

// Format errors.
var (
	ErrUnknownFormat = errors.New("unknown model file format")
	ErrEmptyModel    = errors.New("file contains no printable objects")
)

// Ext reports whether the path has a supported model file extension.
func Ext(path string) (string, bool) {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".amf", ".3mf":
		return ext, true
	case ".xml":
		// .amf.xml is the uncompressed AMF double extension.
		if strings.HasSuffix(strings.ToLower(path), ".amf.xml") {
			return ".amf", true
		}
	}
	return ext, false
}

// ReadModel reads the model file at path, chooses the codec by
// extension and post-processes the result: the model must hold at
// least one object, and every object remembers its input file.
func ReadModel(path string) (*model.Model, error) {
	ext, ok := Ext(path)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, path)
	}

	m := model.New()
	var err error
	switch ext {
	case ".amf":
		err = amf.Read(path, m)
	case ".3mf":
		err = tmf.Read(path, m)
	}
	if err != nil {
		return nil, err
	}
	if len(m.Objects) == 0 {
		return nil, fmt.Errorf("%w: %q", ErrEmptyModel, path)
	}
	for _, o := range m.Objects {
		o.InputFile = path
	}
	return m, nil
}

// WriteModel writes the model to path, choosing the codec by
// extension.
func WriteModel(m *model.Model, path string) error {
	ext, ok := Ext(path)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownFormat, path)
	}
	switch ext {
	case ".amf":
		return amf.Write(m, path)
	default:
		return tmf.Write(m, path)
	}
}
