package formats

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fabworks/modelio/pkg/geom"
	"github.com/fabworks/modelio/pkg/mesh"
	"github.com/fabworks/modelio/pkg/model"
)

func TestExt(t *testing.T) {
	tests := []struct {
		path string
		ext  string
		ok   bool
	}{
		{"part.amf", ".amf", true},
		{"part.AMF", ".amf", true},
		{"part.3mf", ".3mf", true},
		{"part.amf.xml", ".amf", true},
		{"part.stl", ".stl", false},
		{"part", "", false},
	}
	for _, tt := range tests {
		ext, ok := Ext(tt.path)
		if ext != tt.ext || ok != tt.ok {
			t.Errorf("Ext(%q) = %q, %v; want %q, %v", tt.path, ext, ok, tt.ext, tt.ok)
		}
	}
}

func sampleModel(t *testing.T) *model.Model {
	t.Helper()
	vertices := []geom.Vec3{
		{}, {X: 10}, {X: 10, Y: 10}, {Y: 10},
		{Z: 10}, {X: 10, Z: 10}, {X: 10, Y: 10, Z: 10}, {Y: 10, Z: 10},
	}
	indices := [][3]int{
		{0, 1, 2}, {0, 2, 3},
		{4, 6, 5}, {4, 7, 6},
		{0, 5, 1}, {0, 4, 5},
		{1, 5, 6}, {1, 6, 2},
		{2, 6, 7}, {2, 7, 3},
		{3, 7, 4}, {3, 4, 0},
	}
	cube, err := mesh.NewIndexed(vertices, indices)
	if err != nil {
		t.Fatalf("building cube: %v", err)
	}
	m := model.New()
	o := m.AddObject()
	o.AddVolume(cube)
	o.AddInstance()
	return m
}

func TestConvertBetweenFormats(t *testing.T) {
	src := sampleModel(t)
	dir := t.TempDir()

	for _, route := range [][2]string{
		{"a.amf", "b.3mf"},
		{"c.3mf", "d.amf"},
	} {
		t.Run(fmt.Sprintf("%s_to_%s", route[0], route[1]), func(t *testing.T) {
			first := filepath.Join(dir, route[0])
			second := filepath.Join(dir, route[1])

			if err := WriteModel(src, first); err != nil {
				t.Fatalf("WriteModel(%s): %v", route[0], err)
			}
			m, err := ReadModel(first)
			if err != nil {
				t.Fatalf("ReadModel(%s): %v", route[0], err)
			}
			if len(m.Objects) != 1 {
				t.Fatalf("objects = %d, want 1", len(m.Objects))
			}
			if m.Objects[0].InputFile != first {
				t.Errorf("input file = %q, want %q", m.Objects[0].InputFile, first)
			}

			if err := WriteModel(m, second); err != nil {
				t.Fatalf("WriteModel(%s): %v", route[1], err)
			}
			back, err := ReadModel(second)
			if err != nil {
				t.Fatalf("ReadModel(%s): %v", route[1], err)
			}
			if back.Objects[0].Volumes[0].Mesh.FacetCount() != 12 {
				t.Errorf("facets = %d, want 12", back.Objects[0].Volumes[0].Mesh.FacetCount())
			}
		})
	}
}

func TestUnknownFormat(t *testing.T) {
	if _, err := ReadModel("part.stl"); !errors.Is(err, ErrUnknownFormat) {
		t.Errorf("ReadModel(.stl) error = %v, want ErrUnknownFormat", err)
	}
	if err := WriteModel(model.New(), "part.obj"); !errors.Is(err, ErrUnknownFormat) {
		t.Errorf("WriteModel(.obj) error = %v, want ErrUnknownFormat", err)
	}
}

func TestEmptyModelRejected(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.amf")
	if err := WriteModel(model.New(), path); err != nil {
		t.Fatalf("WriteModel: %v", err)
	}
	_, err := ReadModel(path)
	if !errors.Is(err, ErrEmptyModel) {
		t.Errorf("ReadModel(empty) error = %v, want ErrEmptyModel", err)
	}
	if !strings.Contains(err.Error(), "empty.amf") {
		t.Errorf("error should name the file: %v", err)
	}
}
