package tmf

import (
	"archive/zip"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fabworks/modelio/pkg/geom"
	"github.com/fabworks/modelio/pkg/mesh"
	"github.com/fabworks/modelio/pkg/model"
)

// cubeMesh builds an axis-aligned cube with the given edge length,
// min corner at origin.
func cubeMesh(t *testing.T, edge float64) *mesh.TriangleMesh {
	t.Helper()
	e := edge
	vertices := []geom.Vec3{
		{X: 0, Y: 0, Z: 0}, {X: e, Y: 0, Z: 0}, {X: e, Y: e, Z: 0}, {X: 0, Y: e, Z: 0},
		{X: 0, Y: 0, Z: e}, {X: e, Y: 0, Z: e}, {X: e, Y: e, Z: e}, {X: 0, Y: e, Z: e},
	}
	indices := [][3]int{
		{0, 1, 2}, {0, 2, 3},
		{4, 6, 5}, {4, 7, 6},
		{0, 5, 1}, {0, 4, 5},
		{1, 5, 6}, {1, 6, 2},
		{2, 6, 7}, {2, 7, 3},
		{3, 7, 4}, {3, 4, 0},
	}
	m, err := mesh.NewIndexed(vertices, indices)
	if err != nil {
		t.Fatalf("building cube: %v", err)
	}
	return m
}

// buildRoundTripModel assembles the round-trip scenario: two objects
// with three and five volumes, one scaled instance each.
func buildRoundTripModel(t *testing.T) *model.Model {
	t.Helper()
	m := model.New()
	m.Metadata["Title"] = "round trip"
	mat := m.AddMaterial("0")
	mat.Attributes["name"] = "PLA"
	mat.Attributes["displaycolor"] = "#1A2B3CFF"
	if err := mat.Config.SetDeserialize("temperature", "215"); err != nil {
		t.Fatalf("material config: %v", err)
	}

	volumeCounts := []int{3, 5}
	for objIdx, count := range volumeCounts {
		o := m.AddObject()
		o.Name = fmt.Sprintf("part-%d", objIdx)
		for v := 0; v < count; v++ {
			cube := cubeMesh(t, 10)
			cube.Translate(float64(v)*15, float64(objIdx)*30, 0)
			vol := o.AddVolume(cube)
			if v == 1 {
				vol.Modifier = true
				if err := vol.Config.SetDeserialize("fill_density", "75"); err != nil {
					t.Fatalf("volume config: %v", err)
				}
			}
			if v == 0 {
				vol.MaterialID = "0"
			}
		}
		inst := o.AddInstance()
		inst.ScalingFactor = 2
	}
	return m
}

func TestWriteReadRoundTrip(t *testing.T) {
	src := buildRoundTripModel(t)
	path := filepath.Join(t.TempDir(), "roundtrip.3mf")
	if err := Write(src, path); err != nil {
		t.Fatalf("Write: %v", err)
	}

	dst := model.New()
	if err := Read(path, dst); err != nil {
		t.Fatalf("Read: %v", err)
	}

	if len(dst.Objects) != len(src.Objects) {
		t.Fatalf("objects = %d, want %d", len(dst.Objects), len(src.Objects))
	}
	for i, so := range src.Objects {
		do := dst.Objects[i]
		if len(do.Volumes) != len(so.Volumes) {
			t.Fatalf("object %d volumes = %d, want %d", i, len(do.Volumes), len(so.Volumes))
		}
		for v := range so.Volumes {
			sv, dv := so.Volumes[v], do.Volumes[v]
			if dv.Modifier != sv.Modifier {
				t.Errorf("object %d volume %d modifier = %v, want %v", i, v, dv.Modifier, sv.Modifier)
			}
			if dv.Mesh.FacetCount() != sv.Mesh.FacetCount() {
				t.Errorf("object %d volume %d facets = %d, want %d",
					i, v, dv.Mesh.FacetCount(), sv.Mesh.FacetCount())
			}
			sk, dk := sv.Config.Keys(), dv.Config.Keys()
			if len(sk) != len(dk) {
				t.Fatalf("object %d volume %d config keys = %v, want %v", i, v, dk, sk)
			}
			for _, key := range sk {
				want, _ := sv.Config.Serialize(key)
				got, ok := dv.Config.Serialize(key)
				if !ok || got != want {
					t.Errorf("object %d volume %d config %q = %q, want %q", i, v, key, got, want)
				}
			}
		}
		if len(do.Instances) != 1 {
			t.Fatalf("object %d instances = %d, want 1", i, len(do.Instances))
		}
		scale := do.Instances[0].ScalingFactor
		if next := math.Nextafter(scale, 2); scale != 2 && next != 2 {
			t.Errorf("object %d instance scale = %v, want 2 within 1 ulp", i, scale)
		}
	}

	if dst.Metadata["Title"] != "round trip" {
		t.Errorf("metadata = %v", dst.Metadata)
	}
	mat := dst.GetMaterial("0")
	if mat == nil {
		t.Fatal("material not restored")
	}
	if mat.Attributes["name"] != "PLA" || mat.Attributes["displaycolor"] != "#1A2B3CFF" {
		t.Errorf("material attributes = %v", mat.Attributes)
	}
	if v, ok := mat.Config.Serialize("temperature"); !ok || v != "215" {
		t.Errorf("material config temperature = %q, %v", v, ok)
	}
	if dst.Objects[0].Volumes[0].MaterialID != "0" {
		t.Errorf("volume material = %q, want 0", dst.Objects[0].Volumes[0].MaterialID)
	}
}

// TestOriginCompensationWrite verifies that vertices are written with
// the origin translation removed and the build transform re-adding it.
func TestOriginCompensationWrite(t *testing.T) {
	m := model.New()
	o := m.AddObject()
	cube := cubeMesh(t, 10)
	cube.Translate(-5, -5, 0) // as if centered
	o.AddVolume(cube)
	o.OriginTranslation = geom.Vec3{X: -45, Y: -45}
	inst := o.AddInstance()
	inst.Offset = geom.Vec2{X: 45, Y: 45}

	path := filepath.Join(t.TempDir(), "origin.3mf")
	if err := Write(m, path); err != nil {
		t.Fatalf("Write: %v", err)
	}

	dst := model.New()
	if err := Read(path, dst); err != nil {
		t.Fatalf("Read: %v", err)
	}

	// The stored vertices have the centering shift undone.
	bb := dst.Objects[0].Volumes[0].Mesh.BoundingBox()
	if math.Abs(bb.Min.X-40) > 1e-9 || math.Abs(bb.Max.X-50) > 1e-9 {
		t.Errorf("vertex bounds = [%v, %v], want [40, 50]", bb.Min.X, bb.Max.X)
	}

	// The emitted transform carries the compensated offset.
	data := readEntry(t, path, modelEntry)
	if !strings.Contains(data, "transform=\"1 0 0 0 1 0 0 0 1 0 0 0\"") {
		t.Errorf("transform attribute not compensated:\n%s", data)
	}
}

func readEntry(t *testing.T, path, name string) string {
	t.Helper()
	zr, err := zip.OpenReader(path)
	if err != nil {
		t.Fatalf("opening package: %v", err)
	}
	defer zr.Close()
	for _, f := range zr.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			t.Fatalf("opening entry: %v", err)
		}
		defer rc.Close()
		var b strings.Builder
		buf := make([]byte, 32<<10)
		for {
			n, err := rc.Read(buf)
			b.Write(buf[:n])
			if err != nil {
				break
			}
		}
		return b.String()
	}
	t.Fatalf("entry %s not found", name)
	return ""
}

func TestPackageLayout(t *testing.T) {
	m := model.New()
	m.AddObject().AddVolume(cubeMesh(t, 10))
	m.AddDefaultInstances()

	path := filepath.Join(t.TempDir(), "layout.3mf")
	if err := Write(m, path); err != nil {
		t.Fatalf("Write: %v", err)
	}

	zr, err := zip.OpenReader(path)
	if err != nil {
		t.Fatalf("output is not a ZIP package: %v", err)
	}
	defer zr.Close()

	var names []string
	for _, f := range zr.File {
		names = append(names, f.Name)
	}
	want := []string{contentTypesEntry, relsEntry, modelEntry}
	if len(names) != len(want) {
		t.Fatalf("entries = %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("entry %d = %q, want %q (creation order)", i, names[i], want[i])
		}
	}

	types := readEntry(t, path, contentTypesEntry)
	if !strings.Contains(types, contentTypesNS) ||
		!strings.Contains(types, "3dmanufacturing-3dmodel+xml") {
		t.Errorf("content types malformed:\n%s", types)
	}
	rels := readEntry(t, path, relsEntry)
	if !strings.Contains(rels, "Id=\"rel0\"") ||
		!strings.Contains(rels, "Target=\"/3D/3dmodel.model\"") {
		t.Errorf("relationships malformed:\n%s", rels)
	}
}

func TestReadMissingEntry(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.3mf")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("creating fixture: %v", err)
	}
	zw := zip.NewWriter(f)
	w, _ := zw.Create(contentTypesEntry)
	w.Write([]byte("<Types/>"))
	zw.Close()
	f.Close()

	m := model.New()
	if err := Read(path, m); !errors.Is(err, ErrMissingEntry) {
		t.Errorf("Read error = %v, want ErrMissingEntry", err)
	}
}

// writePackage assembles a minimal 3MF package around the given model
// part XML.
func writePackage(t *testing.T, modelXML string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "hand.3mf")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("creating package: %v", err)
	}
	zw := zip.NewWriter(f)
	for name, content := range map[string]string{
		contentTypesEntry: "<Types xmlns=\"" + contentTypesNS + "\"/>",
		relsEntry:         "<Relationships xmlns=\"" + relationshipsNS + "\"/>",
		modelEntry:        modelXML,
	} {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("creating entry: %v", err)
		}
		if _, err := w.Write([]byte(content)); err != nil {
			t.Fatalf("writing entry: %v", err)
		}
	}
	zw.Close()
	f.Close()
	return path
}

const modelHeader = `<?xml version="1.0" encoding="UTF-8"?>
<model unit="millimeter" xml:lang="en-US" xmlns="` + coreNS + `" xmlns:m="` + materialNS + `" xmlns:slic3r="` + slic3rNS + `">`

func TestReadBadTransform(t *testing.T) {
	doc := modelHeader + `
<resources>
<object id="1" type="model"><mesh>
<vertices><vertex x="0" y="0" z="0"/><vertex x="1" y="0" z="0"/><vertex x="0" y="1" z="0"/></vertices>
<triangles><triangle v1="0" v2="1" v3="2"/></triangles>
</mesh></object>
</resources>
<build><item objectid="1" transform="1 0 0 0 1 0 0 0 1"/></build>
</model>`
	m := model.New()
	err := Read(writePackage(t, doc), m)
	if !errors.Is(err, geom.ErrAffineTokens) {
		t.Errorf("Read error = %v, want ErrAffineTokens", err)
	}
}

func TestReadMissingVertexAttribute(t *testing.T) {
	doc := modelHeader + `
<resources>
<object id="1" type="model"><mesh>
<vertices><vertex x="0" y="0"/></vertices>
<triangles/>
</mesh></object>
</resources>
<build><item objectid="1"/></build>
</model>`
	m := model.New()
	err := Read(writePackage(t, doc), m)
	if !errors.Is(err, ErrMissingAttribute) {
		t.Errorf("Read error = %v, want ErrMissingAttribute", err)
	}
}

// TestComponentFlattening verifies that a component reference becomes
// a transformed volume of the referencing object, and that objects
// never emitted as build items are dropped.
func TestComponentFlattening(t *testing.T) {
	doc := modelHeader + `
<resources>
<object id="1" type="model"><mesh>
<vertices>
<vertex x="0" y="0" z="0"/><vertex x="10" y="0" z="0"/><vertex x="10" y="10" z="0"/><vertex x="0" y="10" z="0"/>
<vertex x="0" y="0" z="10"/><vertex x="10" y="0" z="10"/><vertex x="10" y="10" z="10"/><vertex x="0" y="10" z="10"/>
</vertices>
<triangles>
<triangle v1="0" v2="1" v3="2"/><triangle v1="0" v2="2" v3="3"/>
<triangle v1="4" v2="6" v3="5"/><triangle v1="4" v2="7" v3="6"/>
<triangle v1="0" v2="5" v3="1"/><triangle v1="0" v2="4" v3="5"/>
<triangle v1="1" v2="5" v3="6"/><triangle v1="1" v2="6" v3="2"/>
<triangle v1="2" v2="6" v3="7"/><triangle v1="2" v2="7" v3="3"/>
<triangle v1="3" v2="7" v3="4"/><triangle v1="3" v2="4" v3="0"/>
</triangles>
</mesh></object>
<object id="2" type="model">
<components><component objectid="1" transform="1 0 0 0 1 0 0 0 1 100 0 0"/></components>
</object>
</resources>
<build><item objectid="2"/></build>
</model>`
	m := model.New()
	if err := Read(writePackage(t, doc), m); err != nil {
		t.Fatalf("Read: %v", err)
	}

	// Object 1 was only referenced, never built: dropped.
	if len(m.Objects) != 1 {
		t.Fatalf("objects = %d, want 1", len(m.Objects))
	}
	o := m.Objects[0]
	if len(o.Volumes) != 1 {
		t.Fatalf("volumes = %d, want 1", len(o.Volumes))
	}
	bb := o.Volumes[0].Mesh.BoundingBox()
	if math.Abs(bb.Min.X-100) > 1e-9 || math.Abs(bb.Max.X-110) > 1e-9 {
		t.Errorf("component transform not applied: bounds [%v, %v]", bb.Min.X, bb.Max.X)
	}
	if len(o.Instances) != 1 {
		t.Errorf("instances = %d, want 1", len(o.Instances))
	}
}

// TestItemScaleOnly documents the established build item behavior: the
// decomposed transform's scale lands on the instance, rotation and
// translation are discarded.
func TestItemScaleOnly(t *testing.T) {
	doc := modelHeader + `
<resources>
<object id="1" type="model"><mesh>
<vertices><vertex x="0" y="0" z="0"/><vertex x="1" y="0" z="0"/><vertex x="0" y="1" z="0"/></vertices>
<triangles><triangle v1="0" v2="1" v3="2"/></triangles>
</mesh></object>
</resources>
<build><item objectid="1" transform="3 0 0 0 3 0 0 0 3 7 8 9"/></build>
</model>`
	m := model.New()
	if err := Read(writePackage(t, doc), m); err != nil {
		t.Fatalf("Read: %v", err)
	}
	inst := m.Objects[0].Instances[0]
	if math.Abs(inst.ScalingFactor-3) > 1e-12 {
		t.Errorf("scale = %v, want 3", inst.ScalingFactor)
	}
	if inst.Offset.X != 0 || inst.Rotation != 0 {
		t.Errorf("rotation/translation should be discarded, got %+v", inst)
	}
}

// TestNoScratchFilesRemain checks the reader's temp extraction is
// cleaned up on success and failure.
func TestNoScratchFilesRemain(t *testing.T) {
	scratch := t.TempDir()
	t.Setenv("TMPDIR", scratch)

	m := model.New()
	src := buildRoundTripModel(t)
	path := filepath.Join(t.TempDir(), "clean.3mf")
	if err := Write(src, path); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := Read(path, m); err != nil {
		t.Fatalf("Read: %v", err)
	}

	bad := writePackage(t, modelHeader+"<resources><object></object></resources></model>")
	if err := Read(bad, model.New()); err == nil {
		t.Fatal("Read of object without id should fail")
	}

	entries, err := os.ReadDir(scratch)
	if err != nil {
		t.Fatalf("reading scratch dir: %v", err)
	}
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), "3dmodel-") {
			t.Errorf("scratch file left behind: %s", e.Name())
		}
	}
}
