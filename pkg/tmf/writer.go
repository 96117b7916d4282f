package tmf

import (
	"bytes"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/fabworks/modelio/pkg/geom"
	"github.com/fabworks/modelio/pkg/model"
	"github.com/fabworks/modelio/pkg/pack"
)

// Write serializes the model as a 3MF package at path. On failure the
// output file must be treated as invalid by the caller.
func Write(m *model.Model, path string) error {
	arch, err := pack.Open(path, pack.Write)
	if err != nil {
		return fmt.Errorf("tmf: %w", err)
	}
	w := &writer{arch: arch, model: m}
	err = w.produce()
	if cerr := arch.Close(); err == nil && cerr != nil {
		err = fmt.Errorf("tmf: %w", cerr)
	}
	return err
}

// writer buffers XML and flushes it into the currently open archive
// entry once the buffer has reached its capacity, and at the end of
// each entry.
type writer struct {
	arch  *pack.Archive
	model *model.Model
	buf   bytes.Buffer

	// materialIndex maps model material ids to their position in the
	// emitted <basematerials> group.
	materialIndex map[string]int
}

func (w *writer) produce() error {
	if err := w.writeTypes(); err != nil {
		return err
	}
	if err := w.writeRelationships(); err != nil {
		return err
	}
	return w.writeModel()
}

func (w *writer) append(s string) {
	w.buf.WriteString(s)
}

func (w *writer) appendf(format string, args ...any) {
	fmt.Fprintf(&w.buf, format, args...)
}

// flush writes the buffer into the open entry and resets it.
func (w *writer) flush() error {
	if w.buf.Len() == 0 {
		return nil
	}
	if err := w.arch.EntryWrite(w.buf.Bytes()); err != nil {
		return fmt.Errorf("tmf: %w", err)
	}
	w.buf.Reset()
	return nil
}

// maybeFlush flushes mid-entry once the buffer has reached its
// capacity.
func (w *writer) maybeFlush() error {
	if w.buf.Len() < writeBufferMaxCapacity {
		return nil
	}
	return w.flush()
}

func (w *writer) writeTypes() error {
	if err := w.arch.EntryOpen(contentTypesEntry); err != nil {
		return fmt.Errorf("tmf: %w", err)
	}
	w.append("<?xml version=\"1.0\" encoding=\"UTF-8\"?>\n")
	w.append("<Types xmlns=\"" + contentTypesNS + "\">\n")
	w.append("<Default Extension=\"rels\" ContentType=\"application/vnd.openxmlformats-package.relationships+xml\"/>\n")
	w.append("<Default Extension=\"model\" ContentType=\"application/vnd.ms-package.3dmanufacturing-3dmodel+xml\"/>\n")
	w.append("</Types>\n")
	if err := w.flush(); err != nil {
		return err
	}
	return w.arch.EntryClose()
}

func (w *writer) writeRelationships() error {
	if err := w.arch.EntryOpen(relsEntry); err != nil {
		return fmt.Errorf("tmf: %w", err)
	}
	w.append("<?xml version=\"1.0\" encoding=\"UTF-8\"?>\n")
	w.append("<Relationships xmlns=\"" + relationshipsNS + "\">\n")
	w.append("<Relationship Id=\"rel0\" Target=\"/" + modelEntry + "\" Type=\"" + startPartType + "\"/>\n")
	w.append("</Relationships>\n")
	if err := w.flush(); err != nil {
		return err
	}
	return w.arch.EntryClose()
}

func (w *writer) writeModel() error {
	if err := w.arch.EntryOpen(modelEntry); err != nil {
		return fmt.Errorf("tmf: %w", err)
	}

	w.append("<?xml version=\"1.0\" encoding=\"UTF-8\"?>\n")
	w.append("<model unit=\"millimeter\" xml:lang=\"en-US\"")
	w.append(" xmlns=\"" + coreNS + "\"")
	w.append(" xmlns:m=\"" + materialNS + "\"")
	w.append(" xmlns:slic3r=\"" + slic3rNS + "\">\n")

	w.writeMetadata()

	w.append("    <resources>\n")
	w.writeMaterials()
	for i := range w.model.Objects {
		if err := w.writeObject(i); err != nil {
			return err
		}
	}
	w.append("    </resources>\n")

	w.writeBuild()

	w.append("</model>\n")
	if err := w.flush(); err != nil {
		return err
	}
	return w.arch.EntryClose()
}

func (w *writer) writeMetadata() {
	for _, k := range sortedKeys(w.model.Metadata) {
		w.appendf("    <metadata name=\"%s\">%s</metadata>\n", xmlEscape(k), xmlEscape(w.model.Metadata[k]))
	}
	w.append("    <slic3r:metadata type=\"version\">" + producerVersion + "</slic3r:metadata>\n")
}

// writeMaterials emits the base materials group and the private
// per-material settings. Materials without a name attribute cannot be
// represented as <base> elements and are skipped.
func (w *writer) writeMaterials() {
	w.materialIndex = make(map[string]int)
	if len(w.model.Materials) == 0 {
		return
	}

	ids := make([]string, 0, len(w.model.Materials))
	for id := range w.model.Materials {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	written := false
	for _, id := range ids {
		mat := w.model.Materials[id]
		if id == "" || mat.Attributes["name"] == "" {
			continue
		}
		if !written {
			w.append("    <basematerials id=\"1\">\n")
			written = true
		}
		w.materialIndex[id] = len(w.materialIndex)
		color := mat.Attributes["displaycolor"]
		if color == "" {
			// Color is mandatory on a base material.
			color = "#000000FF"
		}
		w.appendf("        <base name=\"%s\" displaycolor=\"%s\"/>\n",
			xmlEscape(mat.Attributes["name"]), xmlEscape(color))
	}
	if !written {
		return
	}
	w.append("    </basematerials>\n")

	w.append("    <slic3r:materials>\n")
	for _, id := range ids {
		idx, ok := w.materialIndex[id]
		if !ok {
			continue
		}
		mat := w.model.Materials[id]
		for _, key := range mat.Config.Keys() {
			v, _ := mat.Config.Serialize(key)
			w.appendf("        <slic3r:material mid=\"%d\" type=\"%s\">%s</slic3r:material>\n",
				idx, xmlEscape(key), xmlEscape(v))
		}
	}
	w.append("    </slic3r:materials>\n")
}

func (w *writer) writeObject(index int) error {
	o := w.model.Objects[index]

	w.appendf("        <object id=\"%d\" type=\"model\"", index+1)
	if o.PartNumber != -1 {
		w.appendf(" partnumber=\"%d\"", o.PartNumber)
	}
	if o.Name != "" {
		w.appendf(" name=\"%s\"", xmlEscape(o.Name))
	}
	w.append(">\n")

	for _, key := range o.Config.Keys() {
		v, _ := o.Config.Serialize(key)
		w.appendf("        <slic3r:object type=\"%s\" config=\"%s\"/>\n", xmlEscape(key), xmlEscape(v))
	}

	w.append("            <mesh>\n")
	w.append("                <vertices>\n")

	// All volumes of the object share one vertex table; remember the
	// running offset so facet indices can be rebased per volume.
	offsets := make([]int, len(o.Volumes))
	numVertices := 0
	for i, v := range o.Volumes {
		v.Mesh.RequireSharedVertices()
		offsets[i] = numVertices
		for _, vert := range v.Mesh.SharedVertices() {
			// Subtract the accumulated centering translation so that
			// re-import restores the part's original coordinates; the
			// build item transform re-adds it.
			w.appendf("                    <vertex x=\"%s\" y=\"%s\" z=\"%s\"/>\n",
				ftoa(vert.X-o.OriginTranslation.X),
				ftoa(vert.Y-o.OriginTranslation.Y),
				ftoa(vert.Z-o.OriginTranslation.Z))
			if err := w.maybeFlush(); err != nil {
				return err
			}
		}
		numVertices += len(v.Mesh.SharedVertices())
	}
	w.append("                </vertices>\n")

	w.append("                <triangles>\n")
	starts := make([]int, len(o.Volumes))
	numTriangles := 0
	for i, v := range o.Volumes {
		starts[i] = numTriangles
		for _, tri := range v.Mesh.FacetIndices() {
			w.appendf("                    <triangle v1=\"%d\" v2=\"%d\" v3=\"%d\"",
				tri[0]+offsets[i], tri[1]+offsets[i], tri[2]+offsets[i])
			if v.MaterialID != "" {
				if idx, ok := w.materialIndex[v.MaterialID]; ok {
					w.appendf(" pid=\"1\" p1=\"%d\"", idx)
				} else {
					// Legacy id not present in the material map.
					w.appendf(" pid=\"1\" p1=\"%s\"", xmlEscape(v.MaterialID))
				}
			}
			w.append("/>\n")
			numTriangles++
			if err := w.maybeFlush(); err != nil {
				return err
			}
		}
	}
	w.append("                </triangles>\n")

	w.append("                <slic3r:volumes>\n")
	for i, v := range o.Volumes {
		end := numTriangles - 1
		if i < len(o.Volumes)-1 {
			end = starts[i+1] - 1
		}
		modifier := "0"
		if v.Modifier {
			modifier = "1"
		}
		w.appendf("                    <slic3r:volume ts=\"%d\" te=\"%d\" modifier=\"%s\">\n",
			starts[i], end, modifier)
		for _, key := range v.Config.Keys() {
			val, _ := v.Config.Serialize(key)
			w.appendf("                        <slic3r:metadata type=\"%s\" config=\"%s\"/>\n",
				xmlEscape(key), xmlEscape(val))
		}
		w.append("                    </slic3r:volume>\n")
	}
	w.append("                </slic3r:volumes>\n")

	w.append("            </mesh>\n")
	w.append("        </object>\n")
	return w.maybeFlush()
}

// writeBuild emits one item per instance, composing the placement
// transform from the instance rotation, scale and offset plus the
// object's origin translation.
func (w *writer) writeBuild() {
	w.append("    <build>\n")
	for i, o := range w.model.Objects {
		for _, inst := range o.Instances {
			t := geom.ComposeZ(inst.Rotation, inst.ScalingFactor, inst.Offset, o.OriginTranslation)
			w.appendf("        <item objectid=\"%d\" transform=\"%s\"/>\n", i+1, t.String())
		}
	}
	w.append("    </build>\n")
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func ftoa(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// xmlEscape escapes text for element content and attribute values.
var xmlEscape = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
).Replace
