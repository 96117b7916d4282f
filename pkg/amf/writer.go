package amf

import (
	"bufio"
	"fmt"
	"math"
	"os"
	"sort"

	"github.com/fabworks/modelio/pkg/model"
)

// Write serializes the model to plain AMF XML at path. The archive
// form is never produced. On failure the output file must be treated
// as invalid by the caller.
func Write(m *model.Model, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("amf: %w", err)
	}
	w := bufio.NewWriter(f)

	writeModel(w, m)

	if err := w.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("amf: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("amf: %w", err)
	}
	return nil
}

func writeModel(w *bufio.Writer, m *model.Model) {
	w.WriteString("<?xml version=\"1.0\" encoding=\"UTF-8\"?>\n")
	w.WriteString("<amf unit=\"millimeter\">\n")

	for _, k := range sortedKeys(m.Metadata) {
		fmt.Fprintf(w, "  <metadata type=\"%s\">%s</metadata>\n", xmlEscape(k), xmlEscape(m.Metadata[k]))
	}

	materialIDs := make([]string, 0, len(m.Materials))
	for id := range m.Materials {
		materialIDs = append(materialIDs, id)
	}
	sort.Strings(materialIDs)
	for _, id := range materialIDs {
		writeMaterial(w, id, m.Materials[id])
	}

	for i, o := range m.Objects {
		writeObject(w, i, o)
	}

	writeConstellation(w, m)

	w.WriteString("</amf>\n")
}

func writeMaterial(w *bufio.Writer, id string, mat *model.Material) {
	fmt.Fprintf(w, "  <material id=\"%s\">\n", xmlEscape(id))
	for _, k := range sortedKeys(mat.Attributes) {
		fmt.Fprintf(w, "    <metadata type=\"%s\">%s</metadata>\n", xmlEscape(k), xmlEscape(mat.Attributes[k]))
	}
	for _, k := range mat.Config.Keys() {
		v, _ := mat.Config.Serialize(k)
		fmt.Fprintf(w, "    <metadata type=\"%s%s\">%s</metadata>\n", configPrefix, xmlEscape(k), xmlEscape(v))
	}
	w.WriteString("  </material>\n")
}

func writeObject(w *bufio.Writer, idx int, o *model.Object) {
	fmt.Fprintf(w, "  <object id=\"%d\">\n", idx)
	if o.Name != "" {
		fmt.Fprintf(w, "    <metadata type=\"name\">%s</metadata>\n", xmlEscape(o.Name))
	}
	for _, k := range o.Config.Keys() {
		v, _ := o.Config.Serialize(k)
		fmt.Fprintf(w, "    <metadata type=\"%s%s\">%s</metadata>\n", configPrefix, xmlEscape(k), xmlEscape(v))
	}
	w.WriteString("    <mesh>\n")
	w.WriteString("      <vertices>\n")

	// All volumes share the object vertex table; remember where each
	// volume's vertices start so facet indices can be rebased.
	offsets := make([]int, len(o.Volumes))
	total := 0
	for i, v := range o.Volumes {
		v.Mesh.RequireSharedVertices()
		offsets[i] = total
		for _, vert := range v.Mesh.SharedVertices() {
			// Undo the accumulated centering translation so re-import
			// restores the original coordinates.
			fmt.Fprintf(w, "        <vertex><coordinates><x>%s</x><y>%s</y><z>%s</z></coordinates></vertex>\n",
				ftoa(vert.X-o.OriginTranslation.X),
				ftoa(vert.Y-o.OriginTranslation.Y),
				ftoa(vert.Z-o.OriginTranslation.Z))
		}
		total += len(v.Mesh.SharedVertices())
	}
	w.WriteString("      </vertices>\n")

	for i, v := range o.Volumes {
		if v.MaterialID != "" {
			fmt.Fprintf(w, "      <volume materialid=\"%s\">\n", xmlEscape(v.MaterialID))
		} else {
			w.WriteString("      <volume>\n")
		}
		if v.Name != "" {
			fmt.Fprintf(w, "        <metadata type=\"name\">%s</metadata>\n", xmlEscape(v.Name))
		}
		if v.Modifier {
			w.WriteString("        <metadata type=\"modifier\">1</metadata>\n")
		}
		for _, k := range v.Config.Keys() {
			val, _ := v.Config.Serialize(k)
			fmt.Fprintf(w, "        <metadata type=\"%s%s\">%s</metadata>\n", configPrefix, xmlEscape(k), xmlEscape(val))
		}
		for _, tri := range v.Mesh.FacetIndices() {
			fmt.Fprintf(w, "        <triangle><v1>%d</v1><v2>%d</v2><v3>%d</v3></triangle>\n",
				tri[0]+offsets[i], tri[1]+offsets[i], tri[2]+offsets[i])
		}
		w.WriteString("      </volume>\n")
	}
	w.WriteString("    </mesh>\n")
	w.WriteString("  </object>\n")
}

// writeConstellation emits one constellation holding every instance
// placement. rz is stored in degrees on disk; offsets re-add the
// origin translation undone in the vertex table.
func writeConstellation(w *bufio.Writer, m *model.Model) {
	any := false
	for _, o := range m.Objects {
		if len(o.Instances) > 0 {
			any = true
			break
		}
	}
	if !any {
		return
	}
	w.WriteString("  <constellation id=\"1\">\n")
	for i, o := range m.Objects {
		for _, inst := range o.Instances {
			fmt.Fprintf(w, "    <instance objectid=\"%d\">", i)
			fmt.Fprintf(w, "<deltax>%s</deltax>", ftoa(inst.Offset.X+o.OriginTranslation.X))
			fmt.Fprintf(w, "<deltay>%s</deltay>", ftoa(inst.Offset.Y+o.OriginTranslation.Y))
			fmt.Fprintf(w, "<rz>%s</rz>", ftoa(inst.Rotation*180/math.Pi))
			w.WriteString("</instance>\n")
		}
	}
	w.WriteString("  </constellation>\n")
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
