// Package export writes kernel meshes as glTF 2.0 scenes, one mesh and node
// per part.
package export

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/chazu/implicit3d/pkg/kernel"
	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"
)

// ErrNoGeometry is returned when every mesh handed to the exporter is empty.
var ErrNoGeometry = errors.New("export: no geometry to write")

// Document builds a glTF document holding every non-empty mesh. Each mesh
// becomes a node named after its part in the default scene.
func Document(meshes []*kernel.Mesh) (*gltf.Document, error) {
	doc := gltf.NewDocument()
	for _, m := range meshes {
		if m == nil || m.IsEmpty() || m.TriangleCount() == 0 {
			continue
		}
		if len(m.Normals) != len(m.Vertices) {
			return nil, fmt.Errorf("export: part %q has %d normals for %d vertices",
				m.PartName, len(m.Normals)/3, m.VertexCount())
		}

		pos := modeler.WritePosition(doc, triples(m.Vertices))
		nrm := modeler.WriteNormal(doc, triples(m.Normals))
		idx := modeler.WriteIndices(doc, m.Indices)

		doc.Meshes = append(doc.Meshes, &gltf.Mesh{
			Name: m.PartName,
			Primitives: []*gltf.Primitive{{
				Indices:    gltf.Index(idx),
				Attributes: map[string]int{gltf.POSITION: pos, gltf.NORMAL: nrm},
				Mode:       gltf.PrimitiveTriangles,
			}},
		})
		doc.Nodes = append(doc.Nodes, &gltf.Node{
			Name: m.PartName,
			Mesh: gltf.Index(len(doc.Meshes) - 1),
		})
		doc.Scenes[0].Nodes = append(doc.Scenes[0].Nodes, len(doc.Nodes)-1)
	}
	if len(doc.Meshes) == 0 {
		return nil, ErrNoGeometry
	}
	return doc, nil
}

// triples regroups a flat xyz array.
func triples(flat []float32) [][3]float32 {
	out := make([][3]float32, len(flat)/3)
	for i := range out {
		out[i] = [3]float32{flat[3*i], flat[3*i+1], flat[3*i+2]}
	}
	return out
}

// WriteGLTF writes meshes to w as a self-contained JSON glTF file with the
// buffer embedded as a data URI.
func WriteGLTF(w io.Writer, meshes []*kernel.Mesh) error {
	doc, err := Document(meshes)
	if err != nil {
		return err
	}
	for _, b := range doc.Buffers {
		b.EmbeddedResource()
	}
	enc := gltf.NewEncoder(w)
	enc.AsBinary = false
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("export: %w", err)
	}
	return nil
}

// WriteGLB writes meshes to w as binary glTF.
func WriteGLB(w io.Writer, meshes []*kernel.Mesh) error {
	doc, err := Document(meshes)
	if err != nil {
		return err
	}
	enc := gltf.NewEncoder(w)
	enc.AsBinary = true
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("export: %w", err)
	}
	return nil
}

// SaveGLTF writes meshes to path, as binary glTF when the extension is
// .glb and as JSON with an embedded buffer otherwise.
func SaveGLTF(path string, meshes []*kernel.Mesh) error {
	doc, err := Document(meshes)
	if err != nil {
		return err
	}
	if strings.EqualFold(filepath.Ext(path), ".glb") {
		err = gltf.SaveBinary(doc, path)
	} else {
		for _, b := range doc.Buffers {
			b.EmbeddedResource()
		}
		err = gltf.Save(doc, path)
	}
	if err != nil {
		return fmt.Errorf("export: %w", err)
	}
	return nil
}
