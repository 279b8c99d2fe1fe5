package spatialmath

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/chenzhekl/goply"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.viam.com/utils"
)

// NewMeshFromPLYFile reads a triangle mesh from a PLY file. The mesh is labeled with the file name
// without its extension.
func NewMeshFromPLYFile(path string) (*Mesh, error) {
	//nolint:gosec
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer utils.UncheckedErrorFunc(f.Close)
	label := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	mesh, err := NewMeshFromPLY(label, bufio.NewReader(f))
	if err != nil {
		return nil, errors.Wrapf(err, "error reading mesh from %q", path)
	}
	return mesh, nil
}

// NewMeshFromPLY reads a triangle mesh from PLY data. Polygonal faces are fanned into triangles.
func NewMeshFromPLY(label string, r io.Reader) (mesh *Mesh, err error) {
	// the PLY parser panics on malformed input
	defer func() {
		if r := recover(); r != nil {
			err = errors.Errorf("error parsing PLY: %v", r)
		}
	}()
	ply := goply.New(r)

	plyVertices := ply.Elements("vertex")
	vertices := make([]r3.Vector, 0, len(plyVertices))
	for i, v := range plyVertices {
		var pt [3]float64
		for j, key := range []string{"x", "y", "z"} {
			val, ok := plyNumber(v[key])
			if !ok {
				return nil, errors.Errorf("vertex %d has no numeric %q property", i, key)
			}
			pt[j] = val
		}
		vertices = append(vertices, r3.Vector{X: pt[0], Y: pt[1], Z: pt[2]})
	}

	var faces [][3]int
	for i, f := range ply.Elements("face") {
		idxIface, ok := f["vertex_indices"]
		if !ok {
			idxIface = f["vertex_index"]
		}
		idxs, ok := plyIndexList(idxIface)
		if !ok || len(idxs) < 3 {
			return nil, errors.Errorf("face %d has no usable vertex index list", i)
		}
		for _, idx := range idxs {
			if idx < 0 || idx >= len(vertices) {
				return nil, errors.Errorf("face %d references vertex %d of %d", i, idx, len(vertices))
			}
		}
		for k := 1; k+1 < len(idxs); k++ {
			faces = append(faces, [3]int{idxs[0], idxs[k], idxs[k+1]})
		}
	}
	return NewMesh(label, vertices, faces), nil
}

func plyNumber(v interface{}) (float64, bool) {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Float32, reflect.Float64:
		return rv.Float(), true
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(rv.Uint()), true
	default:
		return 0, false
	}
}

// plyIndexList converts any list property (e.g. []uint32, []int32, []uint8) to []int.
func plyIndexList(v interface{}) ([]int, bool) {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice {
		return nil, false
	}
	out := make([]int, rv.Len())
	for i := 0; i < rv.Len(); i++ {
		n, ok := plyNumber(rv.Index(i).Interface())
		if !ok {
			return nil, false
		}
		out[i] = int(n)
	}
	return out, true
}

// WritePLY writes the mesh as an ASCII PLY file.
func WritePLY(w io.Writer, m *Mesh) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "ply\nformat ascii 1.0\ncomment %s\n", m.label)
	fmt.Fprintf(bw, "element vertex %d\nproperty float x\nproperty float y\nproperty float z\n", len(m.vertices))
	fmt.Fprintf(bw, "element face %d\nproperty list uchar int vertex_indices\nend_header\n", len(m.faces))
	for _, v := range m.vertices {
		fmt.Fprintf(bw, "%g %g %g\n", v.X, v.Y, v.Z)
	}
	for _, f := range m.faces {
		fmt.Fprintf(bw, "3 %d %d %d\n", f[0], f[1], f[2])
	}
	return bw.Flush()
}
