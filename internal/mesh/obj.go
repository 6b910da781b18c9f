package mesh

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/golang/geo/r3"
)

// ReadOBJ parses the v / vn / f records of a Wavefront OBJ file. Normals
// are kept only when every vertex gets exactly one through the faces;
// otherwise Load recomputes them.
func ReadOBJ(r io.Reader) (*Mesh, error) {
	m := &Mesh{}
	var fileNormals []r3.Vector
	var vertexNormal map[int]int

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 || strings.HasPrefix(fields[0], "#") {
			continue
		}
		switch fields[0] {
		case "v", "vn":
			if len(fields) < 4 {
				return nil, fmt.Errorf("line %d: short %s record", lineNo, fields[0])
			}
			var xyz [3]float64
			for k := 0; k < 3; k++ {
				f, err := strconv.ParseFloat(fields[k+1], 64)
				if err != nil {
					return nil, fmt.Errorf("line %d: %w", lineNo, err)
				}
				xyz[k] = f
			}
			vec := r3.Vector{X: xyz[0], Y: xyz[1], Z: xyz[2]}
			if fields[0] == "v" {
				m.Vertices = append(m.Vertices, vec)
			} else {
				fileNormals = append(fileNormals, vec)
			}
		case "f":
			if len(fields) < 4 {
				return nil, fmt.Errorf("line %d: face needs 3 vertices", lineNo)
			}
			poly := make([]int, 0, len(fields)-1)
			for _, ref := range fields[1:] {
				parts := strings.Split(ref, "/")
				vi, err := objIndex(parts[0], len(m.Vertices))
				if err != nil {
					return nil, fmt.Errorf("line %d: %w", lineNo, err)
				}
				poly = append(poly, vi)
				if len(parts) == 3 && parts[2] != "" {
					ni, err := objIndex(parts[2], len(fileNormals))
					if err != nil {
						return nil, fmt.Errorf("line %d: %w", lineNo, err)
					}
					if vertexNormal == nil {
						vertexNormal = make(map[int]int)
					}
					vertexNormal[vi] = ni
				}
			}
			for k := 1; k+1 < len(poly); k++ {
				m.Faces = append(m.Faces, [3]int{poly[0], poly[k], poly[k+1]})
			}
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}

	switch {
	case len(vertexNormal) == len(m.Vertices) && len(m.Vertices) > 0:
		m.Normals = make([]r3.Vector, len(m.Vertices))
		for vi, ni := range vertexNormal {
			m.Normals[vi] = fileNormals[ni]
		}
	case vertexNormal == nil && len(fileNormals) == len(m.Vertices):
		m.Normals = fileNormals
	}

	if err := m.validate(); err != nil {
		return nil, err
	}
	return m, nil
}

// objIndex converts a 1-based (or negative, relative) OBJ index.
func objIndex(s string, n int) (int, error) {
	i, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("bad index %q", s)
	}
	if i < 0 {
		i = n + i + 1
	}
	if i < 1 || i > n {
		return 0, fmt.Errorf("index %d out of range 1..%d", i, n)
	}
	return i - 1, nil
}
