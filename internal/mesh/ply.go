package mesh

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/golang/geo/r3"
)

type plyFormat int

const (
	plyASCII plyFormat = iota
	plyBinaryLE
	plyBinaryBE
)

type plyProperty struct {
	name      string
	typ       string // scalar type, or item type for lists
	countType string // non-empty for list properties
}

type plyElement struct {
	name  string
	count int
	props []plyProperty
}

// ReadPLY parses ASCII and binary PLY files. Only the vertex (x, y, z and
// optional nx, ny, nz) and face (vertex_indices / vertex_index) elements are
// kept; polygons are fan-triangulated.
func ReadPLY(r *bufio.Reader) (*Mesh, error) {
	format, elems, err := readPLYHeader(r)
	if err != nil {
		return nil, err
	}

	m := &Mesh{}
	for _, el := range elems {
		for i := 0; i < el.count; i++ {
			var vals []float64
			var lists [][]int
			if format == plyASCII {
				vals, lists, err = readASCIIRecord(r, el)
			} else {
				order := binary.ByteOrder(binary.LittleEndian)
				if format == plyBinaryBE {
					order = binary.BigEndian
				}
				vals, lists, err = readBinaryRecord(r, el, order)
			}
			if err != nil {
				return nil, fmt.Errorf("%s %d: %w", el.name, i, err)
			}
			switch el.name {
			case "vertex":
				addVertex(m, el, vals)
			case "face":
				for _, poly := range lists {
					for k := 1; k+1 < len(poly); k++ {
						m.Faces = append(m.Faces, [3]int{poly[0], poly[k], poly[k+1]})
					}
				}
			}
		}
	}
	if err := m.validate(); err != nil {
		return nil, err
	}
	return m, nil
}

func readPLYHeader(r *bufio.Reader) (plyFormat, []plyElement, error) {
	line, err := r.ReadString('\n')
	if err != nil || strings.TrimSpace(line) != "ply" {
		return 0, nil, fmt.Errorf("not a PLY file")
	}
	var format plyFormat
	var elems []plyElement
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return 0, nil, fmt.Errorf("truncated PLY header: %w", err)
		}
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		switch fields[0] {
		case "format":
			if len(fields) < 2 {
				return 0, nil, fmt.Errorf("bad format line %q", line)
			}
			switch fields[1] {
			case "ascii":
				format = plyASCII
			case "binary_little_endian":
				format = plyBinaryLE
			case "binary_big_endian":
				format = plyBinaryBE
			default:
				return 0, nil, fmt.Errorf("unsupported PLY format %q", fields[1])
			}
		case "element":
			if len(fields) != 3 {
				return 0, nil, fmt.Errorf("bad element line %q", line)
			}
			n, err := strconv.Atoi(fields[2])
			if err != nil {
				return 0, nil, fmt.Errorf("bad element count %q: %w", fields[2], err)
			}
			elems = append(elems, plyElement{name: fields[1], count: n})
		case "property":
			if len(elems) == 0 {
				return 0, nil, fmt.Errorf("property before element")
			}
			el := &elems[len(elems)-1]
			if len(fields) == 5 && fields[1] == "list" {
				el.props = append(el.props, plyProperty{countType: fields[2], typ: fields[3], name: fields[4]})
			} else if len(fields) == 3 {
				el.props = append(el.props, plyProperty{typ: fields[1], name: fields[2]})
			} else {
				return 0, nil, fmt.Errorf("bad property line %q", line)
			}
		case "end_header":
			return format, elems, nil
		}
	}
}

// maxPLYListLen bounds a list property's declared length. Face lists are
// a handful of indices; anything larger is a corrupt file.
const maxPLYListLen = 1 << 16

func listLen(n float64, limit int) (int, error) {
	if math.IsNaN(n) || n < 0 || n != math.Trunc(n) {
		return 0, fmt.Errorf("invalid list length %v", n)
	}
	if n > float64(limit) {
		return 0, fmt.Errorf("list length %v exceeds %d", n, limit)
	}
	return int(n), nil
}

func readASCIIRecord(r *bufio.Reader, el plyElement) ([]float64, [][]int, error) {
	line, err := r.ReadString('\n')
	if err != nil && !(err == io.EOF && line != "") {
		return nil, nil, err
	}
	fields := strings.Fields(line)
	vals := make([]float64, 0, len(el.props))
	var lists [][]int
	pos := 0
	next := func() (float64, error) {
		if pos >= len(fields) {
			return 0, fmt.Errorf("short record %q", strings.TrimSpace(line))
		}
		v, err := strconv.ParseFloat(fields[pos], 64)
		pos++
		return v, err
	}
	for _, p := range el.props {
		if p.countType == "" {
			v, err := next()
			if err != nil {
				return nil, nil, err
			}
			vals = append(vals, v)
			continue
		}
		n, err := next()
		if err != nil {
			return nil, nil, err
		}
		count, err := listLen(n, min(maxPLYListLen, len(fields)-pos))
		if err != nil {
			return nil, nil, err
		}
		list := make([]int, count)
		for k := range list {
			v, err := next()
			if err != nil {
				return nil, nil, err
			}
			list[k] = int(v)
		}
		vals = append(vals, math.NaN())
		if isFaceIndexProp(p.name) {
			lists = append(lists, list)
		}
	}
	return vals, lists, nil
}

func readBinaryRecord(r io.Reader, el plyElement, order binary.ByteOrder) ([]float64, [][]int, error) {
	vals := make([]float64, 0, len(el.props))
	var lists [][]int
	for _, p := range el.props {
		if p.countType == "" {
			v, err := readScalar(r, p.typ, order)
			if err != nil {
				return nil, nil, err
			}
			vals = append(vals, v)
			continue
		}
		n, err := readScalar(r, p.countType, order)
		if err != nil {
			return nil, nil, err
		}
		count, err := listLen(n, maxPLYListLen)
		if err != nil {
			return nil, nil, err
		}
		list := make([]int, count)
		for k := range list {
			v, err := readScalar(r, p.typ, order)
			if err != nil {
				return nil, nil, err
			}
			list[k] = int(v)
		}
		vals = append(vals, math.NaN())
		if isFaceIndexProp(p.name) {
			lists = append(lists, list)
		}
	}
	return vals, lists, nil
}

func readScalar(r io.Reader, typ string, order binary.ByteOrder) (float64, error) {
	switch typ {
	case "char", "int8":
		var v int8
		err := binary.Read(r, order, &v)
		return float64(v), err
	case "uchar", "uint8":
		var v uint8
		err := binary.Read(r, order, &v)
		return float64(v), err
	case "short", "int16":
		var v int16
		err := binary.Read(r, order, &v)
		return float64(v), err
	case "ushort", "uint16":
		var v uint16
		err := binary.Read(r, order, &v)
		return float64(v), err
	case "int", "int32":
		var v int32
		err := binary.Read(r, order, &v)
		return float64(v), err
	case "uint", "uint32":
		var v uint32
		err := binary.Read(r, order, &v)
		return float64(v), err
	case "float", "float32":
		var v float32
		err := binary.Read(r, order, &v)
		return float64(v), err
	case "double", "float64":
		var v float64
		err := binary.Read(r, order, &v)
		return v, err
	default:
		return 0, fmt.Errorf("unsupported PLY type %q", typ)
	}
}

func isFaceIndexProp(name string) bool {
	return name == "vertex_indices" || name == "vertex_index"
}

func addVertex(m *Mesh, el plyElement, vals []float64) {
	var v, n r3.Vector
	hasNormal := false
	for k, p := range el.props {
		switch p.name {
		case "x":
			v.X = vals[k]
		case "y":
			v.Y = vals[k]
		case "z":
			v.Z = vals[k]
		case "nx":
			n.X, hasNormal = vals[k], true
		case "ny":
			n.Y = vals[k]
		case "nz":
			n.Z = vals[k]
		}
	}
	m.Vertices = append(m.Vertices, v)
	if hasNormal {
		m.Normals = append(m.Normals, n)
	}
}

func (m *Mesh) validate() error {
	if len(m.Vertices) == 0 {
		return fmt.Errorf("mesh has no vertices")
	}
	for i, f := range m.Faces {
		for _, idx := range f {
			if idx < 0 || idx >= len(m.Vertices) {
				return fmt.Errorf("face %d references vertex %d of %d", i, idx, len(m.Vertices))
			}
		}
	}
	return nil
}
