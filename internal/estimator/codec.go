package estimator

import (
	"bytes"
	"fmt"
	"image/png"

	"github.com/golang/geo/r3"
	"google.golang.org/protobuf/types/dynamicpb"

	"github.com/banshee-data/posebench/internal/dataset"
	"github.com/banshee-data/posebench/internal/geom"
	"github.com/banshee-data/posebench/internal/mask"
	"github.com/banshee-data/posebench/internal/mesh"
)

func flattenVectors(vs []r3.Vector) []float64 {
	out := make([]float64, 0, 3*len(vs))
	for _, v := range vs {
		out = append(out, v.X, v.Y, v.Z)
	}
	return out
}

func unflattenVectors(vals []float64) ([]r3.Vector, error) {
	if len(vals)%3 != 0 {
		return nil, fmt.Errorf("vector data has %d values, not a multiple of 3", len(vals))
	}
	out := make([]r3.Vector, len(vals)/3)
	for i := range out {
		out[i] = r3.Vector{X: vals[3*i], Y: vals[3*i+1], Z: vals[3*i+2]}
	}
	return out, nil
}

func encodeObject(obj *Object) *dynamicpb.Message {
	m := dynamicpb.NewMessage(schema.resetReq)
	setInt(m, fObjectID, obj.ID)
	setDoubles(m, fPoints, flattenVectors(obj.Points))
	setDoubles(m, fNormals, flattenVectors(obj.Normals))
	tfs := make([]float64, 0, 16*len(obj.SymmetryTFs))
	for _, tf := range obj.SymmetryTFs {
		tfs = append(tfs, tf.T[:]...)
	}
	setDoubles(m, fSymmetryTFs, tfs)
	if obj.Mesh != nil {
		setDoubles(m, fMeshVertices, flattenVectors(obj.Mesh.Vertices))
		setDoubles(m, fMeshNormals, flattenVectors(obj.Mesh.Normals))
		faces := make([]int32, 0, 3*len(obj.Mesh.Faces))
		for _, f := range obj.Mesh.Faces {
			faces = append(faces, int32(f[0]), int32(f[1]), int32(f[2]))
		}
		setInts(m, fMeshFaces, faces)
	}
	return m
}

func decodeObject(m *dynamicpb.Message) (*Object, error) {
	obj := &Object{ID: getInt(m, fObjectID)}
	var err error
	if obj.Points, err = unflattenVectors(getDoubles(m, fPoints)); err != nil {
		return nil, fmt.Errorf("points: %w", err)
	}
	if obj.Normals, err = unflattenVectors(getDoubles(m, fNormals)); err != nil {
		return nil, fmt.Errorf("normals: %w", err)
	}
	tfs := getDoubles(m, fSymmetryTFs)
	if len(tfs)%16 != 0 {
		return nil, fmt.Errorf("symmetry transforms have %d values, not a multiple of 16", len(tfs))
	}
	for i := 0; i < len(tfs); i += 16 {
		p, err := geom.PoseFromRowMajor(tfs[i : i+16])
		if err != nil {
			return nil, err
		}
		obj.SymmetryTFs = append(obj.SymmetryTFs, p)
	}

	verts, err := unflattenVectors(getDoubles(m, fMeshVertices))
	if err != nil {
		return nil, fmt.Errorf("mesh vertices: %w", err)
	}
	if len(verts) == 0 {
		return obj, nil
	}
	normals, err := unflattenVectors(getDoubles(m, fMeshNormals))
	if err != nil {
		return nil, fmt.Errorf("mesh normals: %w", err)
	}
	idx := getInts(m, fMeshFaces)
	if len(idx)%3 != 0 {
		return nil, fmt.Errorf("mesh faces have %d indices, not a multiple of 3", len(idx))
	}
	msh := &mesh.Mesh{Vertices: verts, Normals: normals}
	for i := 0; i < len(idx); i += 3 {
		f := [3]int{int(idx[i]), int(idx[i+1]), int(idx[i+2])}
		for _, v := range f {
			if v < 0 || v >= len(verts) {
				return nil, fmt.Errorf("mesh face index %d out of range", v)
			}
		}
		msh.Faces = append(msh.Faces, f)
	}
	obj.Mesh = msh
	return obj, nil
}

func encodeObservation(obs *Observation) (*dynamicpb.Message, error) {
	m := dynamicpb.NewMessage(schema.registerReq)
	setInt(m, fObjectID, obs.ObjectID)
	if obs.K.K[8] != 0 {
		setDoubles(m, fK, obs.K.K[:])
	}
	if obs.Color != nil {
		var buf bytes.Buffer
		if err := png.Encode(&buf, obs.Color); err != nil {
			return nil, fmt.Errorf("encode color: %w", err)
		}
		setBytes(m, fColorPNG, buf.Bytes())
	}
	if obs.Depth != nil {
		setInt(m, fDepthWidth, obs.Depth.W)
		setInt(m, fDepthHeight, obs.Depth.H)
		setFloats(m, fDepth, obs.Depth.Data)
	}
	if obs.Mask != nil {
		setInt(m, fMaskWidth, obs.Mask.W)
		setInt(m, fMaskHeight, obs.Mask.H)
		setBytes(m, fMask, obs.Mask.Bytes())
	}
	if obs.GTPose != nil {
		setDoubles(m, fGTPose, obs.GTPose.T[:])
	}
	return m, nil
}

func decodeObservation(m *dynamicpb.Message) (*Observation, error) {
	obs := &Observation{ObjectID: getInt(m, fObjectID)}
	if k := getDoubles(m, fK); len(k) > 0 {
		intr, err := geom.IntrinsicsFromSlice(k)
		if err != nil {
			return nil, err
		}
		obs.K = intr
	}
	if data := getBytes(m, fColorPNG); len(data) > 0 {
		img, err := png.Decode(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("decode color: %w", err)
		}
		obs.Color = img
	}
	if w, h := getInt(m, fDepthWidth), getInt(m, fDepthHeight); w > 0 && h > 0 {
		data := getFloats(m, fDepth)
		if len(data) != w*h {
			return nil, fmt.Errorf("depth has %d values for %dx%d", len(data), w, h)
		}
		obs.Depth = &dataset.DepthMap{W: w, H: h, Data: data}
	}
	if w, h := getInt(m, fMaskWidth), getInt(m, fMaskHeight); w > 0 && h > 0 {
		mk, err := mask.FromBytes(w, h, getBytes(m, fMask))
		if err != nil {
			return nil, fmt.Errorf("mask: %w", err)
		}
		obs.Mask = mk
	}
	if gt := getDoubles(m, fGTPose); len(gt) > 0 {
		p, err := geom.PoseFromRowMajor(gt)
		if err != nil {
			return nil, fmt.Errorf("gt pose: %w", err)
		}
		obs.GTPose = &p
	}
	return obs, nil
}

func encodePose(p geom.Pose) *dynamicpb.Message {
	m := dynamicpb.NewMessage(schema.registerResp)
	setDoubles(m, fPose, p.T[:])
	return m
}

func decodePose(m *dynamicpb.Message) (geom.Pose, error) {
	return geom.PoseFromRowMajor(getDoubles(m, fPose))
}
