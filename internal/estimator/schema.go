package estimator

import (
	"fmt"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/reflect/protoregistry"
	"google.golang.org/protobuf/types/descriptorpb"
	"google.golang.org/protobuf/types/dynamicpb"
)

// Wire names of the estimator service.
const (
	ServiceName  = "posebench.estimator.v1.Estimator"
	protoPackage = "posebench.estimator.v1"
	protoFile    = "posebench/estimator/v1/estimator.proto"

	resetObjectMethod = "/" + ServiceName + "/ResetObject"
	registerMethod    = "/" + ServiceName + "/Register"
)

// Field names shared by the client and server encoders.
const (
	fObjectID     = "object_id"
	fPoints       = "points"
	fNormals      = "normals"
	fSymmetryTFs  = "symmetry_tfs"
	fMeshVertices = "mesh_vertices"
	fMeshNormals  = "mesh_normals"
	fMeshFaces    = "mesh_faces"
	fK            = "k"
	fColorPNG     = "color_png"
	fDepthWidth   = "depth_width"
	fDepthHeight  = "depth_height"
	fDepth        = "depth"
	fMaskWidth    = "mask_width"
	fMaskHeight   = "mask_height"
	fMask         = "mask"
	fGTPose       = "gt_pose"
	fPose         = "pose"
)

type wireSchema struct {
	resetReq     protoreflect.MessageDescriptor
	resetResp    protoreflect.MessageDescriptor
	registerReq  protoreflect.MessageDescriptor
	registerResp protoreflect.MessageDescriptor
	service      protoreflect.ServiceDescriptor
}

var schema = mustBuildSchema()

type fieldSpec struct {
	name     string
	number   int32
	typ      descriptorpb.FieldDescriptorProto_Type
	repeated bool
}

func scalar(name string, number int32, typ descriptorpb.FieldDescriptorProto_Type) fieldSpec {
	return fieldSpec{name: name, number: number, typ: typ}
}

func repeated(name string, number int32, typ descriptorpb.FieldDescriptorProto_Type) fieldSpec {
	return fieldSpec{name: name, number: number, typ: typ, repeated: true}
}

func messageProto(name string, fields ...fieldSpec) *descriptorpb.DescriptorProto {
	msg := &descriptorpb.DescriptorProto{Name: proto.String(name)}
	for _, f := range fields {
		label := descriptorpb.FieldDescriptorProto_LABEL_OPTIONAL
		if f.repeated {
			label = descriptorpb.FieldDescriptorProto_LABEL_REPEATED
		}
		msg.Field = append(msg.Field, &descriptorpb.FieldDescriptorProto{
			Name:   proto.String(f.name),
			Number: proto.Int32(f.number),
			Label:  label.Enum(),
			Type:   f.typ.Enum(),
		})
	}
	return msg
}

func methodProto(name, in, out string) *descriptorpb.MethodDescriptorProto {
	return &descriptorpb.MethodDescriptorProto{
		Name:       proto.String(name),
		InputType:  proto.String("." + protoPackage + "." + in),
		OutputType: proto.String("." + protoPackage + "." + out),
	}
}

// fileProto describes estimator.proto:
//
//	service Estimator {
//	  rpc ResetObject(ResetObjectRequest) returns (ResetObjectResponse);
//	  rpc Register(RegisterRequest) returns (RegisterResponse);
//	}
//
// Vectors are flattened xyz triples, poses row-major 4x4, K row-major 3x3.
func fileProto() *descriptorpb.FileDescriptorProto {
	const (
		tInt32  = descriptorpb.FieldDescriptorProto_TYPE_INT32
		tDouble = descriptorpb.FieldDescriptorProto_TYPE_DOUBLE
		tFloat  = descriptorpb.FieldDescriptorProto_TYPE_FLOAT
		tBytes  = descriptorpb.FieldDescriptorProto_TYPE_BYTES
	)
	return &descriptorpb.FileDescriptorProto{
		Name:    proto.String(protoFile),
		Package: proto.String(protoPackage),
		Syntax:  proto.String("proto3"),
		MessageType: []*descriptorpb.DescriptorProto{
			messageProto("ResetObjectRequest",
				scalar(fObjectID, 1, tInt32),
				repeated(fPoints, 2, tDouble),
				repeated(fNormals, 3, tDouble),
				repeated(fSymmetryTFs, 4, tDouble),
				repeated(fMeshVertices, 5, tDouble),
				repeated(fMeshNormals, 6, tDouble),
				repeated(fMeshFaces, 7, tInt32),
			),
			messageProto("ResetObjectResponse"),
			messageProto("RegisterRequest",
				scalar(fObjectID, 1, tInt32),
				repeated(fK, 2, tDouble),
				scalar(fColorPNG, 3, tBytes),
				scalar(fDepthWidth, 4, tInt32),
				scalar(fDepthHeight, 5, tInt32),
				repeated(fDepth, 6, tFloat),
				scalar(fMaskWidth, 7, tInt32),
				scalar(fMaskHeight, 8, tInt32),
				scalar(fMask, 9, tBytes),
				repeated(fGTPose, 10, tDouble),
			),
			messageProto("RegisterResponse",
				repeated(fPose, 1, tDouble),
			),
		},
		Service: []*descriptorpb.ServiceDescriptorProto{{
			Name: proto.String("Estimator"),
			Method: []*descriptorpb.MethodDescriptorProto{
				methodProto("ResetObject", "ResetObjectRequest", "ResetObjectResponse"),
				methodProto("Register", "RegisterRequest", "RegisterResponse"),
			},
		}},
	}
}

func buildSchema() (*wireSchema, error) {
	fd, err := protodesc.NewFile(fileProto(), new(protoregistry.Files))
	if err != nil {
		return nil, fmt.Errorf("build estimator descriptors: %w", err)
	}
	msgs := fd.Messages()
	s := &wireSchema{
		resetReq:     msgs.ByName("ResetObjectRequest"),
		resetResp:    msgs.ByName("ResetObjectResponse"),
		registerReq:  msgs.ByName("RegisterRequest"),
		registerResp: msgs.ByName("RegisterResponse"),
		service:      fd.Services().ByName("Estimator"),
	}
	if s.resetReq == nil || s.resetResp == nil || s.registerReq == nil || s.registerResp == nil || s.service == nil {
		return nil, fmt.Errorf("estimator descriptors incomplete")
	}
	return s, nil
}

func mustBuildSchema() *wireSchema {
	s, err := buildSchema()
	if err != nil {
		panic(err)
	}
	return s
}

func field(m *dynamicpb.Message, name string) protoreflect.FieldDescriptor {
	fd := m.Descriptor().Fields().ByName(protoreflect.Name(name))
	if fd == nil {
		panic(fmt.Sprintf("estimator: %s has no field %q", m.Descriptor().FullName(), name))
	}
	return fd
}

func setInt(m *dynamicpb.Message, name string, v int) {
	m.Set(field(m, name), protoreflect.ValueOfInt32(int32(v)))
}

func getInt(m *dynamicpb.Message, name string) int {
	return int(m.Get(field(m, name)).Int())
}

func setBytes(m *dynamicpb.Message, name string, b []byte) {
	if len(b) == 0 {
		return
	}
	m.Set(field(m, name), protoreflect.ValueOfBytes(b))
}

func getBytes(m *dynamicpb.Message, name string) []byte {
	return m.Get(field(m, name)).Bytes()
}

func setDoubles(m *dynamicpb.Message, name string, vs []float64) {
	if len(vs) == 0 {
		return
	}
	l := m.Mutable(field(m, name)).List()
	for _, v := range vs {
		l.Append(protoreflect.ValueOfFloat64(v))
	}
}

func getDoubles(m *dynamicpb.Message, name string) []float64 {
	l := m.Get(field(m, name)).List()
	out := make([]float64, l.Len())
	for i := range out {
		out[i] = l.Get(i).Float()
	}
	return out
}

func setFloats(m *dynamicpb.Message, name string, vs []float32) {
	if len(vs) == 0 {
		return
	}
	l := m.Mutable(field(m, name)).List()
	for _, v := range vs {
		l.Append(protoreflect.ValueOfFloat32(v))
	}
}

func getFloats(m *dynamicpb.Message, name string) []float32 {
	l := m.Get(field(m, name)).List()
	out := make([]float32, l.Len())
	for i := range out {
		out[i] = float32(l.Get(i).Float())
	}
	return out
}

func setInts(m *dynamicpb.Message, name string, vs []int32) {
	if len(vs) == 0 {
		return
	}
	l := m.Mutable(field(m, name)).List()
	for _, v := range vs {
		l.Append(protoreflect.ValueOfInt32(v))
	}
}

func getInts(m *dynamicpb.Message, name string) []int32 {
	l := m.Get(field(m, name)).List()
	out := make([]int32, l.Len())
	for i := range out {
		out[i] = int32(l.Get(i).Int())
	}
	return out
}
