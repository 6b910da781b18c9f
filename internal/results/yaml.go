package results

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/banshee-data/posebench/internal/fsutil"
	"github.com/banshee-data/posebench/internal/geom"
)

// MarshalYAML renders the store as nested mappings. Canonical numeric video
// ids and object ids are plain integers; frame ids are always strings so that
// zero-padded ids survive a round trip. Poses are four rows of four floats.
func (s *Store) MarshalYAML() (interface{}, error) {
	root := &yaml.Node{Kind: yaml.MappingNode}
	var (
		curVideo, curFrame string
		videoNode          *yaml.Node
		frameNode          *yaml.Node
	)
	for _, e := range s.Triples() {
		if videoNode == nil || e.VideoID != curVideo {
			curVideo, curFrame = e.VideoID, ""
			videoNode = &yaml.Node{Kind: yaml.MappingNode}
			frameNode = nil
			root.Content = append(root.Content, idNode(e.VideoID), videoNode)
		}
		if frameNode == nil || e.FrameID != curFrame {
			curFrame = e.FrameID
			frameNode = &yaml.Node{Kind: yaml.MappingNode}
			videoNode.Content = append(videoNode.Content, strNode(e.FrameID), frameNode)
		}
		frameNode.Content = append(frameNode.Content, idNode(strconv.Itoa(e.ObjectID)), poseNode(e.Pose))
	}
	return root, nil
}

// UnmarshalYAML is the inverse of MarshalYAML.
func (s *Store) UnmarshalYAML(value *yaml.Node) error {
	var raw map[string]map[string]map[int][][]float64
	if err := value.Decode(&raw); err != nil {
		return err
	}
	if s.videos == nil {
		s.videos = make(map[string]map[string]map[int]geom.Pose)
	}
	for v, frames := range raw {
		for f, objs := range frames {
			for o, rows := range objs {
				p, err := geom.PoseFromRows(rows)
				if err != nil {
					return fmt.Errorf("video %s frame %s object %d: %w", v, f, o, err)
				}
				s.Set(v, f, o, p)
			}
		}
	}
	return nil
}

// idNode writes canonical decimal ids as integers. Anything else, including
// zero-padded ids such as "010", stays a quoted string so YAML 1.1 readers
// neither parse it as octal nor merge it with "10".
func idNode(id string) *yaml.Node {
	if n, err := strconv.Atoi(id); err == nil && strconv.Itoa(n) == id {
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!int", Value: id}
	}
	return strNode(id)
}

func strNode(s string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: s}
}

func poseNode(p geom.Pose) *yaml.Node {
	n := &yaml.Node{Kind: yaml.SequenceNode}
	for _, row := range p.Rows() {
		r := &yaml.Node{Kind: yaml.SequenceNode, Style: yaml.FlowStyle}
		for _, v := range row {
			r.Content = append(r.Content, &yaml.Node{
				Kind:  yaml.ScalarNode,
				Tag:   "!!float",
				Value: formatFloat(v),
			})
		}
		n.Content = append(n.Content, r)
	}
	return n
}

// formatFloat keeps a decimal point on integral values so every element
// reads back as a float.
func formatFloat(v float64) string {
	s := strconv.FormatFloat(v, 'g', -1, 64)
	if strings.ContainsAny(s, ".eEnN") {
		return s
	}
	return s + ".0"
}

// EncodeYAML renders the store.
func (s *Store) EncodeYAML() ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(s); err != nil {
		return nil, fmt.Errorf("encode results: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encode results: %w", err)
	}
	return buf.Bytes(), nil
}

// WriteYAML writes the store to path, creating the parent directory.
func WriteYAML(fsys fsutil.FileSystem, path string, s *Store) error {
	data, err := s.EncodeYAML()
	if err != nil {
		return err
	}
	if err := fsys.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	if err := fsys.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// ReadYAML loads a store written by WriteYAML.
func ReadYAML(fsys fsutil.FileSystem, path string) (*Store, error) {
	data, err := fsys.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	s := NewStore()
	if err := yaml.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return s, nil
}
