// Package results aggregates per-frame pose predictions into the nested
// video -> frame -> object mapping written at the end of a run.
package results

import (
	"sort"
	"strconv"
	"sync"

	"github.com/banshee-data/posebench/internal/geom"
)

// Key identifies one processed (video, frame, object) triple.
type Key struct {
	VideoID  string
	FrameID  string
	ObjectID int
}

// Entry is a stored pose with its key.
type Entry struct {
	Key
	Pose geom.Pose
}

// Store is the nested result mapping. Each key holds exactly one pose;
// a later Set for the same key replaces the earlier one.
type Store struct {
	mu     sync.RWMutex
	videos map[string]map[string]map[int]geom.Pose
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{videos: make(map[string]map[string]map[int]geom.Pose)}
}

// Set records the pose for (video, frame, object).
func (s *Store) Set(videoID, frameID string, obID int, pose geom.Pose) {
	s.mu.Lock()
	defer s.mu.Unlock()
	frames, ok := s.videos[videoID]
	if !ok {
		frames = make(map[string]map[int]geom.Pose)
		s.videos[videoID] = frames
	}
	objs, ok := frames[frameID]
	if !ok {
		objs = make(map[int]geom.Pose)
		frames[frameID] = objs
	}
	objs[obID] = pose
}

// SetIdentity records the "not estimated" sentinel.
func (s *Store) SetIdentity(videoID, frameID string, obID int) {
	s.Set(videoID, frameID, obID, geom.Identity())
}

// Get returns the pose for a triple.
func (s *Store) Get(videoID, frameID string, obID int) (geom.Pose, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.videos[videoID][frameID][obID]
	return p, ok
}

// Merge copies every entry of other into s, overwriting duplicates.
func (s *Store) Merge(other *Store) {
	if other == nil || other == s {
		return
	}
	for _, e := range other.Triples() {
		s.Set(e.VideoID, e.FrameID, e.ObjectID, e.Pose)
	}
}

// Len is the number of stored triples.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, frames := range s.videos {
		for _, objs := range frames {
			n += len(objs)
		}
	}
	return n
}

// IdentityCount is the number of entries holding the identity sentinel.
func (s *Store) IdentityCount() int {
	n := 0
	for _, e := range s.Triples() {
		if e.Pose.IsIdentity() {
			n++
		}
	}
	return n
}

// Videos returns the video ids in key order.
func (s *Store) Videos() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.videos))
	for v := range s.videos {
		ids = append(ids, v)
	}
	sortKeys(ids)
	return ids
}

// Triples returns every triple ordered by video, frame, object.
func (s *Store) Triples() []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Entry
	for v, frames := range s.videos {
		for f, objs := range frames {
			for o, p := range objs {
				out = append(out, Entry{Key: Key{VideoID: v, FrameID: f, ObjectID: o}, Pose: p})
			}
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].Key, out[j].Key
		if a.VideoID != b.VideoID {
			return keyLess(a.VideoID, b.VideoID)
		}
		if a.FrameID != b.FrameID {
			return keyLess(a.FrameID, b.FrameID)
		}
		return a.ObjectID < b.ObjectID
	})
	return out
}

// keyLess orders numeric ids numerically and everything else lexically,
// numbers first.
func keyLess(a, b string) bool {
	na, errA := strconv.Atoi(a)
	nb, errB := strconv.Atoi(b)
	switch {
	case errA == nil && errB == nil:
		if na != nb {
			return na < nb
		}
		return a < b
	case errA == nil:
		return true
	case errB == nil:
		return false
	default:
		return a < b
	}
}

func sortKeys(keys []string) {
	sort.Slice(keys, func(i, j int) bool { return keyLess(keys[i], keys[j]) })
}
