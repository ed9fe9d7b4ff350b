// Package mesh provides the in-memory triangle mesh representation used by the
// similarity search system, together with the OFF interchange codec that both
// the asset directory and the external scorers speak.
package mesh

import (
	"errors"
	"fmt"
)

// Vec3 is a 3-component coordinate or direction.
type Vec3 [3]float64

// Face is an ordered tuple of vertex indices. Decoded faces are triangles.
type Face []int

// Metadata summarises a Geometry for clients that do not need the arrays.
type Metadata struct {
	VertexCount int `json:"vertex_count"`
	FaceCount   int `json:"face_count"`
}

// Geometry is a decoded mesh. Normals, when present, hold one unit vector
// per vertex.
//
// SourcePath is the on-disk asset the geometry was decoded from, if any.
// Scorers may hand it to external tools directly instead of re-serializing.
type Geometry struct {
	Vertices   []Vec3   `json:"vertices"`
	Faces      []Face   `json:"faces"`
	Normals    []Vec3   `json:"normals"`
	Metadata   Metadata `json:"metadata"`
	SourcePath string   `json:"-"`
}

var (
	// ErrFaceIndexOutOfRange indicates a face referencing a missing vertex.
	ErrFaceIndexOutOfRange = errors.New("face index out of range")

	// ErrNormalCountMismatch indicates a normal list that does not match the vertex list.
	ErrNormalCountMismatch = errors.New("normal count does not match vertex count")

	// ErrDegenerateFace indicates a face with fewer than three vertices.
	ErrDegenerateFace = errors.New("face has fewer than three vertices")
)

// NewGeometry builds a Geometry with metadata filled in.
func NewGeometry(vertices []Vec3, faces []Face, normals []Vec3) *Geometry {
	g := &Geometry{
		Vertices: vertices,
		Faces:    faces,
		Normals:  normals,
	}
	g.refreshMetadata()
	return g
}

func (g *Geometry) refreshMetadata() {
	g.Metadata = Metadata{
		VertexCount: len(g.Vertices),
		FaceCount:   len(g.Faces),
	}
}

// VertexCount returns the number of vertices.
func (g *Geometry) VertexCount() int {
	return len(g.Vertices)
}

// FaceCount returns the number of faces.
func (g *Geometry) FaceCount() int {
	return len(g.Faces)
}

// IsEmpty reports whether the geometry has no vertices.
func (g *Geometry) IsEmpty() bool {
	return g == nil || len(g.Vertices) == 0
}

// Validate checks face indices and the normal count.
func (g *Geometry) Validate() error {
	n := len(g.Vertices)
	for fi, f := range g.Faces {
		if len(f) < 3 {
			return fmt.Errorf("face %d: %w", fi, ErrDegenerateFace)
		}
		for _, idx := range f {
			if idx < 0 || idx >= n {
				return fmt.Errorf("face %d index %d (vertices=%d): %w", fi, idx, n, ErrFaceIndexOutOfRange)
			}
		}
	}
	if len(g.Normals) > 0 && len(g.Normals) != n {
		return fmt.Errorf("normals=%d vertices=%d: %w", len(g.Normals), n, ErrNormalCountMismatch)
	}
	return nil
}
