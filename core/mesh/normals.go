package mesh

import (
	"gonum.org/v1/gonum/spatial/r3"
)

// ComputeVertexNormals returns one unit normal per vertex, obtained by summing
// the area-weighted normals (raw cross products) of every triangle incident
// to the vertex. Vertices touched
// only by degenerate triangles (or by none) get the zero vector.
func ComputeVertexNormals(vertices []Vec3, faces []Face) []Vec3 {
	acc := make([]r3.Vec, len(vertices))

	for _, f := range faces {
		if len(f) < 3 {
			continue
		}
		n := triangleNormal(vertices, f[0], f[1], f[2])
		if n == (r3.Vec{}) {
			continue
		}
		for _, idx := range f[:3] {
			acc[idx] = r3.Add(acc[idx], n)
		}
	}

	out := make([]Vec3, len(vertices))
	for i, v := range acc {
		out[i] = fromR3(unitOrZero(v))
	}
	return out
}

func triangleNormal(vertices []Vec3, a, b, c int) r3.Vec {
	pa := toR3(vertices[a])
	e1 := r3.Sub(toR3(vertices[b]), pa)
	e2 := r3.Sub(toR3(vertices[c]), pa)
	return r3.Cross(e1, e2)
}

func unitOrZero(v r3.Vec) r3.Vec {
	if r3.Norm(v) == 0 {
		return r3.Vec{}
	}
	return r3.Unit(v)
}

func toR3(v Vec3) r3.Vec {
	return r3.Vec{X: v[0], Y: v[1], Z: v[2]}
}

func fromR3(v r3.Vec) Vec3 {
	return Vec3{v.X, v.Y, v.Z}
}
