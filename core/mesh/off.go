package mesh

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// OFFExtension is the file extension of OFF mesh files.
const OFFExtension = ".off"

const maxPrealloc = 1 << 16

var (
	// ErrBadHeader indicates a stream that does not start with an OFF header.
	ErrBadHeader = errors.New("missing OFF header")

	// ErrTruncated indicates a stream that ends before the declared counts are read.
	ErrTruncated = errors.New("truncated OFF data")
)

// offReader yields whitespace-separated lines, skipping blanks and comments.
type offReader struct {
	sc   *bufio.Scanner
	line int
}

func newOFFReader(r io.Reader) *offReader {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	return &offReader{sc: sc}
}

func (r *offReader) next() ([]string, error) {
	for r.sc.Scan() {
		r.line++
		text := r.sc.Text()
		if i := strings.IndexByte(text, '#'); i >= 0 {
			text = text[:i]
		}
		fields := strings.Fields(text)
		if len(fields) == 0 {
			continue
		}
		return fields, nil
	}
	if err := r.sc.Err(); err != nil {
		return nil, err
	}
	return nil, ErrTruncated
}

// Decode reads an OFF mesh. Polygonal faces are fan-triangulated and vertex
// normals are computed from the resulting triangles.
//
// Some datasets glue the counts onto the header ("OFF490 518 0"); that form
// is accepted.
func Decode(r io.Reader) (*Geometry, error) {
	or := newOFFReader(r)

	first, err := or.next()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	if !strings.HasPrefix(first[0], "OFF") {
		return nil, ErrBadHeader
	}

	counts := first[1:]
	if rest := strings.TrimPrefix(first[0], "OFF"); rest != "" {
		counts = append([]string{rest}, counts...)
	}
	if len(counts) == 0 {
		if counts, err = or.next(); err != nil {
			return nil, fmt.Errorf("read counts: %w", err)
		}
	}
	if len(counts) < 2 {
		return nil, fmt.Errorf("line %d: expected vertex and face counts", or.line)
	}
	nv, err := parseCount(counts[0])
	if err != nil {
		return nil, fmt.Errorf("line %d: vertex count: %w", or.line, err)
	}
	nf, err := parseCount(counts[1])
	if err != nil {
		return nil, fmt.Errorf("line %d: face count: %w", or.line, err)
	}

	// Header counts are untrusted; storage grows with the data actually read.
	vertices := make([]Vec3, 0, min(nv, maxPrealloc))
	for i := 0; i < nv; i++ {
		fields, err := or.next()
		if err != nil {
			return nil, fmt.Errorf("vertex %d: %w", i, err)
		}
		if len(fields) < 3 {
			return nil, fmt.Errorf("line %d: vertex %d has %d coordinates", or.line, i, len(fields))
		}
		var v Vec3
		for j := 0; j < 3; j++ {
			if v[j], err = strconv.ParseFloat(fields[j], 64); err != nil {
				return nil, fmt.Errorf("line %d: vertex %d: %w", or.line, i, err)
			}
		}
		vertices = append(vertices, v)
	}

	faces := make([]Face, 0, min(nf, maxPrealloc))
	for i := 0; i < nf; i++ {
		fields, err := or.next()
		if err != nil {
			return nil, fmt.Errorf("face %d: %w", i, err)
		}
		poly, err := parseFace(fields, nv)
		if err != nil {
			return nil, fmt.Errorf("line %d: face %d: %w", or.line, i, err)
		}
		faces = append(faces, triangulate(poly)...)
	}

	return NewGeometry(vertices, faces, ComputeVertexNormals(vertices, faces)), nil
}

// DecodeFile decodes the OFF file at path and records it as the geometry's
// SourcePath. A missing file yields an error wrapping os.ErrNotExist.
func DecodeFile(path string) (*Geometry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	g, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	g.SourcePath = path
	return g, nil
}

func parseCount(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, fmt.Errorf("negative count %d", n)
	}
	return n, nil
}

func parseFace(fields []string, nv int) (Face, error) {
	n, err := strconv.Atoi(fields[0])
	if err != nil {
		return nil, err
	}
	if n < 3 {
		return nil, ErrDegenerateFace
	}
	if len(fields) < n+1 {
		return nil, fmt.Errorf("declares %d indices, has %d", n, len(fields)-1)
	}
	face := make(Face, n)
	for j := 0; j < n; j++ {
		idx, err := strconv.Atoi(fields[j+1])
		if err != nil {
			return nil, err
		}
		if idx < 0 || idx >= nv {
			return nil, fmt.Errorf("index %d: %w", idx, ErrFaceIndexOutOfRange)
		}
		face[j] = idx
	}
	return face, nil
}

// triangulate fans a convex polygon around its first vertex.
func triangulate(poly Face) []Face {
	if len(poly) == 3 {
		return []Face{poly}
	}
	out := make([]Face, 0, len(poly)-2)
	for i := 1; i+1 < len(poly); i++ {
		out = append(out, Face{poly[0], poly[i], poly[i+1]})
	}
	return out
}

// Encode writes g in OFF form: header line, counts line, one line per vertex,
// one line per face. Normals are not part of the format and are dropped.
// Polygonal faces are fan-triangulated so that Decode reproduces the same
// face list.
func Encode(w io.Writer, g *Geometry) error {
	bw := bufio.NewWriter(w)

	fmt.Fprintln(bw, "OFF")
	faces := g.Faces
	for _, f := range faces {
		if len(f) != 3 {
			faces = triangulateAll(g.Faces)
			break
		}
	}

	fmt.Fprintf(bw, "%d %d 0\n", len(g.Vertices), len(faces))
	for _, v := range g.Vertices {
		bw.WriteString(formatFloat(v[0]))
		bw.WriteByte(' ')
		bw.WriteString(formatFloat(v[1]))
		bw.WriteByte(' ')
		bw.WriteString(formatFloat(v[2]))
		bw.WriteByte('\n')
	}
	for _, f := range faces {
		bw.WriteString(strconv.Itoa(len(f)))
		for _, idx := range f {
			bw.WriteByte(' ')
			bw.WriteString(strconv.Itoa(idx))
		}
		bw.WriteByte('\n')
	}
	return bw.Flush()
}

func triangulateAll(faces []Face) []Face {
	out := make([]Face, 0, len(faces))
	for _, f := range faces {
		if len(f) < 3 {
			continue
		}
		out = append(out, triangulate(f)...)
	}
	return out
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
