package mesh

// Decoder turns a mesh file into an in-memory Geometry.
//
// Implementations must return an error wrapping os.ErrNotExist when the file
// is missing so callers can tell a missing asset from an undecodable one.
type Decoder interface {
	DecodeFile(path string) (*Geometry, error)
}

// DecoderFunc adapts a function to the Decoder interface.
type DecoderFunc func(path string) (*Geometry, error)

// DecodeFile calls f(path).
func (f DecoderFunc) DecodeFile(path string) (*Geometry, error) {
	return f(path)
}

// OFFDecoder decodes OFF files from the local filesystem.
type OFFDecoder struct{}

// DecodeFile implements Decoder.
func (OFFDecoder) DecodeFile(path string) (*Geometry, error) {
	return DecodeFile(path)
}
