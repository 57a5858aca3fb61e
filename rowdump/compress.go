package rdump

import (
	"io"
	"path/filepath"
	"strings"

	kg "github.com/klauspost/compress/gzip"
	kz "github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

type Compression string

const (
	CompressionNone Compression = ""
	CompressionGzip Compression = "gzip"
	CompressionZstd Compression = "zstd"
	CompressionLz4  Compression = "lz4"
)

var extCompression map[string]Compression = map[string]Compression{
	".gz":  CompressionGzip,
	".zst": CompressionZstd,
	".lz4": CompressionLz4,
}

// CompressionFromPath infers the stream compression from the file extension.
func CompressionFromPath(path string) Compression {
	return extCompression[strings.ToLower(filepath.Ext(path))]
}

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }

func (c Compression) NewWriter(w io.Writer) (io.WriteCloser, error) {
	switch c {
	case CompressionGzip:
		return kg.NewWriterLevel(w, kg.DefaultCompression)
	case CompressionZstd:
		return kz.NewWriter(w, kz.WithEncoderLevel(kz.SpeedDefault))
	case CompressionLz4:
		return lz4.NewWriter(w), nil
	default:
		return nopWriteCloser{Writer: w}, nil
	}
}

type zstdReadCloser struct{ *kz.Decoder }

func (z zstdReadCloser) Close() error {
	z.Decoder.Close()
	return nil
}

func (c Compression) NewReader(r io.Reader) (io.ReadCloser, error) {
	switch c {
	case CompressionGzip:
		return kg.NewReader(r)
	case CompressionZstd:
		dec, e := kz.NewReader(r)
		if nil != e {
			return nil, e
		}
		return zstdReadCloser{Decoder: dec}, nil
	case CompressionLz4:
		return io.NopCloser(lz4.NewReader(r)), nil
	default:
		return io.NopCloser(r), nil
	}
}
