package wtr

import (
	"fmt"
	"sort"

	pq "github.com/parquet-go/parquet-go"
	pc "github.com/parquet-go/parquet-go/compress"
	pg "github.com/parquet-go/parquet-go/compress/gzip"
	pl "github.com/parquet-go/parquet-go/compress/lz4"
	ps "github.com/parquet-go/parquet-go/compress/snappy"
	pu "github.com/parquet-go/parquet-go/compress/uncompressed"
	pz "github.com/parquet-go/parquet-go/compress/zstd"

	rp "github.com/takanoriyanagitani/go-rowdump2parquet"
)

const CompressionDefault string = "gzip"

func CompressOptionNone() pq.WriterOption {
	var codec pc.Codec = &pu.Codec{}
	return pq.Compression(codec)
}

func CompressOptionGzip() pq.WriterOption {
	var codec pc.Codec = &pg.Codec{Level: pg.DefaultCompression}
	return pq.Compression(codec)
}

func CompressOptionGzipFast() pq.WriterOption {
	var codec pc.Codec = &pg.Codec{Level: pg.BestSpeed}
	return pq.Compression(codec)
}

func CompressOptionGzipBest() pq.WriterOption {
	var codec pc.Codec = &pg.Codec{Level: pg.BestCompression}
	return pq.Compression(codec)
}

func CompressOptionLz4Fast() pq.WriterOption {
	var codec pc.Codec = &pl.Codec{Level: pl.Fast}
	return pq.Compression(codec)
}

func CompressOptionSnappy() pq.WriterOption {
	var codec pc.Codec = &ps.Codec{}
	return pq.Compression(codec)
}

func CompressOptionZstd() pq.WriterOption {
	var codec pc.Codec = &pz.Codec{
		Level:       pz.SpeedDefault,
		Concurrency: pz.DefaultConcurrency,
	}
	return pq.Compression(codec)
}

func CompressOptionZstdBest() pq.WriterOption {
	var codec pc.Codec = &pz.Codec{
		Level:       pz.SpeedBestCompression,
		Concurrency: pz.DefaultConcurrency,
	}
	return pq.Compression(codec)
}

func CompressOptionZstdFast() pq.WriterOption {
	var codec pc.Codec = &pz.Codec{
		Level:       pz.SpeedFastest,
		Concurrency: pz.DefaultConcurrency,
	}
	return pq.Compression(codec)
}

type CompressOptionMap map[string]func() pq.WriterOption

var CompOptMap CompressOptionMap = map[string]func() pq.WriterOption{
	"none":      CompressOptionNone,
	"gzip":      CompressOptionGzip,
	"gzip-fast": CompressOptionGzipFast,
	"gzip-best": CompressOptionGzipBest,
	"lz4-fast":  CompressOptionLz4Fast,
	"snappy":    CompressOptionSnappy,
	"zstd":      CompressOptionZstd,
	"zstd-fast": CompressOptionZstdFast,
	"zstd-best": CompressOptionZstdBest,
}

func (m CompressOptionMap) Names() []string {
	var names []string = make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Lookup resolves a codec name; the empty name means CompressionDefault.
func (m CompressOptionMap) Lookup(ctyp string) (pq.WriterOption, error) {
	if "" == ctyp {
		ctyp = CompressionDefault
	}
	val, found := m[ctyp]
	if !found {
		return nil, fmt.Errorf(
			"%w: %w: %q (known: %v)",
			rp.ErrSerialization, rp.ErrUnsupportedCompression, ctyp, m.Names(),
		)
	}
	return val(), nil
}

func (c WriteConfig) AddCompressOption(ctyp string) (WriteConfig, error) {
	opt, e := CompOptMap.Lookup(ctyp)
	if nil != e {
		return c, e
	}
	return c.AddWriteOptions(opt), nil
}
