// Package compression provides pluggable byte compressors and the
// serialize-then-compress helpers used for large cache values.
package compression

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/s2"
	"github.com/klauspost/compress/zstd"
)

// CompressorType identifies a compression algorithm
type CompressorType string

const (
	// CompressorNone disables compression
	CompressorNone CompressorType = "none"
	// CompressorGzip uses gzip
	CompressorGzip CompressorType = "gzip"
	// CompressorDeflate uses raw deflate
	CompressorDeflate CompressorType = "deflate"
	// CompressorS2 uses S2, a fast Snappy-compatible format
	CompressorS2 CompressorType = "s2"
	// CompressorZstd uses Zstandard
	CompressorZstd CompressorType = "zstd"
)

// Config holds compression settings
type Config struct {
	Enabled   bool           `mapstructure:"enabled" json:"enabled"`
	Algorithm CompressorType `mapstructure:"algorithm" json:"algorithm"`
	// MinSize is the serialized size in bytes above which values are compressed
	MinSize int `mapstructure:"min_size" json:"min_size"`
	// Level is the algorithm-specific level; -1 selects the default
	Level int `mapstructure:"level" json:"level"`
}

// NewDefaultConfig returns a disabled gzip configuration with a 1KB threshold
func NewDefaultConfig() *Config {
	return &Config{
		Enabled:   false,
		Algorithm: CompressorGzip,
		MinSize:   1024,
		Level:     -1,
	}
}

// WithEnabled enables or disables compression
func (c *Config) WithEnabled(enabled bool) *Config {
	c.Enabled = enabled
	return c
}

// WithAlgorithm sets the compression algorithm
func (c *Config) WithAlgorithm(algorithm CompressorType) *Config {
	c.Algorithm = algorithm
	return c
}

// WithMinSize sets the compression threshold
func (c *Config) WithMinSize(minSize int) *Config {
	c.MinSize = minSize
	return c
}

// WithLevel sets the compression level
func (c *Config) WithLevel(level int) *Config {
	c.Level = level
	return c
}

// Compressor compresses and decompresses byte slices
type Compressor interface {
	Compress(data []byte) ([]byte, error)
	Decompress(data []byte) ([]byte, error)
	Name() string
}

// NewCompressor builds the compressor selected by config
func NewCompressor(config *Config) (Compressor, error) {
	if config == nil || !config.Enabled {
		return NewNoOpCompressor(), nil
	}

	switch config.Algorithm {
	case CompressorNone:
		return NewNoOpCompressor(), nil
	case CompressorGzip, "":
		return NewGzipCompressor(config.Level), nil
	case CompressorDeflate:
		return NewDeflateCompressor(config.Level), nil
	case CompressorS2:
		return NewS2Compressor(), nil
	case CompressorZstd:
		return NewZstdCompressor(config.Level)
	default:
		return nil, fmt.Errorf("unsupported compression algorithm: %s", config.Algorithm)
	}
}

// NoOpCompressor passes data through unchanged
type NoOpCompressor struct{}

// NewNoOpCompressor creates a pass-through compressor
func NewNoOpCompressor() *NoOpCompressor {
	return &NoOpCompressor{}
}

func (n *NoOpCompressor) Compress(data []byte) ([]byte, error)   { return data, nil }
func (n *NoOpCompressor) Decompress(data []byte) ([]byte, error) { return data, nil }
func (n *NoOpCompressor) Name() string                           { return string(CompressorNone) }

// GzipCompressor compresses with gzip
type GzipCompressor struct {
	level int
}

// NewGzipCompressor creates a gzip compressor; level -1 selects the default
func NewGzipCompressor(level int) *GzipCompressor {
	if level < gzip.HuffmanOnly || level > gzip.BestCompression {
		level = gzip.DefaultCompression
	}
	return &GzipCompressor{level: level}
}

func (g *GzipCompressor) Compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := gzip.NewWriterLevel(&buf, g.level)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (g *GzipCompressor) Decompress(data []byte) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}

func (g *GzipCompressor) Name() string { return string(CompressorGzip) }

// DeflateCompressor compresses with raw deflate
type DeflateCompressor struct {
	level int
}

// NewDeflateCompressor creates a deflate compressor; level -1 selects the default
func NewDeflateCompressor(level int) *DeflateCompressor {
	if level < flate.HuffmanOnly || level > flate.BestCompression {
		level = flate.DefaultCompression
	}
	return &DeflateCompressor{level: level}
}

func (d *DeflateCompressor) Compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := flate.NewWriter(&buf, d.level)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (d *DeflateCompressor) Decompress(data []byte) ([]byte, error) {
	r := flate.NewReader(bytes.NewReader(data))
	defer r.Close()
	return io.ReadAll(r)
}

func (d *DeflateCompressor) Name() string { return string(CompressorDeflate) }

// S2Compressor compresses with S2 block encoding
type S2Compressor struct{}

// NewS2Compressor creates an S2 compressor
func NewS2Compressor() *S2Compressor {
	return &S2Compressor{}
}

func (s *S2Compressor) Compress(data []byte) ([]byte, error) {
	return s2.Encode(nil, data), nil
}

func (s *S2Compressor) Decompress(data []byte) ([]byte, error) {
	return s2.Decode(nil, data)
}

func (s *S2Compressor) Name() string { return string(CompressorS2) }

// ZstdCompressor compresses with Zstandard. The encoder and decoder are
// shared and safe for concurrent use through EncodeAll/DecodeAll.
type ZstdCompressor struct {
	encoder *zstd.Encoder
	decoder *zstd.Decoder
}

// NewZstdCompressor creates a zstd compressor; level -1 selects the default
func NewZstdCompressor(level int) (*ZstdCompressor, error) {
	encLevel := zstd.SpeedDefault
	if level > 0 {
		encLevel = zstd.EncoderLevelFromZstd(level)
	}

	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(encLevel))
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd encoder: %w", err)
	}
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		_ = encoder.Close()
		return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
	}
	return &ZstdCompressor{encoder: encoder, decoder: decoder}, nil
}

func (z *ZstdCompressor) Compress(data []byte) ([]byte, error) {
	return z.encoder.EncodeAll(data, make([]byte, 0, len(data)/2)), nil
}

func (z *ZstdCompressor) Decompress(data []byte) ([]byte, error) {
	return z.decoder.DecodeAll(data, nil)
}

func (z *ZstdCompressor) Name() string { return string(CompressorZstd) }

// Serialize encodes value as JSON
func Serialize(value any) ([]byte, error) {
	return json.Marshal(value)
}

// CompressBytes compresses data when it is larger than minSize and the
// result is actually smaller. It reports whether compression was applied.
func CompressBytes(data []byte, compressor Compressor, minSize int) ([]byte, bool, error) {
	if compressor == nil || len(data) <= minSize {
		return data, false, nil
	}
	if _, ok := compressor.(*NoOpCompressor); ok {
		return data, false, nil
	}

	compressed, err := compressor.Compress(data)
	if err != nil {
		return nil, false, err
	}
	if len(compressed) >= len(data) {
		return data, false, nil
	}
	return compressed, true, nil
}

// SerializeAndCompress encodes value and compresses it if it exceeds minSize
func SerializeAndCompress(value any, compressor Compressor, minSize int) ([]byte, bool, error) {
	data, err := Serialize(value)
	if err != nil {
		return nil, false, fmt.Errorf("failed to serialize value: %w", err)
	}
	return CompressBytes(data, compressor, minSize)
}

// DecompressAndDeserialize reverses SerializeAndCompress into target
func DecompressAndDeserialize(data []byte, compressed bool, compressor Compressor, target any) error {
	if compressed {
		if compressor == nil {
			return fmt.Errorf("compressed data without a compressor")
		}
		var err error
		data, err = compressor.Decompress(data)
		if err != nil {
			return fmt.Errorf("failed to decompress value: %w", err)
		}
	}

	if err := json.Unmarshal(data, target); err != nil {
		return fmt.Errorf("failed to deserialize value: %w", err)
	}
	return nil
}
