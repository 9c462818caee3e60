package utils

import (
	"bytes"
	"compress/gzip"
	"compress/zlib"
	"fmt"
	"io"
)

// CompressionAlgorithm defines supported compression methods
type CompressionAlgorithm string

const (
	CompressionNone CompressionAlgorithm = "none"
	CompressionGzip CompressionAlgorithm = "gzip"
	CompressionZlib CompressionAlgorithm = "zlib"
)

// compressionThreshold is the minimum byte size worth compressing; below it
// the container overhead outweighs the savings.
const compressionThreshold = 500

// CompressData compresses data using the specified algorithm
func CompressData(data []byte, algorithm CompressionAlgorithm) ([]byte, error) {
	if len(data) == 0 {
		return data, nil
	}

	switch algorithm {
	case CompressionNone:
		return data, nil

	case CompressionGzip:
		var buf bytes.Buffer
		writer := gzip.NewWriter(&buf)
		if _, err := writer.Write(data); err != nil {
			return nil, fmt.Errorf("failed to write to gzip writer: %w", err)
		}
		if err := writer.Close(); err != nil {
			return nil, fmt.Errorf("failed to close gzip writer: %w", err)
		}
		return buf.Bytes(), nil

	case CompressionZlib:
		var buf bytes.Buffer
		writer := zlib.NewWriter(&buf)
		if _, err := writer.Write(data); err != nil {
			return nil, fmt.Errorf("failed to write to zlib writer: %w", err)
		}
		if err := writer.Close(); err != nil {
			return nil, fmt.Errorf("failed to close zlib writer: %w", err)
		}
		return buf.Bytes(), nil

	default:
		return nil, fmt.Errorf("unsupported compression algorithm: %s", algorithm)
	}
}

// DecompressData decompresses data using the specified algorithm
func DecompressData(compressed []byte, algorithm CompressionAlgorithm) ([]byte, error) {
	if len(compressed) == 0 {
		return compressed, nil
	}

	switch algorithm {
	case CompressionNone:
		return compressed, nil

	case CompressionGzip:
		reader, err := gzip.NewReader(bytes.NewReader(compressed))
		if err != nil {
			return nil, fmt.Errorf("failed to create gzip reader: %w", err)
		}
		defer reader.Close()

		data, err := io.ReadAll(reader)
		if err != nil {
			return nil, fmt.Errorf("failed to read from gzip reader: %w", err)
		}
		return data, nil

	case CompressionZlib:
		reader, err := zlib.NewReader(bytes.NewReader(compressed))
		if err != nil {
			return nil, fmt.Errorf("failed to create zlib reader: %w", err)
		}
		defer reader.Close()

		data, err := io.ReadAll(reader)
		if err != nil {
			return nil, fmt.Errorf("failed to read from zlib reader: %w", err)
		}
		return data, nil

	default:
		return nil, fmt.Errorf("unsupported compression algorithm: %s", algorithm)
	}
}

// GetBestCompression chooses the compression method for a payload size.
func GetBestCompression(data []byte) CompressionAlgorithm {
	if len(data) < compressionThreshold {
		return CompressionNone
	}
	return CompressionGzip
}

// CompressText compresses text data, choosing the algorithm by size.
func CompressText(text string) ([]byte, CompressionAlgorithm, error) {
	data := []byte(text)
	algorithm := GetBestCompression(data)

	compressed, err := CompressData(data, algorithm)
	if err != nil {
		return nil, CompressionNone, err
	}

	return compressed, algorithm, nil
}

// DecompressText decompresses text data
func DecompressText(compressed []byte, algorithm CompressionAlgorithm) (string, error) {
	data, err := DecompressData(compressed, algorithm)
	if err != nil {
		return "", err
	}

	return string(data), nil
}
