package cache

import (
	"bufio"
	"bytes"
	"compress/bzip2"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

// Format 标识缓存文件的编码方式。
type Format int

const (
	FormatRaw Format = iota
	FormatBzip2
	FormatGzip
	FormatZstd
)

// String returns the lowercase format name used in log fields.
func (f Format) String() string {
	switch f {
	case FormatBzip2:
		return "bzip2"
	case FormatGzip:
		return "gzip"
	case FormatZstd:
		return "zstd"
	default:
		return "raw"
	}
}

// magicLen 是识别压缩格式所需的字节数。
const magicLen = 2

var (
	magicBzip2 = []byte("BZ")
	magicGzip  = []byte{0x1f, 0x8b}
	magicZstd  = []byte{0x28, 0xb5}
)

// SniffFormat 只根据前两个字节判断格式，不足两字节时视为原始内容。
func SniffFormat(header []byte) Format {
	if len(header) < magicLen {
		return FormatRaw
	}
	head := header[:magicLen]
	switch {
	case bytes.Equal(head, magicBzip2):
		return FormatBzip2
	case bytes.Equal(head, magicGzip):
		return FormatGzip
	case bytes.Equal(head, magicZstd):
		return FormatZstd
	default:
		return FormatRaw
	}
}

// ReadContent 读取文件并在识别到压缩格式时完整解压；解压失败返回
// ErrDecompressionFailed，绝不回退为原始字节。
func ReadContent(path string) ([]byte, Format, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, FormatRaw, fmt.Errorf("open cached file: %w", err)
	}
	defer f.Close()

	br := bufio.NewReader(f)
	header, err := br.Peek(magicLen)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, FormatRaw, fmt.Errorf("read cached file: %w", err)
	}

	format := SniffFormat(header)
	if format == FormatRaw {
		data, err := io.ReadAll(br)
		if err != nil {
			return nil, format, fmt.Errorf("read cached file: %w", err)
		}
		return data, format, nil
	}

	data, err := decompress(format, br)
	if err != nil {
		return nil, format, fmt.Errorf("%w: %s %s: %w", ErrDecompressionFailed, format, path, err)
	}
	return data, format, nil
}

func decompress(format Format, r io.Reader) ([]byte, error) {
	switch format {
	case FormatBzip2:
		return io.ReadAll(bzip2.NewReader(r))
	case FormatGzip:
		zr, err := gzip.NewReader(r)
		if err != nil {
			return nil, err
		}
		defer zr.Close()
		return io.ReadAll(zr)
	case FormatZstd:
		zr, err := zstd.NewReader(r)
		if err != nil {
			return nil, err
		}
		defer zr.Close()
		return io.ReadAll(zr)
	default:
		return nil, fmt.Errorf("unsupported format %s", format)
	}
}

// DecodeFile 读取、解压并解析缓存文件。
func DecodeFile(path string) (Document, error) {
	data, _, err := ReadContent(path)
	if err != nil {
		return Document{}, err
	}
	doc, err := ParseDocument(data)
	if err != nil {
		return Document{}, fmt.Errorf("%s: %w", path, err)
	}
	return doc, nil
}
