package cache

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
)

// Document 是解码后的缓存内容，同时保留原始 JSON 以便调用方按需反序列化。
type Document struct {
	raw   []byte
	value any
}

// Metadata 是远端内容自带的新鲜度信息。
type Metadata struct {
	Timestamp int64 `json:"timestamp"`
	TTL       int64 `json:"ttl"`
}

// ParseDocument 将字节解析为 JSON 文档；数字以 json.Number 保留精度。
func ParseDocument(data []byte) (Document, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var value any
	if err := dec.Decode(&value); err != nil {
		return Document{}, fmt.Errorf("%w: %w", ErrMalformedContent, err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return Document{}, fmt.Errorf("%w: trailing data after document", ErrMalformedContent)
	}

	return Document{raw: data, value: value}, nil
}

// Raw 返回解压后的 JSON 字节。
func (d Document) Raw() []byte {
	return d.raw
}

// Value 返回解析后的任意 JSON 值。
func (d Document) Value() any {
	return d.value
}

// Fields 在顶层为对象时返回其字段。
func (d Document) Fields() (map[string]any, bool) {
	fields, ok := d.value.(map[string]any)
	return fields, ok
}

// Unmarshal decodes the raw document into v.
func (d Document) Unmarshal(v any) error {
	return json.Unmarshal(d.raw, v)
}

// Metadata 提取顶层 metadata.timestamp / metadata.ttl，缺失或非整数时返回
// ErrMetadataMissing，不做任何推断或默认值填充。
func (d Document) Metadata() (Metadata, error) {
	var envelope struct {
		Metadata *struct {
			Timestamp *int64 `json:"timestamp"`
			TTL       *int64 `json:"ttl"`
		} `json:"metadata"`
	}
	if _, ok := d.Fields(); !ok {
		return Metadata{}, fmt.Errorf("%w: document is not an object", ErrMetadataMissing)
	}
	if err := json.Unmarshal(d.raw, &envelope); err != nil {
		return Metadata{}, fmt.Errorf("%w: %w", ErrMetadataMissing, err)
	}
	if envelope.Metadata == nil {
		return Metadata{}, fmt.Errorf("%w: no metadata section", ErrMetadataMissing)
	}
	if envelope.Metadata.Timestamp == nil || envelope.Metadata.TTL == nil {
		return Metadata{}, fmt.Errorf("%w: metadata requires timestamp and ttl", ErrMetadataMissing)
	}
	return Metadata{
		Timestamp: *envelope.Metadata.Timestamp,
		TTL:       *envelope.Metadata.TTL,
	}, nil
}
