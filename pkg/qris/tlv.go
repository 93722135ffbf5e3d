package qris

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	ErrMalformedPayload = errors.New("qris: field length exceeds remaining payload")
	ErrInvalidPayload   = errors.New("qris: payload must start with tag 00")
	ErrInvalidAmount    = errors.New("qris: amount must be positive")
)

// Field is one tag-length-value unit of a QRIS payload: a 2-character tag
// followed by a 2-digit decimal length and that many characters of value.
type Field struct {
	Tag   string
	Value string
}

// Parse splits a checksum-stripped payload into its ordered fields. The
// cursor advances 4+length per field; a declared length running past the end
// of the input fails with ErrMalformedPayload.
func Parse(payload string) ([]Field, error) {
	var fields []Field

	for i := 0; i < len(payload); {
		if len(payload)-i < 4 {
			return nil, ErrMalformedPayload
		}

		tag := payload[i : i+2]
		length, err := strconv.Atoi(payload[i+2 : i+4])
		if err != nil || length < 0 {
			return nil, ErrMalformedPayload
		}
		if i+4+length > len(payload) {
			return nil, ErrMalformedPayload
		}

		fields = append(fields, Field{Tag: tag, Value: payload[i+4 : i+4+length]})
		i += 4 + length
	}

	return fields, nil
}

// Serialize concatenates fields back into wire form, preserving their order.
// EMVCo payloads are conventionally sorted by ascending tag, but that is the
// caller's responsibility; nothing is re-sorted here.
func Serialize(fields []Field) string {
	var b strings.Builder
	for _, f := range fields {
		b.WriteString(f.Tag)
		b.WriteString(fmt.Sprintf("%02d", len(f.Value)))
		b.WriteString(f.Value)
	}
	return b.String()
}

// Upsert replaces the value of tag in place when the field already exists.
// Otherwise a new field is inserted immediately before the first occurrence
// of insertBefore, falling back to appending at the end. The anchor encodes a
// schema rule of the EMVCo tag ordering (e.g. the transaction amount, tag 54,
// sits before the country code, tag 58), so it is the caller's to choose.
func Upsert(fields []Field, tag, value, insertBefore string) []Field {
	for i := range fields {
		if fields[i].Tag == tag {
			out := make([]Field, len(fields))
			copy(out, fields)
			out[i].Value = value
			return out
		}
	}

	out := make([]Field, 0, len(fields)+1)
	inserted := false
	for _, f := range fields {
		if !inserted && insertBefore != "" && f.Tag == insertBefore {
			out = append(out, Field{Tag: tag, Value: value})
			inserted = true
		}
		out = append(out, f)
	}
	if !inserted {
		out = append(out, Field{Tag: tag, Value: value})
	}

	return out
}
