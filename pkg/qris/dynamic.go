package qris

import (
	"strconv"
	"strings"
)

const (
	tagFormatIndicator  = "00"
	tagInitiationMethod = "01"
	tagAmount           = "54"
	tagCountryCode      = "58"
	tagChecksum         = "63"

	initiationDynamic = "12"
)

// MakeDynamic converts a static QRIS payload into a dynamic one that embeds
// amount (IDR, whole rupiah) as tag 54 and flags the point of initiation
// method as dynamic. The trailing checksum is stripped and regenerated, so
// the input may be passed with or without its 6304 header. Calling it again
// on an already-dynamic payload with the same amount is a no-op.
func MakeDynamic(staticPayload string, amount int64) (string, error) {
	if amount <= 0 {
		return "", ErrInvalidAmount
	}
	if len(staticPayload) < 8 || !strings.HasPrefix(staticPayload, tagFormatIndicator) {
		return "", ErrInvalidPayload
	}

	// Last 4 characters are the old CRC value; the 6304 tag header in front
	// of it is regenerated too.
	raw := staticPayload[:len(staticPayload)-4]
	raw = strings.TrimSuffix(raw, tagChecksum+"04")

	fields, err := Parse(raw)
	if err != nil {
		return "", err
	}

	fields = Upsert(fields, tagAmount, strconv.FormatInt(amount, 10), tagCountryCode)
	fields = setInitiationDynamic(fields)

	payload := Serialize(fields) + tagChecksum + "04"
	return payload + Checksum(payload), nil
}

// setInitiationDynamic rewrites tag 01 to the dynamic marker as a structured
// field edit, so a payload whose merchant data happens to contain the literal
// 010211 is left alone. The format indicator stays first, so a missing tag 01
// is inserted right behind it.
func setInitiationDynamic(fields []Field) []Field {
	for i := range fields {
		if fields[i].Tag == tagInitiationMethod {
			out := make([]Field, len(fields))
			copy(out, fields)
			out[i].Value = initiationDynamic
			return out
		}
	}

	out := make([]Field, 0, len(fields)+1)
	out = append(out, fields[0])
	out = append(out, Field{Tag: tagInitiationMethod, Value: initiationDynamic})
	out = append(out, fields[1:]...)
	return out
}
