package qris

import (
	"errors"
	"strings"
	"testing"
)

// buildStatic assembles a syntactically valid static merchant payload with a
// correct trailing checksum, in the shape printed on a shop counter standee.
func buildStatic(t *testing.T, fields []Field) string {
	t.Helper()
	payload := Serialize(fields) + "6304"
	return payload + Checksum(payload)
}

func sampleStatic(t *testing.T) string {
	t.Helper()
	return buildStatic(t, []Field{
		{Tag: "00", Value: "01"},
		{Tag: "01", Value: "11"},
		{Tag: "26", Value: "0011ID.DANA.WWW0209941903453"},
		{Tag: "52", Value: "5813"},
		{Tag: "53", Value: "360"},
		{Tag: "58", Value: "ID"},
		{Tag: "59", Value: "Public Koffiee"},
		{Tag: "60", Value: "Kab. Trenggalek"},
	})
}

func TestMakeDynamicInjectsAmount(t *testing.T) {
	dynamic, err := MakeDynamic(sampleStatic(t), 27450)
	if err != nil {
		t.Fatalf("MakeDynamic failed: %v", err)
	}

	fields, err := Parse(dynamic[:len(dynamic)-8]) // strip 6304 + CRC
	if err != nil {
		t.Fatalf("generated payload does not parse: %v", err)
	}

	var amounts []string
	var prevTag string
	for _, f := range fields {
		if f.Tag == "54" {
			amounts = append(amounts, f.Value)
			if prevTag != "53" {
				t.Fatalf("tag 54 not anchored before country code, follows %q", prevTag)
			}
		}
		prevTag = f.Tag
	}
	if len(amounts) != 1 || amounts[0] != "27450" {
		t.Fatalf("expected exactly one tag 54 = 27450, got %v", amounts)
	}
}

func TestMakeDynamicFlipsInitiationMethod(t *testing.T) {
	static := sampleStatic(t)
	if !strings.Contains(static, "010211") {
		t.Fatalf("fixture should carry the static initiation marker")
	}

	dynamic, err := MakeDynamic(static, 1000)
	if err != nil {
		t.Fatalf("MakeDynamic failed: %v", err)
	}

	if strings.Contains(dynamic, "010211") {
		t.Fatalf("dynamic payload still contains static marker: %s", dynamic)
	}
	if strings.Count(dynamic, "010212") != strings.Count(static, "010212")+1 {
		t.Fatalf("dynamic marker count off: %s", dynamic)
	}
}

func TestMakeDynamicInsertsInitiationWhenMissing(t *testing.T) {
	static := buildStatic(t, []Field{
		{Tag: "00", Value: "01"},
		{Tag: "53", Value: "360"},
		{Tag: "58", Value: "ID"},
	})

	dynamic, err := MakeDynamic(static, 500)
	if err != nil {
		t.Fatalf("MakeDynamic failed: %v", err)
	}

	fields, err := Parse(dynamic[:len(dynamic)-8])
	if err != nil {
		t.Fatalf("generated payload does not parse: %v", err)
	}
	if fields[0].Tag != "00" || fields[1].Tag != "01" || fields[1].Value != "12" {
		t.Fatalf("tag 01 not inserted behind format indicator: %+v", fields[:2])
	}
}

func TestMakeDynamicChecksumSelfConsistent(t *testing.T) {
	dynamic, err := MakeDynamic(sampleStatic(t), 27450)
	if err != nil {
		t.Fatalf("MakeDynamic failed: %v", err)
	}

	prefix, crc := dynamic[:len(dynamic)-4], dynamic[len(dynamic)-4:]
	if !strings.HasSuffix(prefix, "6304") {
		t.Fatalf("payload missing checksum header: %s", dynamic)
	}
	if got := Checksum(prefix); got != crc {
		t.Fatalf("trailing checksum %s does not verify, want %s", crc, got)
	}
}

func TestMakeDynamicIdempotent(t *testing.T) {
	first, err := MakeDynamic(sampleStatic(t), 27450)
	if err != nil {
		t.Fatalf("first MakeDynamic failed: %v", err)
	}

	second, err := MakeDynamic(first, 27450)
	if err != nil {
		t.Fatalf("second MakeDynamic failed: %v", err)
	}
	if first != second {
		t.Fatalf("MakeDynamic not idempotent:\n%s\n%s", first, second)
	}
}

func TestMakeDynamicReplacesExistingAmount(t *testing.T) {
	first, err := MakeDynamic(sampleStatic(t), 10000)
	if err != nil {
		t.Fatalf("MakeDynamic failed: %v", err)
	}

	second, err := MakeDynamic(first, 20500)
	if err != nil {
		t.Fatalf("re-conversion failed: %v", err)
	}

	fields, err := Parse(second[:len(second)-8])
	if err != nil {
		t.Fatalf("generated payload does not parse: %v", err)
	}
	count := 0
	for _, f := range fields {
		if f.Tag == "54" {
			count++
			if f.Value != "20500" {
				t.Fatalf("tag 54 = %q, want 20500", f.Value)
			}
		}
	}
	if count != 1 {
		t.Fatalf("expected one tag 54, found %d", count)
	}
}

func TestMakeDynamicRejectsBadInput(t *testing.T) {
	if _, err := MakeDynamic("garbage", 1000); !errors.Is(err, ErrInvalidPayload) {
		t.Fatalf("garbage input error = %v, want ErrInvalidPayload", err)
	}
	if _, err := MakeDynamic("", 1000); !errors.Is(err, ErrInvalidPayload) {
		t.Fatalf("empty input error = %v, want ErrInvalidPayload", err)
	}
	if _, err := MakeDynamic(sampleStatic(t), 0); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("zero amount error = %v, want ErrInvalidAmount", err)
	}

	// Structurally broken TLV behind a valid prefix.
	broken := "000201019911" + "6304FFFF"
	if _, err := MakeDynamic(broken, 1000); !errors.Is(err, ErrMalformedPayload) {
		t.Fatalf("overrun length error = %v, want ErrMalformedPayload", err)
	}
}
