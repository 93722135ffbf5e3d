package utils

import (
	"crypto/rand"
	"errors"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

type IUtils interface {
	NewULIDFromTimestamp(t time.Time) (string, error)
	ParseRupiahAmount(text string) (int64, error)
	NormalizePhoneNumber(phone string) string
}

type utils struct{}

func New() IUtils {
	return &utils{}
}

func (u *utils) NewULIDFromTimestamp(t time.Time) (string, error) {
	ms := ulid.Timestamp(t)
	entropy := ulid.Monotonic(rand.Reader, 0)

	id, err := ulid.New(ms, entropy)
	if err != nil {
		return "", err
	}

	return id.String(), nil
}

// Bank mutation forwarders send free text like "Terima uang Rp 50.123 dari...";
// the nominal is the first rupiah-formatted number in the message.
var rupiahPattern = regexp.MustCompile(`(?i)Rp\s?([\d.,]+)`)

func (u *utils) ParseRupiahAmount(text string) (int64, error) {
	match := rupiahPattern.FindStringSubmatch(text)
	if len(match) < 2 {
		return 0, errors.New("no rupiah amount found in text")
	}

	digits := strings.NewReplacer(".", "", ",", "").Replace(match[1])
	amount, err := strconv.ParseInt(digits, 10, 64)
	if err != nil {
		return 0, err
	}
	if amount <= 0 {
		return 0, errors.New("parsed amount is not positive")
	}

	return amount, nil
}

// NormalizePhoneNumber strips formatting and rewrites a local 08xx number to
// the international 628xx form WhatsApp JIDs expect.
func (u *utils) NormalizePhoneNumber(phone string) string {
	var b strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}

	digits := b.String()
	if strings.HasPrefix(digits, "0") {
		digits = "62" + digits[1:]
	}

	return digits
}
