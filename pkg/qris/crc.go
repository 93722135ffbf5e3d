package qris

import "fmt"

const crcPolynomial = 0x1021

// Checksum computes the CRC-16/CCITT-FALSE signature of payload and renders
// it as four uppercase hex digits. QRIS carries this value in tag 63; wallet
// apps reject any payload whose signature does not match, so this must stay
// bit-exact with the EMVCo reference.
func Checksum(payload string) string {
	var crc uint16 = 0xFFFF

	for i := 0; i < len(payload); i++ {
		crc ^= uint16(payload[i]) << 8
		for j := 0; j < 8; j++ {
			if crc&0x8000 != 0 {
				crc = crc<<1 ^ crcPolynomial
			} else {
				crc <<= 1
			}
		}
	}

	return fmt.Sprintf("%04X", crc)
}
