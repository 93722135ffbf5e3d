package whatsapp

import (
	"fmt"
	"strings"
	"time"

	"KoffieePos/internal/entity"
)

// FormatPaymentInstructions is sent right after a dynamic QRIS is issued for
// an order. renderURL points at the public QR image endpoint.
func FormatPaymentInstructions(order entity.Order, renderURL string) string {
	expiry := ""
	if order.PaymentExpiresAt != nil {
		expiry = order.PaymentExpiresAt.Format("15:04")
	}

	return fmt.Sprintf(`
*MENUNGGU PEMBAYARAN* 🔔
Halo *%s*,

Pesanan *#%s* menunggu pembayaran QRIS sebesar *Rp %s*.

Scan kode QR berikut untuk membayar:
%s

Kode berlaku sampai pukul %s. Nominal transfer harus tepat sampai 3 digit terakhir agar pembayaran terverifikasi otomatis.
`, customerName(order), order.OrderNumber, FormatRupiah(order.FinalAmount), renderURL, expiry)
}

// FormatPaymentSuccess is sent when an incoming mutation matched the order.
func FormatPaymentSuccess(order entity.Order) string {
	date := time.Now().Format("02/01/2006 15:04")

	return fmt.Sprintf(`
*PEMBAYARAN DITERIMA!* ✅
Halo *%s*,

Terima kasih! Pembayaran untuk pesanan *#%s* sebesar *Rp %s* (QRIS) telah kami terima dan diverifikasi.

Status: *LUNAS*
Waktu: %s

Pesanan Anda sedang kami proses. Mohon ditunggu! ☕
`, customerName(order), order.OrderNumber, FormatRupiah(order.FinalAmount), date)
}

func customerName(order entity.Order) string {
	if order.CustomerName == "" {
		return "Pelanggan"
	}
	return order.CustomerName
}

// FormatRupiah renders 1250300 as "1.250.300".
func FormatRupiah(amount int64) string {
	digits := fmt.Sprintf("%d", amount)
	if amount < 0 {
		digits = digits[1:]
	}

	var groups []string
	for len(digits) > 3 {
		groups = append([]string{digits[len(digits)-3:]}, groups...)
		digits = digits[:len(digits)-3]
	}
	groups = append([]string{digits}, groups...)

	out := strings.Join(groups, ".")
	if amount < 0 {
		return "-" + out
	}
	return out
}
