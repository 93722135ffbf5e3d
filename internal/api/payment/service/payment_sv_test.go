package paymentService

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	payment "KoffieePos/internal/api/payment"
	paymentRepository "KoffieePos/internal/api/payment/repository"
	"KoffieePos/internal/entity"
	"KoffieePos/pkg/qris"
	"KoffieePos/pkg/utils"
	"github.com/sirupsen/logrus"
)

// fakeOrderStore is an in-memory stand-in for the order repository. It keeps
// the same reservation semantics as the SQL layer: a final amount can only be
// held by one open payment at a time.
type fakeOrderStore struct {
	mu     sync.Mutex
	orders map[int64]*entity.Order
	now    func() time.Time
}

func newFakeOrderStore() *fakeOrderStore {
	return &fakeOrderStore{
		orders: make(map[int64]*entity.Order),
		now:    time.Now,
	}
}

func (f *fakeOrderStore) NewClient(tx bool) (paymentRepository.Client, error) {
	return paymentRepository.Client{
		Order:    f,
		Commit:   func() error { return nil },
		Rollback: func() error { return nil },
	}, nil
}

func (f *fakeOrderStore) put(order entity.Order) {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored := order
	f.orders[order.ID] = &stored
}

func (f *fakeOrderStore) get(id int64) entity.Order {
	f.mu.Lock()
	defer f.mu.Unlock()
	return *f.orders[id]
}

func (f *fakeOrderStore) GetOrderByID(ctx context.Context, id int64) (entity.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	order, ok := f.orders[id]
	if !ok {
		return entity.Order{}, payment.ErrOrderNotFound
	}
	return *order, nil
}

func (f *fakeOrderStore) ReservePaymentSlot(ctx context.Context, orderID, uniqueCode, finalAmount int64, expiresAt time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	now := f.now()
	for id, other := range f.orders {
		if id == orderID {
			continue
		}
		if other.FinalAmount == finalAmount &&
			other.PaymentStatus == entity.PaymentStatusPending &&
			other.PaymentExpiresAt != nil && other.PaymentExpiresAt.After(now) {
			return false, nil
		}
	}

	order, ok := f.orders[orderID]
	if !ok {
		return false, nil
	}

	order.UniqueCode = uniqueCode
	order.FinalAmount = finalAmount
	expiry := expiresAt
	order.PaymentExpiresAt = &expiry
	order.PaymentStatus = entity.PaymentStatusPending
	order.PaymentMethod = entity.PaymentMethodQRIS
	return true, nil
}

func (f *fakeOrderStore) FindPendingOrderByFinalAmount(ctx context.Context, amount int64) (entity.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	now := f.now()
	for _, order := range f.orders {
		if order.FinalAmount == amount &&
			order.PaymentStatus == entity.PaymentStatusPending &&
			order.PaymentExpiresAt != nil && order.PaymentExpiresAt.After(now) {
			return *order, nil
		}
	}
	return entity.Order{}, payment.ErrNoMatchingPayment
}

func (f *fakeOrderStore) MarkOrderPaid(ctx context.Context, orderID int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	order, ok := f.orders[orderID]
	if !ok || order.PaymentStatus != entity.PaymentStatusPending {
		return false, nil
	}

	now := f.now()
	order.PaymentStatus = entity.PaymentStatusPaid
	order.Status = entity.OrderStatusCompleted
	order.CompletedAt = &now
	return true, nil
}

func (f *fakeOrderStore) ExpireStalePayments(ctx context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	now := f.now()
	var expired int64
	for _, order := range f.orders {
		if order.PaymentStatus == entity.PaymentStatusPending &&
			order.PaymentExpiresAt != nil && !order.PaymentExpiresAt.After(now) {
			order.PaymentStatus = entity.PaymentStatusExpired
			expired++
		}
	}
	return expired, nil
}

func testStaticPayload(t *testing.T) string {
	t.Helper()

	fields := []qris.Field{
		{Tag: "00", Value: "01"},
		{Tag: "01", Value: "11"},
		{Tag: "26", Value: "0016ID.CO.KOFFIEE.WWW0215ID10221234567890303UMI"},
		{Tag: "52", Value: "5814"},
		{Tag: "53", Value: "360"},
		{Tag: "58", Value: "ID"},
		{Tag: "59", Value: "KOFFIEE KOPI"},
		{Tag: "60", Value: "JAKARTA"},
	}

	body := qris.Serialize(fields) + "6304"
	return body + qris.Checksum(body)
}

func newTestService(t *testing.T, store *fakeOrderStore) *paymentService {
	t.Helper()

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	return &paymentService{
		log:             logger,
		orderRepository: store,
		utils:           utils.New(),
		staticPayload:   testStaticPayload(t),
		renderBaseURL:   "http://localhost:3000",
	}
}

func pendingOrder(id int64, total int64) entity.Order {
	return entity.Order{
		ID:            id,
		OrderNumber:   fmt.Sprintf("ORD-%04d", id),
		CustomerName:  "Budi",
		Total:         total,
		Status:        entity.OrderStatusPending,
		PaymentStatus: entity.PaymentStatusUnpaid,
		CreatedAt:     time.Now(),
	}
}

func TestGeneratePaymentUniqueFinalAmounts(t *testing.T) {
	store := newFakeOrderStore()
	service := newTestService(t, store)

	const total = int64(27000)
	seen := make(map[int64]bool)

	for id := int64(1); id <= 50; id++ {
		store.put(pendingOrder(id, total))

		resp, err := service.GeneratePaymentForOrder(context.Background(), id)
		if err != nil {
			t.Fatalf("order %d: unexpected error: %v", id, err)
		}

		if resp.UniqueCode < 1 || resp.UniqueCode > 500 {
			t.Errorf("order %d: unique code %d out of range", id, resp.UniqueCode)
		}
		if resp.FinalAmount != total+resp.UniqueCode {
			t.Errorf("order %d: final amount %d != total %d + code %d", id, resp.FinalAmount, total, resp.UniqueCode)
		}
		if seen[resp.FinalAmount] {
			t.Errorf("order %d: final amount %d already issued to an open payment", id, resp.FinalAmount)
		}
		seen[resp.FinalAmount] = true

		window := time.Until(resp.ExpiresAt)
		if window < 14*time.Minute || window > 16*time.Minute {
			t.Errorf("order %d: expiry window %v, want ~15m", id, window)
		}
	}
}

func TestGeneratePayloadCarriesFinalAmount(t *testing.T) {
	store := newFakeOrderStore()
	service := newTestService(t, store)
	store.put(pendingOrder(1, 42000))

	resp, err := service.GeneratePaymentForOrder(context.Background(), 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	fields, err := qris.Parse(resp.QRISString[:len(resp.QRISString)-8])
	if err != nil {
		t.Fatalf("issued payload does not parse: %v", err)
	}

	var amount, initiation string
	for _, f := range fields {
		switch f.Tag {
		case "54":
			amount = f.Value
		case "01":
			initiation = f.Value
		}
	}

	if want := fmt.Sprintf("%d", resp.FinalAmount); amount != want {
		t.Errorf("tag 54 = %q, want %q", amount, want)
	}
	if initiation != "12" {
		t.Errorf("tag 01 = %q, want dynamic marker 12", initiation)
	}

	body := resp.QRISString[:len(resp.QRISString)-4]
	if got := qris.Checksum(body); !strings.HasSuffix(resp.QRISString, got) {
		t.Errorf("trailing CRC = %q, want %q", resp.QRISString[len(resp.QRISString)-4:], got)
	}

	if !strings.HasPrefix(resp.QRISImage, "data:image/png;base64,") {
		t.Errorf("QR image is not a PNG data URL: %q", resp.QRISImage[:min(len(resp.QRISImage), 30)])
	}
}

func TestGenerateThenVerifySettlesOrder(t *testing.T) {
	store := newFakeOrderStore()
	service := newTestService(t, store)
	store.put(pendingOrder(7, 27000))

	resp, err := service.GeneratePaymentForOrder(context.Background(), 7)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	result, err := service.VerifyIncomingPayment(context.Background(), resp.FinalAmount)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if !result.Matched {
		t.Fatal("expected the exact final amount to match")
	}
	if result.OrderID != 7 {
		t.Errorf("matched order %d, want 7", result.OrderID)
	}

	order := store.get(7)
	if order.PaymentStatus != entity.PaymentStatusPaid {
		t.Errorf("payment status = %q, want %q", order.PaymentStatus, entity.PaymentStatusPaid)
	}
	if order.Status != entity.OrderStatusCompleted {
		t.Errorf("order status = %q, want %q", order.Status, entity.OrderStatusCompleted)
	}
	if order.CompletedAt == nil {
		t.Error("settlement did not stamp completed_at")
	}

	// A duplicate notification for the same amount must be a quiet miss.
	again, err := service.VerifyIncomingPayment(context.Background(), resp.FinalAmount)
	if err != nil {
		t.Fatalf("repeat verify: %v", err)
	}
	if again.Matched {
		t.Error("settled payment matched a second time")
	}
}

func TestVerifyUnknownAmountIsQuietMiss(t *testing.T) {
	store := newFakeOrderStore()
	service := newTestService(t, store)
	store.put(pendingOrder(1, 27000))

	result, err := service.VerifyIncomingPayment(context.Background(), 999999)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Matched {
		t.Error("unrelated amount should not match any payment")
	}
}

func TestVerifyRejectsNonPositiveAmount(t *testing.T) {
	service := newTestService(t, newFakeOrderStore())

	for _, amount := range []int64{0, -500} {
		if _, err := service.VerifyIncomingPayment(context.Background(), amount); !errors.Is(err, payment.ErrInvalidAmount) {
			t.Errorf("amount %d: got %v, want ErrInvalidAmount", amount, err)
		}
	}
}

func TestVerifySkipsExpiredPayment(t *testing.T) {
	store := newFakeOrderStore()
	service := newTestService(t, store)

	stale := pendingOrder(3, 27000)
	stale.PaymentStatus = entity.PaymentStatusPending
	stale.UniqueCode = 123
	stale.FinalAmount = 27123
	past := time.Now().Add(-time.Minute)
	stale.PaymentExpiresAt = &past
	store.put(stale)

	result, err := service.VerifyIncomingPayment(context.Background(), 27123)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Matched {
		t.Error("expired payment must not be matchable")
	}
}

func TestGenerateOrderNotFound(t *testing.T) {
	service := newTestService(t, newFakeOrderStore())

	if _, err := service.GeneratePaymentForOrder(context.Background(), 404); !errors.Is(err, payment.ErrOrderNotFound) {
		t.Errorf("got %v, want ErrOrderNotFound", err)
	}
}

func TestGenerateOrderNotPayable(t *testing.T) {
	store := newFakeOrderStore()
	service := newTestService(t, store)

	done := pendingOrder(9, 15000)
	done.Status = entity.OrderStatusCompleted
	done.PaymentStatus = entity.PaymentStatusPaid
	store.put(done)

	if _, err := service.GeneratePaymentForOrder(context.Background(), 9); !errors.Is(err, payment.ErrOrderNotPayable) {
		t.Errorf("got %v, want ErrOrderNotPayable", err)
	}
}

func TestGenerateRejectsZeroTotal(t *testing.T) {
	store := newFakeOrderStore()
	service := newTestService(t, store)
	store.put(pendingOrder(2, 0))

	if _, err := service.GeneratePaymentForOrder(context.Background(), 2); !errors.Is(err, payment.ErrInvalidAmount) {
		t.Errorf("got %v, want ErrInvalidAmount", err)
	}
}

func TestGenerateReusesActivePayment(t *testing.T) {
	store := newFakeOrderStore()
	service := newTestService(t, store)
	store.put(pendingOrder(5, 30000))

	first, err := service.GeneratePaymentForOrder(context.Background(), 5)
	if err != nil {
		t.Fatalf("first generate: %v", err)
	}

	second, err := service.GeneratePaymentForOrder(context.Background(), 5)
	if err != nil {
		t.Fatalf("second generate: %v", err)
	}

	if second.FinalAmount != first.FinalAmount {
		t.Errorf("active code rotated: %d then %d", first.FinalAmount, second.FinalAmount)
	}
	if second.QRISString != first.QRISString {
		t.Error("regenerated payload differs from the originally issued one")
	}
}

func TestGenerateRejectsMalformedTemplate(t *testing.T) {
	store := newFakeOrderStore()
	service := newTestService(t, store)
	service.staticPayload = "garbage"
	store.put(pendingOrder(1, 27000))

	if _, err := service.GeneratePaymentForOrder(context.Background(), 1); !errors.Is(err, payment.ErrInvalidTemplate) {
		t.Errorf("got %v, want ErrInvalidTemplate", err)
	}
}

func TestGenerateExhaustsUniqueCodes(t *testing.T) {
	store := newFakeOrderStore()
	service := newTestService(t, store)

	const total = int64(27000)
	future := time.Now().Add(10 * time.Minute)

	// Every surcharge in [1, 500] is already held by another open payment,
	// so each of the bounded redraws must collide.
	for code := int64(1); code <= 500; code++ {
		blocker := pendingOrder(1000+code, total)
		blocker.PaymentStatus = entity.PaymentStatusPending
		blocker.UniqueCode = code
		blocker.FinalAmount = total + code
		expiry := future
		blocker.PaymentExpiresAt = &expiry
		store.put(blocker)
	}

	store.put(pendingOrder(1, total))

	if _, err := service.GeneratePaymentForOrder(context.Background(), 1); !errors.Is(err, payment.ErrPaymentSlotExhausted) {
		t.Errorf("got %v, want ErrPaymentSlotExhausted", err)
	}
}

func TestExpireStalePayments(t *testing.T) {
	store := newFakeOrderStore()
	service := newTestService(t, store)

	past := time.Now().Add(-time.Minute)
	future := time.Now().Add(10 * time.Minute)

	for i, expiry := range []time.Time{past, past, future} {
		order := pendingOrder(int64(i+1), 20000)
		order.PaymentStatus = entity.PaymentStatusPending
		order.FinalAmount = 20000 + int64(i+1)
		e := expiry
		order.PaymentExpiresAt = &e
		store.put(order)
	}

	expired, err := service.ExpireStalePayments(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if expired != 2 {
		t.Errorf("expired %d payments, want 2", expired)
	}

	if got := store.get(1).PaymentStatus; got != entity.PaymentStatusExpired {
		t.Errorf("stale order status = %q, want %q", got, entity.PaymentStatusExpired)
	}
	if got := store.get(3).PaymentStatus; got != entity.PaymentStatusPending {
		t.Errorf("live order status = %q, want %q", got, entity.PaymentStatusPending)
	}
}

func TestGetPaymentStatus(t *testing.T) {
	store := newFakeOrderStore()
	service := newTestService(t, store)
	store.put(pendingOrder(11, 18000))

	resp, err := service.GeneratePaymentForOrder(context.Background(), 11)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	status, err := service.GetPaymentStatus(context.Background(), 11)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if status.PaymentStatus != entity.PaymentStatusPending {
		t.Errorf("payment status = %q, want %q", status.PaymentStatus, entity.PaymentStatusPending)
	}
	if status.FinalAmount != resp.FinalAmount {
		t.Errorf("final amount = %d, want %d", status.FinalAmount, resp.FinalAmount)
	}
}
