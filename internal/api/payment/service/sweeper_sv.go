package paymentService

import (
	"context"
	"time"

	"KoffieePos/pkg/log"
)

// ExpireStalePayments moves pending QRIS payments past their deadline to the
// expired state so they stop being matchable.
func (s *paymentService) ExpireStalePayments(ctx context.Context) (int64, error) {
	repo, err := s.orderRepository.NewClient(false)
	if err != nil {
		return 0, err
	}

	expired, err := repo.Order.ExpireStalePayments(ctx)
	if err != nil {
		return 0, err
	}

	if expired > 0 {
		s.log.WithFields(log.Fields{
			"expired": expired,
		}).Info("Expired stale pending payments")
	}

	return expired, nil
}

// StartExpirySweeper runs ExpireStalePayments on a fixed interval until ctx
// is cancelled. It fires once immediately so a restart does not leave stale
// payments matchable for a full interval.
func (s *paymentService) StartExpirySweeper(ctx context.Context, interval time.Duration) {
	go func() {
		if _, err := s.ExpireStalePayments(ctx); err != nil {
			s.log.WithFields(log.Fields{
				"error": err.Error(),
			}).Error("Expiry sweep failed")
		}

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := s.ExpireStalePayments(ctx); err != nil {
					s.log.WithFields(log.Fields{
						"error": err.Error(),
					}).Error("Expiry sweep failed")
				}
			}
		}
	}()
}
