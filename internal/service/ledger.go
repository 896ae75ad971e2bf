package service

import (
	"context"
	"errors"
	"time"

	"github.com/punchamoorthee/creditledger/internal/domain"
	"github.com/punchamoorthee/creditledger/internal/logger"
	"github.com/punchamoorthee/creditledger/internal/models"
	"github.com/punchamoorthee/creditledger/internal/store"
	"github.com/shopspring/decimal"
)

// LedgerService settles client debt. Every operation runs in one transaction
// that starts by locking the client row.
type LedgerService struct {
	store store.Store
	loc   *time.Location
	now   func() time.Time
}

// NewLedgerService builds the service. Calendar days, such as the default end
// of a purchase report, are taken in loc.
func NewLedgerService(s store.Store, loc *time.Location) *LedgerService {
	return &LedgerService{store: s, loc: loc, now: time.Now}
}

// Location is the zone calendar dates are interpreted in.
func (s *LedgerService) Location() *time.Location {
	return s.loc
}

// ClearDebt settles every unpaid purchase of the client and zeroes its debit.
// Calling it again once nothing is owed succeeds without changes.
func (s *LedgerService) ClearDebt(ctx context.Context, clientID int64) (*domain.Client, error) {
	var (
		client  *domain.Client
		cleared decimal.Decimal
		settled int64
	)
	err := s.store.WithTx(ctx, func(tx store.Tx) error {
		c, err := tx.LockClient(ctx, clientID)
		if err != nil {
			return mapNotFound("lock client", err, domain.ErrClientNotFound)
		}

		unpaid, err := tx.UnpaidPurchases(ctx, clientID)
		if err != nil {
			return storageErr("load unpaid purchases", err)
		}
		if settled, err = tx.MarkPaid(ctx, ids(unpaid), s.now()); err != nil {
			return storageErr("mark paid", err)
		}
		if err := tx.SetDebit(ctx, clientID, decimal.Zero); err != nil {
			return storageErr("reset debit", err)
		}

		cleared = c.Debit
		c.Debit = decimal.Zero
		if c.Purchases, err = tx.ClientPurchases(ctx, clientID); err != nil {
			return storageErr("load purchases", err)
		}
		client = c
		return nil
	})
	if err != nil {
		return nil, passThrough("clear debt", err)
	}

	purchasesSettled.WithLabelValues(models.ModeClear).Add(float64(settled))
	debitDecrement.WithLabelValues(models.ModeClear).Add(cleared.InexactFloat64())
	logger.Log.Info("debt cleared",
		logger.Int64("client_id", clientID),
		logger.Int64("settled", settled),
		logger.Stringer("amount", cleared),
	)
	return client, nil
}

// PartialPayment settles part of the client's debt.
//
// With purchase ids, the unpaid purchases among them that belong to the
// client are settled and the debit drops by the value of every listed
// purchase found, paid or not. With an amount, unpaid purchases are settled
// oldest first until one does not fit, and the debit drops by the full amount
// requested. Either way the cached debit can drift from the unpaid total;
// Audit reports it.
func (s *LedgerService) PartialPayment(ctx context.Context, clientID int64, req models.PartialPaymentRequest) (*models.PartialPaymentResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	resp := &models.PartialPaymentResponse{Mode: req.Mode()}
	var settled int64
	err := s.store.WithTx(ctx, func(tx store.Tx) error {
		c, err := tx.LockClient(ctx, clientID)
		if err != nil {
			return mapNotFound("lock client", err, domain.ErrClientNotFound)
		}

		var toSettle []int64
		switch resp.Mode {
		case models.ModeSelection:
			found, err := tx.PurchasesByID(ctx, clientID, req.PurchaseIDs)
			if err != nil {
				return storageErr("load selected purchases", err)
			}
			toSettle = ids(found)
			resp.PaidPurchaseIDs = toSettle
			resp.PaidAmount = domain.SumValues(found)
		default:
			unpaid, err := tx.UnpaidPurchases(ctx, clientID)
			if err != nil {
				return storageErr("load unpaid purchases", err)
			}
			alloc := Allocate(unpaid, *req.Amount)
			toSettle = alloc.SettledIDs()
			resp.PaidPurchases = alloc.Settled
			resp.PaidAmount = *req.Amount
		}

		if settled, err = tx.MarkPaid(ctx, toSettle, s.now()); err != nil {
			return storageErr("mark paid", err)
		}
		if c.Debit, err = tx.AdjustDebit(ctx, clientID, resp.PaidAmount.Neg()); err != nil {
			return storageErr("adjust debit", err)
		}
		if c.Purchases, err = tx.ClientPurchases(ctx, clientID); err != nil {
			return storageErr("load purchases", err)
		}
		resp.Client = c
		return nil
	})
	if err != nil {
		return nil, passThrough("partial payment", err)
	}

	// Settled rows carry their new state in the response.
	for i := range resp.PaidPurchases {
		resp.PaidPurchases[i] = findPurchase(resp.Client.Purchases, resp.PaidPurchases[i])
	}

	purchasesSettled.WithLabelValues(resp.Mode).Add(float64(settled))
	debitDecrement.WithLabelValues(resp.Mode).Add(resp.PaidAmount.InexactFloat64())
	logger.Log.Info("partial payment applied",
		logger.Int64("client_id", clientID),
		logger.String("mode", resp.Mode),
		logger.Int64("settled", settled),
		logger.Stringer("amount", resp.PaidAmount),
		logger.Stringer("debit", resp.Client.Debit),
	)
	return resp, nil
}

// PayPurchase settles a single purchase. The owner's debit drops by the
// purchase value only if it was still unpaid.
func (s *LedgerService) PayPurchase(ctx context.Context, purchaseID int64) (*domain.Purchase, error) {
	var (
		purchase *domain.Purchase
		settled  bool
	)
	err := s.store.WithTx(ctx, func(tx store.Tx) error {
		p, err := tx.Purchase(ctx, purchaseID)
		if err != nil {
			return mapNotFound("load purchase", err, domain.ErrPurchaseNotFound)
		}
		if _, err := tx.LockClient(ctx, p.ClientID); err != nil {
			return mapNotFound("lock client", err, domain.ErrClientNotFound)
		}

		// Re-read under the client lock so a concurrent settlement is seen.
		if p, err = tx.Purchase(ctx, purchaseID); err != nil {
			return mapNotFound("load purchase", err, domain.ErrPurchaseNotFound)
		}
		if p.Paid {
			purchase = p
			return nil
		}

		at := s.now()
		if _, err := tx.MarkPaid(ctx, []int64{p.ID}, at); err != nil {
			return storageErr("mark paid", err)
		}
		if _, err := tx.AdjustDebit(ctx, p.ClientID, p.Value.Neg()); err != nil {
			return storageErr("adjust debit", err)
		}
		p.Paid = true
		p.PaidAt = &at
		purchase = p
		settled = true
		return nil
	})
	if err != nil {
		return nil, passThrough("pay purchase", err)
	}

	if settled {
		purchasesSettled.WithLabelValues(models.ModeSingle).Inc()
		debitDecrement.WithLabelValues(models.ModeSingle).Add(purchase.Value.InexactFloat64())
		logger.Log.Info("purchase paid",
			logger.Int64("purchase_id", purchase.ID),
			logger.Int64("client_id", purchase.ClientID),
			logger.Stringer("amount", purchase.Value),
		)
	}
	return purchase, nil
}

// ClientPurchases lists the client's purchases sold within [start, end],
// optionally filtered by settlement state. Zero bounds default to the Unix
// epoch and the end of the current day in the service location.
func (s *LedgerService) ClientPurchases(ctx context.Context, clientID int64, start, end time.Time, paid *bool) (*models.PurchaseReport, error) {
	if start.IsZero() {
		start = time.Unix(0, 0).UTC()
	}
	if end.IsZero() {
		end = EndOfDay(s.now().In(s.loc))
	}
	if end.Before(start) {
		return nil, domain.Invalid("endDate is before startDate")
	}

	if _, err := s.store.Client(ctx, clientID); err != nil {
		return nil, mapNotFound("load client", err, domain.ErrClientNotFound)
	}

	ps, err := s.store.Purchases(ctx, domain.PurchaseFilter{ClientID: clientID, Start: start, End: end, Paid: paid})
	if err != nil {
		return nil, storageErr("list purchases", err)
	}
	return &models.PurchaseReport{
		Purchases:  ps,
		TotalValue: domain.SumValues(ps),
		Period:     models.Period{Start: start, End: end},
	}, nil
}

// Audit compares every client's cached debit with the sum of its unpaid
// purchases. It never corrects anything.
func (s *LedgerService) Audit(ctx context.Context) (*models.AuditReport, error) {
	clients, err := s.store.Clients(ctx)
	if err != nil {
		return nil, storageErr("list clients", err)
	}

	report := &models.AuditReport{CheckedAt: s.now().UTC(), Clients: len(clients), Drifts: []domain.DebitDrift{}}
	for _, c := range clients {
		unpaid := domain.UnpaidTotal(c.Purchases)
		if c.Debit.Equal(unpaid) {
			continue
		}
		report.Drifts = append(report.Drifts, domain.DebitDrift{
			ClientID: c.ID,
			Name:     c.Name,
			Cached:   c.Debit,
			Unpaid:   unpaid,
			Delta:    c.Debit.Sub(unpaid),
		})
	}
	if len(report.Drifts) > 0 {
		logger.Log.Warn("debit drift detected", logger.Int("clients", len(report.Drifts)))
	}
	return report, nil
}

// EndOfDay returns the last nanosecond of t's day in t's location.
func EndOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 23, 59, 59, 999999999, t.Location())
}

func ids(ps []domain.Purchase) []int64 {
	out := make([]int64, len(ps))
	for i, p := range ps {
		out[i] = p.ID
	}
	return out
}

func findPurchase(ps []domain.Purchase, want domain.Purchase) domain.Purchase {
	for _, p := range ps {
		if p.ID == want.ID {
			return p
		}
	}
	return want
}

// mapNotFound turns store.ErrNotFound into the given domain error and wraps
// anything else as a storage failure.
func mapNotFound(op string, err, notFound error) error {
	if errors.Is(err, store.ErrNotFound) {
		return notFound
	}
	return storageErr(op, err)
}

func storageErr(op string, err error) error {
	return &domain.StorageError{Op: op, Err: err}
}

// passThrough keeps domain errors as they are and wraps everything else, such
// as begin and commit failures, as a storage failure.
func passThrough(op string, err error) error {
	var se *domain.StorageError
	if errors.As(err, &se) ||
		errors.Is(err, domain.ErrInvalidRequest) ||
		errors.Is(err, domain.ErrProductInUse) ||
		domain.IsNotFound(err) {
		return err
	}
	return storageErr(op, err)
}
