package service

import (
	"context"
	"fmt"
	"time"

	"github.com/punchamoorthee/creditledger/internal/domain"
	"github.com/punchamoorthee/creditledger/internal/logger"
	"github.com/punchamoorthee/creditledger/internal/models"
	"github.com/punchamoorthee/creditledger/internal/notify"
	"github.com/punchamoorthee/creditledger/internal/store"
)

// SaleService records credit sales and talks to clients about them.
type SaleService struct {
	store    store.Store
	notifier notify.Notifier
	loc      *time.Location
	now      func() time.Time
}

// NewSaleService builds the service. Sales are dated in loc, which decides
// the due month and the times printed on receipts.
func NewSaleService(s store.Store, n notify.Notifier, loc *time.Location) *SaleService {
	return &SaleService{store: s, notifier: n, loc: loc, now: time.Now}
}

// RecordSale stores an unpaid purchase and raises the client's debit in one
// transaction. Stock and the receipt are handled after commit; their failures
// are logged and never undo the sale.
func (s *SaleService) RecordSale(ctx context.Context, req models.SaleRequest) (*domain.Purchase, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	sold := s.now().In(s.loc)
	purchase := &domain.Purchase{
		ClientID: req.ClientID,
		Value:    req.Value,
		DateSell: sold,
		DatePay:  domain.DueDate(sold),
		Items:    make([]domain.LineItem, len(req.Products)),
	}
	productIDs := make([]int64, len(req.Products))
	for i, it := range req.Products {
		purchase.Items[i] = domain.LineItem{ProductID: it.ProductID, Quantity: it.Quantity, Price: it.Price}
		productIDs[i] = it.ProductID
	}

	var client *domain.Client
	err := s.store.WithTx(ctx, func(tx store.Tx) error {
		c, err := tx.LockClient(ctx, req.ClientID)
		if err != nil {
			return mapNotFound("lock client", err, domain.ErrClientNotFound)
		}

		names, err := tx.ProductNames(ctx, productIDs)
		if err != nil {
			return storageErr("resolve products", err)
		}
		for i := range purchase.Items {
			name, ok := names[purchase.Items[i].ProductID]
			if !ok {
				return fmt.Errorf("product %d: %w", purchase.Items[i].ProductID, domain.ErrProductNotFound)
			}
			purchase.Items[i].ProductName = name
		}

		if err := tx.InsertPurchase(ctx, purchase); err != nil {
			return storageErr("insert purchase", err)
		}
		if c.Debit, err = tx.AdjustDebit(ctx, req.ClientID, purchase.Value); err != nil {
			return storageErr("adjust debit", err)
		}
		client = c
		return nil
	})
	if err != nil {
		return nil, passThrough("record sale", err)
	}
	salesRecorded.Inc()

	for _, it := range purchase.Items {
		if err := s.store.DecrementStock(ctx, it.ProductID, it.Quantity); err != nil {
			logger.Log.Error("stock decrement failed",
				logger.Int64("purchase_id", purchase.ID),
				logger.Int64("product_id", it.ProductID),
				logger.Error(err),
			)
		}
	}

	s.deliver(ctx, client.Contact, notify.Receipt(*purchase, client.Name, s.loc))

	logger.Log.Info("sale recorded",
		logger.Int64("purchase_id", purchase.ID),
		logger.Int64("client_id", client.ID),
		logger.Stringer("value", purchase.Value),
		logger.Stringer("debit", client.Debit),
	)
	return purchase, nil
}

// Sales lists every purchase with its items, oldest first.
func (s *SaleService) Sales(ctx context.Context) ([]domain.Purchase, error) {
	ps, err := s.store.Purchases(ctx, domain.PurchaseFilter{})
	if err != nil {
		return nil, storageErr("list sales", err)
	}
	return ps, nil
}

// SendDebtMessage reminds the client of its unpaid total. Delivery failures
// are reported in the response, not as an error.
func (s *SaleService) SendDebtMessage(ctx context.Context, clientID int64) (*models.DebtMessageResponse, error) {
	c, err := s.store.Client(ctx, clientID)
	if err != nil {
		return nil, mapNotFound("load client", err, domain.ErrClientNotFound)
	}

	total := domain.UnpaidTotal(c.Purchases)
	msg := notify.DebtReminder(c.Name, total)
	delivered := s.deliver(ctx, c.Contact, msg)
	logger.Log.Info("debt reminder",
		logger.Int64("client_id", c.ID),
		logger.Stringer("total", total),
		logger.Bool("delivered", delivered),
	)
	return &models.DebtMessageResponse{
		Success:   true,
		Delivered: delivered,
		Total:     total,
		Message:   msg,
	}, nil
}

// NotifierState reports the delivery channel state.
func (s *SaleService) NotifierState() notify.State {
	return s.notifier.State()
}

func (s *SaleService) deliver(ctx context.Context, to, msg string) bool {
	if err := s.notifier.Send(ctx, to, msg); err != nil {
		notificationsTotal.WithLabelValues("failed").Inc()
		logger.Log.Warn("notification failed", logger.String("to", to), logger.Error(err))
		return false
	}
	notificationsTotal.WithLabelValues("sent").Inc()
	return true
}
