package purchase_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/relayhub/fanout-gateway/internal/allocator"
	"github.com/relayhub/fanout-gateway/internal/domain"
	"github.com/relayhub/fanout-gateway/internal/payment"
	"github.com/relayhub/fanout-gateway/internal/purchase"
	"github.com/relayhub/fanout-gateway/internal/queue"
	"github.com/relayhub/fanout-gateway/internal/repository"
)

// fakePaymentClient records the last charge request and echoes back a
// deterministic charge.
type fakePaymentClient struct {
	lastReq payment.ChargeRequest
	err     error
}

func (f *fakePaymentClient) CreateCharge(_ context.Context, req payment.ChargeRequest) (*payment.Charge, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.lastReq = req
	return &payment.Charge{
		CorrelationID: req.CorrelationID,
		Status:        "ACTIVE",
		Value:         req.Value,
		BRCode:        "00020126brcode",
		QRCodeImage:   "https://pix.example/qr.png",
	}, nil
}

type fixture struct {
	svc      *purchase.Service
	sales    *repository.MockSaleRepository
	accounts *repository.MockAccountRepository
	catalog  *repository.MockCatalogRepository
	pay      *fakePaymentClient
	q        *queue.Queue
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	sales := repository.NewMockSaleRepository()
	accounts := repository.NewMockAccountRepository()
	catalog := repository.NewMockCatalogRepository()
	pay := &fakePaymentClient{}
	q := queue.New()

	catalog.AddProduct(domain.Product{ID: "prod-1", Name: "Starter", Value: decimal.NewFromFloat(49.90)})
	catalog.AddCombo(domain.Combo{ID: "combo-1", Name: "Bundle", Value: decimal.NewFromFloat(89.90), ProductIDs: []string{"prod-1", "prod-2"}})

	svc := purchase.NewService(sales, accounts, catalog,
		allocator.New(catalog, zap.NewNop()),
		pay, q, 2*time.Hour, "https://pay.example/", zap.NewNop())

	return &fixture{svc: svc, sales: sales, accounts: accounts, catalog: catalog, pay: pay, q: q}
}

func validCharge() domain.CreateChargeRequest {
	return domain.CreateChargeRequest{
		BuyerName:  "Ana",
		BuyerPhone: "5511999990000",
		ProductID:  "prod-1",
	}
}

// drain empties the queue without blocking, returning everything queued.
func drain(q *queue.Queue) []queue.Item {
	var items []queue.Item
	for {
		urgent, normal := q.Depths()
		if urgent+normal == 0 {
			return items
		}
		item, _ := q.Dequeue(context.Background())
		items = append(items, item)
	}
}

func TestCreateCharge(t *testing.T) {
	f := newFixture(t)

	receipt, err := f.svc.CreateCharge(context.Background(), validCharge())
	require.NoError(t, err)

	assert.Equal(t, domain.SalePending, receipt.Sale.Status)
	assert.NotEmpty(t, receipt.Sale.CorrelationID)
	assert.Equal(t, "00020126brcode", receipt.BRCode)
	assert.True(t, receipt.Sale.Amount.Equal(decimal.NewFromFloat(49.90)))

	// Value travels in cents.
	assert.Equal(t, int64(4990), f.pay.lastReq.Value)

	// Metadata carries the sale linkage for the webhook round trip.
	var gotID string
	for _, kv := range f.pay.lastReq.AdditionalInfo {
		if kv.Key == payment.InfoTransactionID {
			gotID = kv.Value
		}
	}
	assert.Equal(t, receipt.Sale.ID, gotID)

	// One sale.created event and one payment-instructions delivery.
	items := drain(f.q)
	require.Len(t, items, 2)
}

func TestCreateCharge_ValidationAndLookupErrors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	req := validCharge()
	req.BuyerName = ""
	_, err := f.svc.CreateCharge(ctx, req)
	assert.ErrorIs(t, err, domain.ErrMissingBuyer)

	req = validCharge()
	req.ProductID = "ghost"
	_, err = f.svc.CreateCharge(ctx, req)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCreateCharge_ProviderDown(t *testing.T) {
	f := newFixture(t)
	f.pay.err = errors.New("502 from provider")

	_, err := f.svc.CreateCharge(context.Background(), validCharge())
	assert.ErrorIs(t, err, domain.ErrUpstreamUnavailable)
}

func TestHandlePaymentEvent_Completed(t *testing.T) {
	f := newFixture(t)
	f.catalog.AddCode("prod-1", "AAA")

	receipt, err := f.svc.CreateCharge(context.Background(), validCharge())
	require.NoError(t, err)
	drain(f.q)

	evt := completedEvent(receipt.Sale.CorrelationID)
	require.NoError(t, f.svc.HandlePaymentEvent(context.Background(), evt))

	sale := f.sales.Get(receipt.Sale.ID)
	assert.Equal(t, domain.SaleCompleted, sale.Status)
	require.NotNil(t, sale.CompletedAt)

	// payment.confirmed event plus the code delivery to the buyer.
	items := drain(f.q)
	require.Len(t, items, 2)
	var sawDelivery bool
	for _, item := range items {
		if item.Kind == queue.KindDelivery {
			sawDelivery = true
			assert.Contains(t, item.Body, "AAA")
			assert.Equal(t, "5511999990000", item.Recipient)
		}
	}
	assert.True(t, sawDelivery, "expected a buyer delivery with the code")
}

// A redelivered completion webhook is acknowledged without allocating a
// second code.
func TestHandlePaymentEvent_DuplicateCompletion(t *testing.T) {
	f := newFixture(t)
	f.catalog.AddCode("prod-1", "AAA")
	f.catalog.AddCode("prod-1", "BBB")

	receipt, _ := f.svc.CreateCharge(context.Background(), validCharge())
	drain(f.q)

	evt := completedEvent(receipt.Sale.CorrelationID)
	require.NoError(t, f.svc.HandlePaymentEvent(context.Background(), evt))
	drain(f.q)

	require.NoError(t, f.svc.HandlePaymentEvent(context.Background(), evt))
	assert.Empty(t, drain(f.q), "duplicate webhook must produce no new work")

	var redeemed int
	for _, c := range f.catalog.Codes() {
		if c.Status == domain.CodeRedeemed {
			redeemed++
		}
	}
	assert.Equal(t, 1, redeemed, "only one code may be redeemed")
}

// A transient store failure during allocation must not strand the
// buyer: the completion is kept, the error propagates so the provider
// redelivers, and the redelivery hands out the codes.
func TestHandlePaymentEvent_ResumesAfterAllocationFailure(t *testing.T) {
	f := newFixture(t)
	f.catalog.AddCode("prod-1", "AAA")

	receipt, _ := f.svc.CreateCharge(context.Background(), validCharge())
	drain(f.q)

	evt := completedEvent(receipt.Sale.CorrelationID)
	f.catalog.AllocateErr = errors.New("store unavailable")
	require.Error(t, f.svc.HandlePaymentEvent(context.Background(), evt))
	drain(f.q) // confirmation event queued before the failure

	sale := f.sales.Get(receipt.Sale.ID)
	assert.Equal(t, domain.SaleCompleted, sale.Status)
	assert.Nil(t, sale.FulfilledAt, "a failed attempt must leave the sale unfulfilled")

	f.catalog.AllocateErr = nil
	require.NoError(t, f.svc.HandlePaymentEvent(context.Background(), evt))

	// Only the buyer delivery; the confirmation event is not republished.
	items := drain(f.q)
	require.Len(t, items, 1)
	assert.Equal(t, queue.KindDelivery, items[0].Kind)
	assert.Contains(t, items[0].Body, "AAA")
	require.NotNil(t, f.sales.Get(receipt.Sale.ID).FulfilledAt)

	// Once fulfilled, further redeliveries change nothing.
	require.NoError(t, f.svc.HandlePaymentEvent(context.Background(), evt))
	assert.Empty(t, drain(f.q))
}

func TestHandlePaymentEvent_CompletedButNoCodes(t *testing.T) {
	f := newFixture(t)

	receipt, _ := f.svc.CreateCharge(context.Background(), validCharge())
	drain(f.q)

	evt := completedEvent(receipt.Sale.CorrelationID)
	require.NoError(t, f.svc.HandlePaymentEvent(context.Background(), evt))

	// The sale stays completed and the buyer gets the support notice.
	assert.Equal(t, domain.SaleCompleted, f.sales.Get(receipt.Sale.ID).Status)

	var sawNotice bool
	for _, item := range drain(f.q) {
		if item.Kind == queue.KindDelivery {
			sawNotice = true
			assert.Contains(t, item.Body, receipt.Sale.ID)
		}
	}
	assert.True(t, sawNotice, "expected a support notice delivery")
}

func TestHandlePaymentEvent_Expired(t *testing.T) {
	f := newFixture(t)

	receipt, _ := f.svc.CreateCharge(context.Background(), validCharge())
	drain(f.q)

	evt := &payment.Event{Event: payment.EventChargeExpired}
	evt.Charge.CorrelationID = receipt.Sale.CorrelationID
	require.NoError(t, f.svc.HandlePaymentEvent(context.Background(), evt))

	assert.Equal(t, domain.SaleExpired, f.sales.Get(receipt.Sale.ID).Status)
}

func TestHandlePaymentEvent_TestPingAndUnknown(t *testing.T) {
	f := newFixture(t)

	ping := &payment.Event{Event: payment.EventTest}
	assert.NoError(t, f.svc.HandlePaymentEvent(context.Background(), ping))

	// The provider's live verification ping spells the field "evento".
	pingPT := &payment.Event{Evento: payment.EventTest}
	assert.True(t, pingPT.IsTest())
	assert.NoError(t, f.svc.HandlePaymentEvent(context.Background(), pingPT))

	unknown := &payment.Event{Event: "OPENPIX:SOMETHING_ELSE"}
	assert.ErrorIs(t, f.svc.HandlePaymentEvent(context.Background(), unknown), domain.ErrUnsupportedEvent)
}

func TestPurchaseWithBalance(t *testing.T) {
	f := newFixture(t)
	f.catalog.AddCode("prod-1", "AAA")
	f.accounts.Set("user-1", decimal.NewFromFloat(100))

	codes, err := f.svc.PurchaseWithBalance(context.Background(), "user-1", domain.ItemProduct, "prod-1")
	require.NoError(t, err)
	require.Len(t, codes, 1)

	acc, _ := f.accounts.Get(context.Background(), "user-1")
	assert.True(t, acc.Balance.Equal(decimal.NewFromFloat(50.10)), "balance should drop by the product value")
}

func TestPurchaseWithBalance_Insufficient(t *testing.T) {
	f := newFixture(t)
	f.catalog.AddCode("prod-1", "AAA")
	f.accounts.Set("user-1", decimal.NewFromFloat(10))

	_, err := f.svc.PurchaseWithBalance(context.Background(), "user-1", domain.ItemProduct, "prod-1")
	assert.ErrorIs(t, err, domain.ErrInsufficientBalance)

	acc, _ := f.accounts.Get(context.Background(), "user-1")
	assert.True(t, acc.Balance.Equal(decimal.NewFromFloat(10)), "failed purchase must not touch the balance")
}

// Allocation failure after a successful deduction refunds the buyer.
func TestPurchaseWithBalance_RefundOnAllocationFailure(t *testing.T) {
	f := newFixture(t)
	f.accounts.Set("user-1", decimal.NewFromFloat(100))
	// No codes for prod-1.

	_, err := f.svc.PurchaseWithBalance(context.Background(), "user-1", domain.ItemProduct, "prod-1")
	assert.ErrorIs(t, err, domain.ErrNoActiveCode)

	acc, _ := f.accounts.Get(context.Background(), "user-1")
	assert.True(t, acc.Balance.Equal(decimal.NewFromFloat(100)), "deduction must be credited back")
}

func TestExpireOverdue(t *testing.T) {
	f := newFixture(t)

	receipt, _ := f.svc.CreateCharge(context.Background(), validCharge())
	drain(f.q)

	// Fresh sale: not overdue yet.
	n, err := f.svc.ExpireOverdue(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)

	f.sales.Backdate(receipt.Sale.ID, 3*time.Hour)

	n, err = f.svc.ExpireOverdue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, domain.SaleExpired, f.sales.Get(receipt.Sale.ID).Status)
}

func completedEvent(correlationID string) *payment.Event {
	evt := &payment.Event{Event: payment.EventChargeCompleted}
	evt.Charge.CorrelationID = correlationID
	evt.Charge.Status = "COMPLETED"
	return evt
}
