package purchase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/relayhub/fanout-gateway/internal/allocator"
	"github.com/relayhub/fanout-gateway/internal/domain"
	"github.com/relayhub/fanout-gateway/internal/payment"
	"github.com/relayhub/fanout-gateway/internal/queue"
	"github.com/relayhub/fanout-gateway/internal/repository"
)

// ChargeReceipt is returned to the caller after a charge is created.
type ChargeReceipt struct {
	Sale        *domain.Sale `json:"sale"`
	BRCode      string       `json:"br_code"`
	QRCodeImage string       `json:"qr_code_image,omitempty"`
	PaymentLink string       `json:"payment_link,omitempty"`
}

// Service owns the purchase lifecycle: charge creation, the payment
// provider's asynchronous confirmation, and prepaid balance purchases.
type Service struct {
	sales    repository.SaleRepository
	accounts repository.AccountRepository
	catalog  repository.CatalogRepository
	alloc    *allocator.Allocator
	pay      payment.Client
	q        *queue.Queue

	chargeExpiry time.Duration
	checkoutURL  string
	logger       *zap.Logger
}

func NewService(
	sales repository.SaleRepository,
	accounts repository.AccountRepository,
	catalog repository.CatalogRepository,
	alloc *allocator.Allocator,
	pay payment.Client,
	q *queue.Queue,
	chargeExpiry time.Duration,
	checkoutURL string,
	logger *zap.Logger,
) *Service {
	return &Service{
		sales:        sales,
		accounts:     accounts,
		catalog:      catalog,
		alloc:        alloc,
		pay:          pay,
		q:            q,
		chargeExpiry: chargeExpiry,
		checkoutURL:  checkoutURL,
		logger:       logger,
	}
}

// CreateCharge validates the request, records a pending sale, and asks
// the payment provider for a PIX charge. The provider's metadata list
// carries the transaction id and item linkage so the completion webhook
// can find its way back.
func (s *Service) CreateCharge(ctx context.Context, req domain.CreateChargeRequest) (*ChargeReceipt, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	kind, itemID := domain.ItemProduct, req.ProductID
	var itemName string
	var amount decimal.Decimal

	if req.ComboID != "" {
		kind, itemID = domain.ItemCombo, req.ComboID
		combo, err := s.catalog.GetCombo(ctx, itemID)
		if err != nil {
			return nil, err
		}
		itemName, amount = combo.Name, combo.Value
	} else {
		product, err := s.catalog.GetProduct(ctx, itemID)
		if err != nil {
			return nil, err
		}
		itemName, amount = product.Name, product.Value
	}

	sale := &domain.Sale{
		ID:            uuid.New().String(),
		BuyerName:     req.BuyerName,
		BuyerPhone:    req.BuyerPhone,
		BuyerEmail:    req.BuyerEmail,
		Amount:        amount,
		Status:        domain.SalePending,
		ItemKind:      kind,
		ItemID:        itemID,
		CorrelationID: uuid.New().String(),
		Origin:        req.Origin,
		CreatedAt:     time.Now().UTC(),
	}
	if err := s.sales.Create(ctx, sale); err != nil {
		return nil, fmt.Errorf("persist sale: %w", err)
	}

	s.publishEvent(domain.EventSaleCreated, sale)

	charge, err := s.pay.CreateCharge(ctx, payment.ChargeRequest{
		CorrelationID: sale.CorrelationID,
		Value:         payment.Cents(amount),
		Comment:       itemName,
		ExpiresIn:     int(s.chargeExpiry.Seconds()),
		AdditionalInfo: []payment.KV{
			{Key: payment.InfoTransactionID, Value: sale.ID},
			{Key: payment.InfoBuyerName, Value: sale.BuyerName},
			{Key: payment.InfoBuyerPhone, Value: sale.BuyerPhone},
			{Key: payment.InfoItemKind, Value: string(kind)},
			{Key: payment.InfoOrigin, Value: sale.Origin},
		},
		Payer: payment.Payer{
			Name:  sale.BuyerName,
			Email: sale.BuyerEmail,
			Phone: sale.BuyerPhone,
		},
	})
	if err != nil {
		s.logger.Error("charge creation failed",
			zap.String("sale_id", sale.ID), zap.Error(err))
		return nil, domain.ErrUpstreamUnavailable
	}

	s.enqueueDelivery(sale.BuyerPhone, s.paymentInstructions(sale, itemName, charge))

	return &ChargeReceipt{
		Sale:        sale,
		BRCode:      charge.BRCode,
		QRCodeImage: charge.QRCodeImage,
		PaymentLink: s.paymentLink(charge),
	}, nil
}

// HandlePaymentEvent consumes one provider webhook event.
//
// Completion is idempotent: the status-guarded transition runs at most
// once, so a redelivered webhook is acknowledged without re-allocating
// codes. Allocation runs only after the transition is won.
func (s *Service) HandlePaymentEvent(ctx context.Context, evt *payment.Event) error {
	if evt.IsTest() {
		return nil
	}

	switch evt.Event {
	case payment.EventChargeCompleted:
		return s.handleCompleted(ctx, evt)
	case payment.EventChargeExpired:
		return s.handleExpired(ctx, evt)
	default:
		return domain.ErrUnsupportedEvent
	}
}

func (s *Service) handleCompleted(ctx context.Context, evt *payment.Event) error {
	sale, err := s.sales.GetByCorrelationID(ctx, evt.Charge.CorrelationID)
	if err != nil {
		return err
	}

	won, err := s.sales.CompleteOnce(ctx, sale.ID, time.Now().UTC())
	if err != nil {
		return err
	}
	if !won {
		if sale.Status == domain.SaleCompleted && sale.FulfilledAt == nil {
			// An earlier delivery won the completion but failed before
			// the codes went out; the provider redelivers on our 500.
			// Resume fulfillment without re-publishing the event.
			s.logger.Warn("resuming fulfillment of completed sale",
				zap.String("sale_id", sale.ID))
			return s.fulfill(ctx, sale)
		}
		s.logger.Info("duplicate completion event ignored", zap.String("sale_id", sale.ID))
		return nil
	}

	s.publishEvent(domain.EventPaymentConfirmed, sale)
	return s.fulfill(ctx, sale)
}

// fulfill allocates the sale's codes and hands them to delivery. A
// transient allocation error is returned unhandled, so the webhook
// answers 500 and the provider's redelivery lands on the resume path
// above. The fulfillment marker is written only after delivery is
// enqueued; a redelivered event after that point changes nothing.
func (s *Service) fulfill(ctx context.Context, sale *domain.Sale) error {
	codes, err := s.alloc.AllocateFor(ctx, sale.ItemKind, sale.ItemID)
	if err != nil {
		if errors.Is(err, domain.ErrNoActiveCode) {
			s.logger.Error("paid sale has no codes available",
				zap.String("sale_id", sale.ID), zap.String("item_id", sale.ItemID))
			s.enqueueDelivery(sale.BuyerPhone,
				"Seu pagamento foi confirmado, mas houve um problema ao liberar seu código. "+
					"Abra um chamado informando o ID "+sale.ID+".")
			s.markFulfilled(ctx, sale.ID)
			return nil
		}
		return err
	}

	s.enqueueDelivery(sale.BuyerPhone, codeDeliveryBody(sale, codes))
	s.markFulfilled(ctx, sale.ID)
	return nil
}

func (s *Service) markFulfilled(ctx context.Context, saleID string) {
	if err := s.sales.MarkFulfilled(ctx, saleID, time.Now().UTC()); err != nil {
		s.logger.Warn("marking sale fulfilled failed",
			zap.String("sale_id", saleID), zap.Error(err))
	}
}

func (s *Service) handleExpired(ctx context.Context, evt *payment.Event) error {
	sale, err := s.sales.GetByCorrelationID(ctx, evt.Charge.CorrelationID)
	if err != nil {
		return err
	}
	if err := s.sales.MarkExpired(ctx, sale.ID); err != nil {
		return err
	}
	s.publishEvent(domain.EventPaymentExpired, sale)
	return nil
}

// PurchaseWithBalance pays for an item from the buyer's prepaid
// balance. The conditional deduction runs first (it can never drive the
// balance negative); if allocation then fails the deduction is credited
// straight back, so a failed purchase never leaves balance deducted
// and a redeemed code never reverts.
func (s *Service) PurchaseWithBalance(ctx context.Context, userID string, kind domain.ItemKind, itemID string) ([]*domain.RedemptionCode, error) {
	var amount decimal.Decimal
	if kind == domain.ItemCombo {
		combo, err := s.catalog.GetCombo(ctx, itemID)
		if err != nil {
			return nil, err
		}
		amount = combo.Value
	} else {
		product, err := s.catalog.GetProduct(ctx, itemID)
		if err != nil {
			return nil, err
		}
		amount = product.Value
	}

	if err := s.accounts.Deduct(ctx, userID, amount); err != nil {
		return nil, err
	}

	codes, err := s.alloc.AllocateFor(ctx, kind, itemID)
	if err != nil {
		if creditErr := s.accounts.Credit(ctx, userID, amount); creditErr != nil {
			s.logger.Error("refund after failed allocation also failed",
				zap.String("user_id", userID), zap.Error(creditErr))
		}
		return nil, err
	}

	s.enqueueDelivery(userID, codeDeliveryBodyForUser(codes))
	return codes, nil
}

// ExpireOverdue marks pending sales older than the charge expiry as
// expired and publishes the cancellation event for each. Called by the
// background expiry worker.
func (s *Service) ExpireOverdue(ctx context.Context) (int, error) {
	cutoff := time.Now().UTC().Add(-s.chargeExpiry)
	overdue, err := s.sales.FindOverduePending(ctx, cutoff)
	if err != nil {
		return 0, err
	}

	for _, sale := range overdue {
		if err := s.sales.MarkExpired(ctx, sale.ID); err != nil {
			s.logger.Error("failed to expire sale",
				zap.String("sale_id", sale.ID), zap.Error(err))
			continue
		}
		s.publishEvent(domain.EventPaymentExpired, sale)
	}
	return len(overdue), nil
}

// ---- private helpers ----

func (s *Service) publishEvent(evt domain.EventType, sale *domain.Sale) {
	payload, err := json.Marshal(sale)
	if err != nil {
		s.logger.Error("failed to marshal event payload", zap.Error(err))
		return
	}
	if err := s.q.Enqueue(queue.Item{
		Kind:    queue.KindEvent,
		Event:   evt,
		Payload: payload,
	}); err != nil {
		s.logger.Warn("queue full: event webhook dropped",
			zap.String("event", string(evt)), zap.Error(err))
	}
}

func (s *Service) enqueueDelivery(recipient, body string) {
	if recipient == "" {
		return
	}
	if err := s.q.Enqueue(queue.Item{
		Kind:      queue.KindDelivery,
		Channel:   domain.ChannelWhatsApp,
		Recipient: recipient,
		Body:      body,
	}); err != nil {
		s.logger.Warn("queue full: buyer delivery dropped",
			zap.String("recipient", recipient), zap.Error(err))
	}
}

func (s *Service) paymentLink(charge *payment.Charge) string {
	if charge.PaymentLinkURL != "" {
		return charge.PaymentLinkURL
	}
	if s.checkoutURL != "" {
		return s.checkoutURL + charge.CorrelationID
	}
	return ""
}

func (s *Service) paymentInstructions(sale *domain.Sale, itemName string, charge *payment.Charge) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s, seu pedido de %s está quase liberado!\n\n", sale.BuyerName, itemName)
	if link := s.paymentLink(charge); link != "" {
		fmt.Fprintf(&b, "Pague via PIX pelo link: %s\n\n", link)
	}
	fmt.Fprintf(&b, "Ou copie e cole o código no app do seu banco:\n%s", charge.BRCode)
	return b.String()
}

func codeDeliveryBody(sale *domain.Sale, codes []*domain.RedemptionCode) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s, pagamento confirmado! Aqui está o seu acesso:\n", sale.BuyerName)
	for _, c := range codes {
		fmt.Fprintf(&b, "\nCódigo: %s", c.Code)
	}
	return b.String()
}

func codeDeliveryBodyForUser(codes []*domain.RedemptionCode) string {
	var b strings.Builder
	b.WriteString("Compra confirmada! Aqui está o seu acesso:\n")
	for _, c := range codes {
		fmt.Fprintf(&b, "\nCódigo: %s", c.Code)
	}
	return b.String()
}
