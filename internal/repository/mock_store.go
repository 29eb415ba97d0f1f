package repository

import (
	"context"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/relayhub/fanout-gateway/internal/domain"
)

// Hand-written, in-memory implementations of the repository interfaces
// used in unit tests. No mock-generation library needed. Each mock
// preserves the guarded semantics of its pg counterpart (atomic
// reservation, status-guarded transitions) behind a mutex, so the
// concurrency properties tested against the mocks hold against the
// real store too.

// MockContactRepository is a fixed set of known recipients.
type MockContactRepository struct {
	mu       sync.RWMutex
	contacts map[string]bool

	ExistsErr error
}

func NewMockContactRepository(known ...string) *MockContactRepository {
	m := &MockContactRepository{contacts: make(map[string]bool)}
	for _, id := range known {
		m.contacts[id] = true
	}
	return m
}

func (m *MockContactRepository) Add(recipientID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.contacts[recipientID] = true
}

func (m *MockContactRepository) Exists(_ context.Context, recipientID string) (bool, error) {
	if m.ExistsErr != nil {
		return false, m.ExistsErr
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.contacts[recipientID], nil
}

// MockUsageRepository keeps period counters and a rolling event log.
type MockUsageRepository struct {
	mu      sync.Mutex
	records map[string]*domain.UsageRecord // key: recipient|period
	events  map[string][]time.Time

	ReserveErr error
}

func NewMockUsageRepository() *MockUsageRepository {
	return &MockUsageRepository{
		records: make(map[string]*domain.UsageRecord),
		events:  make(map[string][]time.Time),
	}
}

// Seed sets an existing count for a (recipient, period) bucket.
func (m *MockUsageRepository) Seed(recipientID, periodKey string, count int, known bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[recipientID+"|"+periodKey] = &domain.UsageRecord{
		RecipientID: recipientID,
		PeriodKey:   periodKey,
		Count:       count,
		Known:       known,
		UpdatedAt:   time.Now().UTC(),
	}
}

func (m *MockUsageRepository) ReservePeriod(_ context.Context, recipientID, periodKey string, known bool, limit int) (*domain.UsageDecision, error) {
	if m.ReserveErr != nil {
		return nil, m.ReserveErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if limit <= 0 {
		return &domain.UsageDecision{Allowed: false, Remaining: 0}, nil
	}

	key := recipientID + "|" + periodKey
	rec, ok := m.records[key]
	if !ok {
		m.records[key] = &domain.UsageRecord{
			RecipientID: recipientID, PeriodKey: periodKey,
			Count: 1, Known: known, UpdatedAt: time.Now().UTC(),
		}
		return &domain.UsageDecision{Allowed: true, Remaining: limit - 1}, nil
	}
	if rec.Count >= limit {
		return &domain.UsageDecision{Allowed: false, Remaining: 0}, nil
	}
	rec.Count++
	rec.UpdatedAt = time.Now().UTC()
	return &domain.UsageDecision{Allowed: true, Remaining: limit - rec.Count}, nil
}

func (m *MockUsageRepository) ReserveRolling(_ context.Context, recipientID string, window time.Duration, known bool, limit int) (*domain.UsageDecision, error) {
	if m.ReserveErr != nil {
		return nil, m.ReserveErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if limit <= 0 {
		return &domain.UsageDecision{Allowed: false, Remaining: 0}, nil
	}

	now := time.Now()
	cutoff := now.Add(-window)
	var recent []time.Time
	for _, t := range m.events[recipientID] {
		if t.After(cutoff) {
			recent = append(recent, t)
		}
	}
	if len(recent) >= limit {
		m.events[recipientID] = recent
		return &domain.UsageDecision{Allowed: false, Remaining: 0}, nil
	}
	m.events[recipientID] = append(recent, now)
	_ = known
	return &domain.UsageDecision{Allowed: true, Remaining: limit - len(recent) - 1}, nil
}

// AgeEvents shifts a recipient's rolling-window events into the past,
// simulating the passage of time in tests.
func (m *MockUsageRepository) AgeEvents(recipientID string, by time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, ts := range m.events[recipientID] {
		m.events[recipientID][i] = ts.Add(-by)
	}
}

func (m *MockUsageRepository) CountRolling(_ context.Context, recipientID string, window time.Duration) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cutoff := time.Now().Add(-window)
	count := 0
	for _, t := range m.events[recipientID] {
		if t.After(cutoff) {
			count++
		}
	}
	return count, nil
}

func (m *MockUsageRepository) Get(_ context.Context, recipientID, periodKey string) (*domain.UsageRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[recipientID+"|"+periodKey]
	if !ok {
		return nil, domain.ErrNotFound
	}
	clone := *rec
	return &clone, nil
}

// MockMessageRepository is an append-only in-memory log.
type MockMessageRepository struct {
	mu       sync.Mutex
	messages []*domain.Message

	CreateErr error
}

func NewMockMessageRepository() *MockMessageRepository {
	return &MockMessageRepository{}
}

func (m *MockMessageRepository) Create(_ context.Context, msg *domain.Message) error {
	if m.CreateErr != nil {
		return m.CreateErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	clone := *msg
	m.messages = append(m.messages, &clone)
	return nil
}

func (m *MockMessageRepository) List(_ context.Context, f domain.MessageFilter) ([]*domain.Message, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var matched []*domain.Message
	for _, msg := range m.messages {
		if f.Status != nil && msg.Status != *f.Status {
			continue
		}
		if f.Channel != nil && msg.Channel != *f.Channel {
			continue
		}
		if f.Recipient != nil && msg.Recipient != *f.Recipient {
			continue
		}
		clone := *msg
		matched = append(matched, &clone)
	}
	return matched, len(matched), nil
}

// All returns a snapshot of every recorded message.
func (m *MockMessageRepository) All() []*domain.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*domain.Message, len(m.messages))
	copy(out, m.messages)
	return out
}

// MockCatalogRepository holds products, combos, and codes.
type MockCatalogRepository struct {
	mu       sync.Mutex
	products map[string]*domain.Product
	combos   map[string]*domain.Combo
	codes    []*domain.RedemptionCode
	seq      int

	AllocateErr error
}

func NewMockCatalogRepository() *MockCatalogRepository {
	return &MockCatalogRepository{
		products: make(map[string]*domain.Product),
		combos:   make(map[string]*domain.Combo),
	}
}

func (m *MockCatalogRepository) AddProduct(p domain.Product) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.products[p.ID] = &p
}

func (m *MockCatalogRepository) AddCombo(c domain.Combo) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.combos[c.ID] = &c
}

// AddCode appends an active code for the product. Creation order is the
// FIFO order used by allocation.
func (m *MockCatalogRepository) AddCode(productID, code string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	m.codes = append(m.codes, &domain.RedemptionCode{
		ID:        "code-" + strconv.Itoa(m.seq),
		ProductID: productID,
		Code:      code,
		Status:    domain.CodeActive,
		CreatedAt: time.Now().UTC().Add(time.Duration(m.seq) * time.Millisecond),
	})
}

// Codes returns a snapshot sorted by creation order.
func (m *MockCatalogRepository) Codes() []*domain.RedemptionCode {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*domain.RedemptionCode, len(m.codes))
	for i, c := range m.codes {
		clone := *c
		out[i] = &clone
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

func (m *MockCatalogRepository) GetProduct(_ context.Context, id string) (*domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	clone := *p
	return &clone, nil
}

func (m *MockCatalogRepository) GetCombo(_ context.Context, id string) (*domain.Combo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.combos[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	clone := *c
	return &clone, nil
}

func (m *MockCatalogRepository) AllocateCode(_ context.Context, productID string) (*domain.RedemptionCode, error) {
	if m.AllocateErr != nil {
		return nil, m.AllocateErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.allocateLocked(productID)
}

func (m *MockCatalogRepository) AllocateCodes(_ context.Context, productIDs []string) ([]*domain.RedemptionCode, error) {
	if m.AllocateErr != nil {
		return nil, m.AllocateErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	allocated := make([]*domain.RedemptionCode, 0, len(productIDs))
	for _, productID := range productIDs {
		c, err := m.allocateLocked(productID)
		if err != nil {
			// Transaction semantics: undo everything flipped in this call.
			for _, undo := range allocated {
				for _, orig := range m.codes {
					if orig.ID == undo.ID {
						orig.Status = domain.CodeActive
						orig.RedeemedAt = nil
					}
				}
			}
			return nil, err
		}
		allocated = append(allocated, c)
	}
	return allocated, nil
}

// allocateLocked picks the oldest active code. Caller holds the mutex,
// which gives the same one-winner guarantee as the guarded SQL update.
func (m *MockCatalogRepository) allocateLocked(productID string) (*domain.RedemptionCode, error) {
	var oldest *domain.RedemptionCode
	for _, c := range m.codes {
		if c.ProductID != productID || c.Status != domain.CodeActive {
			continue
		}
		if oldest == nil || c.CreatedAt.Before(oldest.CreatedAt) {
			oldest = c
		}
	}
	if oldest == nil {
		return nil, domain.ErrNoActiveCode
	}
	now := time.Now().UTC()
	oldest.Status = domain.CodeRedeemed
	oldest.RedeemedAt = &now
	clone := *oldest
	return &clone, nil
}

// MockSaleRepository keeps sales keyed by ID.
type MockSaleRepository struct {
	mu    sync.Mutex
	sales map[string]*domain.Sale

	CreateErr error
}

func NewMockSaleRepository() *MockSaleRepository {
	return &MockSaleRepository{sales: make(map[string]*domain.Sale)}
}

func (m *MockSaleRepository) Create(_ context.Context, s *domain.Sale) error {
	if m.CreateErr != nil {
		return m.CreateErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	clone := *s
	m.sales[s.ID] = &clone
	return nil
}

func (m *MockSaleRepository) GetByCorrelationID(_ context.Context, correlationID string) (*domain.Sale, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.sales {
		if s.CorrelationID == correlationID {
			clone := *s
			return &clone, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *MockSaleRepository) CompleteOnce(_ context.Context, id string, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sales[id]
	if !ok || s.Status != domain.SalePending {
		return false, nil
	}
	s.Status = domain.SaleCompleted
	s.CompletedAt = &at
	return true, nil
}

func (m *MockSaleRepository) MarkFulfilled(_ context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sales[id]; ok && s.FulfilledAt == nil {
		s.FulfilledAt = &at
	}
	return nil
}

func (m *MockSaleRepository) MarkExpired(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sales[id]; ok && s.Status == domain.SalePending {
		s.Status = domain.SaleExpired
	}
	return nil
}

func (m *MockSaleRepository) FindOverduePending(_ context.Context, cutoff time.Time) ([]*domain.Sale, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.Sale
	for _, s := range m.sales {
		if s.Status == domain.SalePending && !s.CreatedAt.After(cutoff) {
			clone := *s
			out = append(out, &clone)
		}
	}
	return out, nil
}

// Backdate shifts a sale's creation time into the past, simulating an
// aged pending charge in tests.
func (m *MockSaleRepository) Backdate(id string, by time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sales[id]; ok {
		s.CreatedAt = s.CreatedAt.Add(-by)
	}
}

// Get returns a sale snapshot by ID, for test assertions.
func (m *MockSaleRepository) Get(id string) *domain.Sale {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sales[id]; ok {
		clone := *s
		return &clone
	}
	return nil
}

// MockAccountRepository keeps balances keyed by user.
type MockAccountRepository struct {
	mu       sync.Mutex
	balances map[string]decimal.Decimal
}

func NewMockAccountRepository() *MockAccountRepository {
	return &MockAccountRepository{balances: make(map[string]decimal.Decimal)}
}

func (m *MockAccountRepository) Set(userID string, balance decimal.Decimal) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.balances[userID] = balance
}

func (m *MockAccountRepository) Get(_ context.Context, userID string) (*domain.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.balances[userID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &domain.Account{UserID: userID, Balance: b}, nil
}

func (m *MockAccountRepository) Deduct(_ context.Context, userID string, amount decimal.Decimal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.balances[userID]
	if !ok || b.LessThan(amount) {
		return domain.ErrInsufficientBalance
	}
	m.balances[userID] = b.Sub(amount)
	return nil
}

func (m *MockAccountRepository) Credit(_ context.Context, userID string, amount decimal.Decimal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.balances[userID] = m.balances[userID].Add(amount)
	return nil
}

// MockEndpointRepository keeps subscriber endpoints and delivery logs.
type MockEndpointRepository struct {
	mu        sync.Mutex
	endpoints []*domain.Endpoint
	logs      []*domain.DeliveryLog
}

func NewMockEndpointRepository(endpoints ...*domain.Endpoint) *MockEndpointRepository {
	return &MockEndpointRepository{endpoints: endpoints}
}

func (m *MockEndpointRepository) FindActive(_ context.Context, event domain.EventType) ([]*domain.Endpoint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.Endpoint
	for _, e := range m.endpoints {
		if e.Active && e.Subscribed(event) {
			clone := *e
			out = append(out, &clone)
		}
	}
	return out, nil
}

func (m *MockEndpointRepository) LogDelivery(_ context.Context, l *domain.DeliveryLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	clone := *l
	m.logs = append(m.logs, &clone)
	return nil
}

// Logs returns a snapshot of recorded delivery logs.
func (m *MockEndpointRepository) Logs() []*domain.DeliveryLog {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*domain.DeliveryLog, len(m.logs))
	copy(out, m.logs)
	return out
}
