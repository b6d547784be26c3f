package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mvtrinh/sneaker-market/internal/core/domain"
	"github.com/mvtrinh/sneaker-market/internal/port"
)

// MemoryStore implements every store port with in-memory state guarded
// by one mutex, which trivially gives the per-variant serialization the
// ports demand. Used by unit tests and the stress tool; production runs
// on MySQLStore.
type MemoryStore struct {
	mu           sync.Mutex
	variants     map[string]*domain.Variant
	reservations map[string]*domain.Reservation
	cartLines    map[string]*domain.CartLine // key: userID + "/" + variantID
	orders       map[string]*domain.Order
	records      map[string]*domain.ExpiredCartRecord
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		variants:     make(map[string]*domain.Variant),
		reservations: make(map[string]*domain.Reservation),
		cartLines:    make(map[string]*domain.CartLine),
		orders:       make(map[string]*domain.Order),
		records:      make(map[string]*domain.ExpiredCartRecord),
	}
}

// SeedVariant installs a variant for tests.
func (s *MemoryStore) SeedVariant(v domain.Variant) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := v
	s.variants[v.ID] = &cp
}

// VariantStock reads the current ledger count (test helper).
func (s *MemoryStore) VariantStock(variantID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v, ok := s.variants[variantID]; ok {
		return v.Stock
	}
	return -1
}

func (s *MemoryStore) GetVariant(_ context.Context, variantID string) (*domain.Variant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.variants[variantID]
	if !ok {
		return nil, domain.ErrVariantNotFound
	}
	cp := *v
	return &cp, nil
}

func (s *MemoryStore) AvailableStock(_ context.Context, variantID string, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.availableLocked(variantID, now, domain.Actor{})
}

// availableLocked computes availability excluding holds owned by skip
// (the actor about to supersede its own hold).
func (s *MemoryStore) availableLocked(variantID string, now time.Time, skip domain.Actor) (int, error) {
	v, ok := s.variants[variantID]
	if !ok {
		return 0, domain.ErrVariantNotFound
	}
	reserved := 0
	for _, r := range s.reservations {
		if r.VariantID == variantID && r.Live(now) && !(r.Actor == skip && !skip.IsZero()) {
			reserved += r.Quantity
		}
	}
	available := v.Stock - reserved
	if available < 0 {
		available = 0
	}
	return available, nil
}

func (s *MemoryStore) CreateReservation(_ context.Context, res domain.Reservation) (*domain.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := res.CreatedAt
	available, err := s.availableLocked(res.VariantID, now, res.Actor)
	if err != nil {
		return nil, err
	}
	if available < res.Quantity {
		return nil, &domain.InsufficientStockError{
			VariantID: res.VariantID,
			Requested: res.Quantity,
			Available: available,
		}
	}

	// supersede the actor's existing hold on this variant
	for _, r := range s.reservations {
		if r.Actor == res.Actor && r.VariantID == res.VariantID && r.Active {
			r.Active = false
			r.UpdatedAt = now
		}
	}

	cp := res
	s.reservations[res.ID] = &cp
	out := cp
	return &out, nil
}

func (s *MemoryStore) ExtendReservation(_ context.Context, actor domain.Actor, variantID string, extra time.Duration, now time.Time) (*domain.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.reservations {
		if r.Actor == actor && r.VariantID == variantID && r.Live(now) {
			r.ExpiresAt = r.ExpiresAt.Add(extra)
			r.UpdatedAt = now
			cp := *r
			return &cp, nil
		}
	}
	return nil, domain.ErrReservationNotFound
}

func (s *MemoryStore) ReleaseReservation(_ context.Context, actor domain.Actor, variantID string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.reservations {
		if r.Actor == actor && r.VariantID == variantID && r.Active {
			r.Active = false
			r.UpdatedAt = now
		}
	}
	return nil
}

func (s *MemoryStore) ReleaseAllReservations(_ context.Context, actor domain.Actor, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.reservations {
		if r.Actor == actor && r.Active {
			r.Active = false
			r.UpdatedAt = now
		}
	}
	return nil
}

func (s *MemoryStore) ActiveReservations(_ context.Context, actor domain.Actor, now time.Time) ([]domain.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Reservation
	for _, r := range s.reservations {
		if r.Actor == actor && r.Live(now) {
			out = append(out, *r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *MemoryStore) DeactivateExpired(_ context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var count int64
	for _, r := range s.reservations {
		if r.Active && r.ExpiresAt.Before(now) {
			r.Active = false
			r.UpdatedAt = now
			count++
		}
	}
	return count, nil
}

// ReservationByID is a test helper.
func (s *MemoryStore) ReservationByID(id string) (domain.Reservation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.reservations[id]; ok {
		return *r, true
	}
	return domain.Reservation{}, false
}

func cartKey(userID, variantID string) string { return userID + "/" + variantID }

func (s *MemoryStore) UpsertCartLine(_ context.Context, userID, variantID string, quantity int, now time.Time) (*domain.CartLine, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.upsertCartLineLocked(userID, variantID, quantity, now)
}

func (s *MemoryStore) upsertCartLineLocked(userID, variantID string, quantity int, now time.Time) (*domain.CartLine, error) {
	if _, ok := s.variants[variantID]; !ok {
		return nil, domain.ErrVariantNotFound
	}
	key := cartKey(userID, variantID)
	if line, ok := s.cartLines[key]; ok {
		line.Quantity += quantity
		line.UpdatedAt = now
		cp := *line
		return &cp, nil
	}
	line := &domain.CartLine{
		ID:        uuid.NewString(),
		UserID:    userID,
		VariantID: variantID,
		Quantity:  quantity,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.cartLines[key] = line
	cp := *line
	return &cp, nil
}

func (s *MemoryStore) SetCartLineQuantity(_ context.Context, userID, variantID string, quantity int, now time.Time) (*domain.CartLine, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	line, ok := s.cartLines[cartKey(userID, variantID)]
	if !ok {
		return nil, domain.ErrCartLineNotFound
	}
	line.Quantity = quantity
	line.UpdatedAt = now
	cp := *line
	return &cp, nil
}

func (s *MemoryStore) RemoveCartLine(_ context.Context, userID, variantID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.cartLines, cartKey(userID, variantID))
	return nil
}

func (s *MemoryStore) CartLines(_ context.Context, userID string) ([]domain.CartLine, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cartLinesLocked(userID), nil
}

func (s *MemoryStore) cartLinesLocked(userID string) []domain.CartLine {
	var out []domain.CartLine
	for _, line := range s.cartLines {
		if line.UserID == userID {
			out = append(out, *line)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].VariantID < out[j].VariantID })
	return out
}

func (s *MemoryStore) PlaceOrder(_ context.Context, p port.PlaceOrderParams) (*domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	lines := s.cartLinesLocked(p.UserID)
	priced := make([]domain.PricedLine, 0, len(lines))
	for _, line := range lines {
		v, ok := s.variants[line.VariantID]
		if !ok {
			return nil, domain.ErrVariantNotFound
		}
		priced = append(priced, domain.PricedLine{
			VariantID: line.VariantID,
			Quantity:  line.Quantity,
			UnitPrice: v.Price,
			Stock:     v.Stock,
		})
	}

	order, err := domain.BuildOrder(p.OrderID, p.OrderNumber, p.UserID,
		p.ShippingAddress, p.BillingAddress, p.PaymentMethod, priced, p.Now)
	if err != nil {
		return nil, err
	}

	for _, line := range order.Lines {
		s.variants[line.VariantID].Stock -= line.Quantity
		delete(s.cartLines, cartKey(p.UserID, line.VariantID))
		for _, r := range s.reservations {
			if r.Actor == domain.UserActor(p.UserID) && r.VariantID == line.VariantID && r.Active {
				r.Active = false
				r.UpdatedAt = p.Now
			}
		}
	}

	cp := *order
	s.orders[order.ID] = order
	return &cp, nil
}

func (s *MemoryStore) CancelOrder(_ context.Context, orderID string, now time.Time) (*domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	order, ok := s.orders[orderID]
	if !ok {
		return nil, domain.ErrOrderNotFound
	}
	if !order.Status.Cancellable() {
		return nil, &domain.OrderStateError{OrderID: orderID, From: order.Status, To: domain.OrderStatusCancelled}
	}
	order.Status = domain.OrderStatusCancelled
	order.UpdatedAt = now
	if order.PaymentStatus == domain.PaymentStatusPaid {
		order.PaymentStatus = domain.PaymentStatusRefunded
	}
	for _, line := range order.Lines {
		if v, ok := s.variants[line.VariantID]; ok {
			v.Stock += line.Quantity
		}
	}
	cp := *order
	return &cp, nil
}

func (s *MemoryStore) UpdateOrderStatus(_ context.Context, orderID string, next domain.OrderStatus, now time.Time) (*domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	order, ok := s.orders[orderID]
	if !ok {
		return nil, domain.ErrOrderNotFound
	}
	if !order.Status.CanTransitionTo(next) {
		return nil, &domain.OrderStateError{OrderID: orderID, From: order.Status, To: next}
	}
	order.Status = next
	order.UpdatedAt = now
	if next == domain.OrderStatusConfirmed {
		order.PaymentStatus = domain.PaymentStatusPaid
	}
	cp := *order
	return &cp, nil
}

func (s *MemoryStore) GetOrder(_ context.Context, orderID string) (*domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	order, ok := s.orders[orderID]
	if !ok {
		return nil, domain.ErrOrderNotFound
	}
	cp := *order
	return &cp, nil
}

func (s *MemoryStore) OrdersByUser(_ context.Context, userID string) ([]domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Order
	for _, order := range s.orders {
		if order.UserID == userID {
			out = append(out, *order)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *MemoryStore) ArchiveCartLine(_ context.Context, userID, variantID string, quantity int, window time.Duration, now time.Time) (*domain.ExpiredCartRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.variants[variantID]
	if !ok {
		return nil, domain.ErrVariantNotFound
	}

	for _, rec := range s.records {
		if rec.UserID == userID && rec.VariantID == variantID && now.Sub(rec.CreatedAt) <= window {
			rec.Quantity += quantity
			cp := *rec
			return &cp, nil
		}
	}

	rec := &domain.ExpiredCartRecord{
		ID:        uuid.NewString(),
		UserID:    userID,
		VariantID: variantID,
		Quantity:  quantity,
		UnitPrice: v.Price,
		CreatedAt: now,
	}
	s.records[rec.ID] = rec
	cp := *rec
	return &cp, nil
}

func (s *MemoryStore) ReorderRecord(_ context.Context, userID, recordID string, quantity int, now time.Time) (*domain.CartLine, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[recordID]
	if !ok || rec.UserID != userID {
		return nil, domain.ErrRecordNotFound
	}
	if quantity <= 0 {
		quantity = rec.Quantity
	}
	line, err := s.upsertCartLineLocked(userID, rec.VariantID, quantity, now)
	if err != nil {
		return nil, err
	}
	delete(s.records, recordID)
	return line, nil
}

func (s *MemoryStore) ExpiredRecords(_ context.Context, userID string) ([]domain.ExpiredCartRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.ExpiredCartRecord
	for _, rec := range s.records {
		if rec.UserID == userID {
			out = append(out, *rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *MemoryStore) PurgeExpiredRecords(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var count int64
	for id, rec := range s.records {
		if rec.CreatedAt.Before(cutoff) {
			delete(s.records, id)
			count++
		}
	}
	return count, nil
}
