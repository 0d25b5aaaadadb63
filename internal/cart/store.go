package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/Skotchmaster/treat_shop/pkg/logging"
)

// StorageKey is the single key the cart is persisted under.
const StorageKey = "cart"

var (
	ErrInvalidItem = errors.New("invalid cart item")
	ErrAddInFlight = errors.New("add already in progress for this product")
	ErrUnavailable = errors.New("product is no longer available")
)

type Item struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	PriceID  string          `json:"priceId"`
	Price    decimal.Decimal `json:"price"`
	Currency string          `json:"currency"`
	Image    string          `json:"image,omitempty"`
	Quantity int64           `json:"quantity"`
}

// Storage persists opaque values by key. Load returns nil, nil for a key that
// was never saved.
type Storage interface {
	Load(ctx context.Context, key string) ([]byte, error)
	Save(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

// Checker returns nil when the product can still be bought.
type Checker interface {
	CheckAvailable(ctx context.Context, productID string) error
}

type NoticeKind string

const (
	NoticeAdded       NoticeKind = "added"
	NoticeIncremented NoticeKind = "incremented"
	NoticeRemoved     NoticeKind = "removed"
	NoticeUnavailable NoticeKind = "unavailable"
	NoticeDropped     NoticeKind = "dropped"
)

type Notice struct {
	Kind     NoticeKind
	ItemID   string
	ItemName string
	Quantity int64
}

type Option func(*Store)

func WithNotify(fn func(Notice)) Option {
	return func(s *Store) { s.notify = fn }
}

type Store struct {
	storage Storage
	checker Checker
	notify  func(Notice)

	mu       sync.Mutex
	items    []Item
	inflight map[string]struct{}
}

// Open rehydrates the cart and drops every item the checker rejects.
func Open(ctx context.Context, storage Storage, checker Checker, opts ...Option) (*Store, error) {
	s := &Store{
		storage:  storage,
		checker:  checker,
		notify:   func(Notice) {},
		inflight: map[string]struct{}{},
	}
	for _, opt := range opts {
		opt(s)
	}

	raw, err := storage.Load(ctx, StorageKey)
	if err != nil {
		return nil, fmt.Errorf("load cart: %w", err)
	}
	if len(raw) > 0 {
		var loaded []Item
		if err := json.Unmarshal(raw, &loaded); err != nil {
			logging.FromContext(ctx).Warn("cart_decode_failed", "error", err)
		} else {
			s.items = wellFormed(loaded)
			if len(s.items) != len(loaded) {
				logging.FromContext(ctx).Warn("cart_entries_discarded", "count", len(loaded)-len(s.items))
				if err := s.persistLocked(ctx); err != nil {
					return nil, err
				}
			}
		}
	}

	if err := s.revalidate(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// wellFormed keeps stored entries with an id, a positive quantity and a
// positive price.
func wellFormed(items []Item) []Item {
	out := make([]Item, 0, len(items))
	for _, it := range items {
		if strings.TrimSpace(it.ID) == "" || it.Quantity <= 0 || !it.Price.IsPositive() {
			continue
		}
		out = append(out, it)
	}
	return out
}

func (s *Store) revalidate(ctx context.Context) error {
	s.mu.Lock()
	snapshot := append([]Item(nil), s.items...)
	s.mu.Unlock()
	if len(snapshot) == 0 {
		return nil
	}

	unavailable := make([]bool, len(snapshot))
	var g errgroup.Group
	for i, it := range snapshot {
		i, it := i, it
		g.Go(func() error {
			unavailable[i] = s.checker.CheckAvailable(ctx, it.ID) != nil
			return nil
		})
	}
	_ = g.Wait()

	drop := map[string]bool{}
	for i, it := range snapshot {
		if unavailable[i] {
			drop[it.ID] = true
		}
	}
	if len(drop) == 0 {
		return nil
	}

	s.mu.Lock()
	kept := s.items[:0:0]
	var dropped []Item
	for _, it := range s.items {
		if drop[it.ID] {
			dropped = append(dropped, it)
			continue
		}
		kept = append(kept, it)
	}
	s.items = kept
	err := s.persistLocked(ctx)
	s.mu.Unlock()

	for _, it := range dropped {
		s.notify(Notice{Kind: NoticeDropped, ItemID: it.ID, ItemName: it.Name})
	}
	return err
}

func (s *Store) persistLocked(ctx context.Context) error {
	data, err := json.Marshal(s.items)
	if err != nil {
		return fmt.Errorf("encode cart: %w", err)
	}
	if err := s.storage.Save(ctx, StorageKey, data); err != nil {
		return fmt.Errorf("save cart: %w", err)
	}
	return nil
}

func (s *Store) indexLocked(id string) int {
	for i := range s.items {
		if s.items[i].ID == id {
			return i
		}
	}
	return -1
}

// AddItem validates availability before mutating. While one add for a product
// is being checked, further adds for the same product return ErrAddInFlight.
func (s *Store) AddItem(ctx context.Context, item Item) error {
	if strings.TrimSpace(item.ID) == "" || strings.TrimSpace(item.PriceID) == "" {
		return fmt.Errorf("%w: product and price ids are required", ErrInvalidItem)
	}
	if !item.Price.IsPositive() {
		return fmt.Errorf("%w: price must be positive", ErrInvalidItem)
	}

	s.mu.Lock()
	if _, busy := s.inflight[item.ID]; busy {
		s.mu.Unlock()
		return ErrAddInFlight
	}
	s.inflight[item.ID] = struct{}{}
	s.mu.Unlock()

	checkErr := s.checker.CheckAvailable(ctx, item.ID)

	s.mu.Lock()
	delete(s.inflight, item.ID)
	if checkErr != nil {
		s.mu.Unlock()
		s.notify(Notice{Kind: NoticeUnavailable, ItemID: item.ID, ItemName: item.Name})
		return fmt.Errorf("%w: %s: %w", ErrUnavailable, item.ID, checkErr)
	}

	kind := NoticeAdded
	var qty int64 = 1
	if i := s.indexLocked(item.ID); i >= 0 {
		s.items[i].Quantity++
		qty = s.items[i].Quantity
		kind = NoticeIncremented
	} else {
		item.Quantity = 1
		s.items = append(s.items, item)
	}
	err := s.persistLocked(ctx)
	s.mu.Unlock()

	s.notify(Notice{Kind: kind, ItemID: item.ID, ItemName: item.Name, Quantity: qty})
	return err
}

func (s *Store) UpdateQuantity(ctx context.Context, id string, n int64) error {
	if n <= 0 {
		return s.RemoveItem(ctx, id)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexLocked(id)
	if i < 0 {
		return nil
	}
	s.items[i].Quantity = n
	return s.persistLocked(ctx)
}

func (s *Store) RemoveItem(ctx context.Context, id string) error {
	s.mu.Lock()
	i := s.indexLocked(id)
	if i < 0 {
		s.mu.Unlock()
		return nil
	}
	removed := s.items[i]
	s.items = append(s.items[:i:i], s.items[i+1:]...)
	err := s.persistLocked(ctx)
	s.mu.Unlock()

	s.notify(Notice{Kind: NoticeRemoved, ItemID: removed.ID, ItemName: removed.Name})
	return err
}

func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = nil
	if err := s.storage.Delete(ctx, StorageKey); err != nil {
		return fmt.Errorf("clear cart: %w", err)
	}
	return nil
}

func (s *Store) Items() []Item {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Item(nil), s.items...)
}

func (s *Store) TotalItems() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, it := range s.items {
		n += it.Quantity
	}
	return n
}

// TotalPrice sums price × quantity. Mixed currencies are not reconciled.
func (s *Store) TotalPrice() decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := decimal.Zero
	for _, it := range s.items {
		total = total.Add(it.Price.Mul(decimal.NewFromInt(it.Quantity)))
	}
	return total
}
