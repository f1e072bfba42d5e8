package cart

import (
	"encoding/json"
	"os"
	"sync"

	"github.com/rs/zerolog"

	"github.com/Agroly/store/internal/entity"
	"github.com/Agroly/store/internal/localstate"
)

var logger = zerolog.New(os.Stdout).With().Timestamp().Logger()

// stateKey is where the serialized cart lives in local state.
const stateKey = "cart"

// Store holds the cart lines for the current session. At most one line per
// product id; lines keep insertion order. Every mutation persists the new
// cart before the in-memory copy is replaced, under one lock, so readers
// never observe memory and disk disagreeing.
type Store struct {
	mu    sync.Mutex
	lines []entity.CartLine
	state localstate.Store
}

func NewStore(state localstate.Store) *Store {
	return &Store{state: state}
}

// Restore loads the persisted cart. Missing or malformed state degrades to
// an empty cart; it never fails the caller.
func (s *Store) Restore() {
	raw, ok, err := s.state.Get(stateKey)
	if err != nil {
		logger.Error().Err(err).Msg("Error reading persisted cart")
		return
	}
	if !ok {
		return
	}

	var lines []entity.CartLine
	if err := json.Unmarshal([]byte(raw), &lines); err != nil {
		logger.Warn().Err(err).Msg("Persisted cart is malformed, starting empty")
		return
	}

	// Parseable state can still be corrupt; a line below quantity 1 cannot
	// exist in a valid cart, so it degrades to absence like any other
	// corruption.
	kept := make([]entity.CartLine, 0, len(lines))
	for _, l := range lines {
		if l.Quantity < 1 {
			logger.Warn().Msgf("Dropping persisted cart line for product %d with quantity %d", l.ProductID, l.Quantity)
			continue
		}
		kept = append(kept, l)
	}

	s.mu.Lock()
	s.lines = kept
	s.mu.Unlock()
}

// Add merges the product into the cart: an existing line gains one unit, a
// new line starts at quantity 1 with the product's current display fields.
func (s *Store) Add(p entity.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := cloneLines(s.lines)
	found := false
	for i := range next {
		if next[i].ProductID == p.ID {
			next[i].Quantity++
			found = true
			break
		}
	}
	if !found {
		next = append(next, entity.CartLine{
			ProductID: p.ID,
			Name:      p.Name,
			Price:     p.Price,
			PhotoURL:  p.PhotoURL,
			Quantity:  1,
		})
	}
	return s.commit(next)
}

// Increment adds one unit to the line. Unknown ids are a no-op.
func (s *Store) Increment(productID int) error {
	return s.adjust(productID, +1)
}

// Decrement removes one unit; a line reaching zero is removed entirely.
// Unknown ids are a no-op.
func (s *Store) Decrement(productID int) error {
	return s.adjust(productID, -1)
}

func (s *Store) adjust(productID, delta int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := cloneLines(s.lines)
	for i := range next {
		if next[i].ProductID != productID {
			continue
		}
		next[i].Quantity += delta
		if next[i].Quantity < 1 {
			next = append(next[:i], next[i+1:]...)
		}
		return s.commit(next)
	}
	return nil
}

// Remove deletes the line regardless of quantity. Unknown ids are a no-op.
func (s *Store) Remove(productID int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := cloneLines(s.lines)
	for i := range next {
		if next[i].ProductID == productID {
			next = append(next[:i], next[i+1:]...)
			return s.commit(next)
		}
	}
	return nil
}

// Clear empties the cart and persists the empty state. Called by checkout
// after a confirmed successful submission.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.commit([]entity.CartLine{})
}

// Lines returns a copy of the current cart lines.
func (s *Store) Lines() []entity.CartLine {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneLines(s.lines)
}

// Line returns the cart line for a product id, if present.
func (s *Store) Line(productID int) (entity.CartLine, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, l := range s.lines {
		if l.ProductID == productID {
			return l, true
		}
	}
	return entity.CartLine{}, false
}

// Totals derives the cart aggregates from the lines. Nothing here is
// stored, so displayed totals can never drift from the contents.
func (s *Store) Totals() entity.Totals {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.totalsLocked()
}

// Snapshot returns the lines and their derived totals from a single
// consistent view of the cart. Composite readers (checkout) use this so a
// mutation landing between two reads can never produce a total that
// disagrees with the lines it was derived from.
func (s *Store) Snapshot() ([]entity.CartLine, entity.Totals) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneLines(s.lines), s.totalsLocked()
}

func (s *Store) totalsLocked() entity.Totals {
	var t entity.Totals
	t.LineCount = len(s.lines)
	for _, l := range s.lines {
		t.ItemCount += l.Quantity
		t.TotalPrice += l.Price * float64(l.Quantity)
	}
	return t
}

// commit persists the candidate cart and only then installs it in memory.
// Callers hold s.mu. A persistence failure leaves the previous cart intact
// both in memory and on disk.
func (s *Store) commit(next []entity.CartLine) error {
	raw, err := json.Marshal(next)
	if err != nil {
		return err
	}
	if err := s.state.Set(stateKey, string(raw)); err != nil {
		logger.Error().Err(err).Msg("Error persisting cart")
		return err
	}
	s.lines = next
	return nil
}

func cloneLines(lines []entity.CartLine) []entity.CartLine {
	return append([]entity.CartLine(nil), lines...)
}
