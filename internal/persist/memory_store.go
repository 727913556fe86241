package persist

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/accessgraph/engine/internal/accesserrors"
)

// row is one bi-temporal record: [ValidFrom, ValidTo). ValidTo ==
// temporalMax means the row is still live.
type row struct {
	ValidFrom time.Time
	ValidTo   time.Time
	EventID   string
}

func (r row) open() bool { return r.ValidTo.Equal(temporalMax) }

// EventLogEntry is one entry in the append-only (transactionTime,
// sequence, eventId) log CreateEvent maintains.
type EventLogEntry struct {
	EventID  string
	TxTime   time.Time
	Sequence int64
}

// MemoryStore is the in-memory reference EventPersister. Every relation's
// rows are keyed by a string built from the relevant identifiers via
// fmt.Sprintf("%v", ...) — the persister does not need U/G/P/A to be
// anything beyond comparable, so values are stringified once at the
// storage boundary rather than carried as typed map keys throughout.
type MemoryStore[U comparable, G comparable, P comparable, A comparable] struct {
	mu sync.Mutex

	lastTxTime time.Time
	lastSeq    int64
	log        []EventLogEntry

	rows map[string][]row
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore[U comparable, G comparable, P comparable, A comparable]() *MemoryStore[U, G, P, A] {
	return &MemoryStore[U, G, P, A]{rows: make(map[string][]row)}
}

var _ EventPersister[string, string, string, string] = (*MemoryStore[string, string, string, string])(nil)

func (s *MemoryStore[U, G, P, A]) CreateEvent(ctx context.Context, session Session, eventID string, txTime time.Time) (Sequence, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.lastTxTime.IsZero() && txTime.Before(s.lastTxTime) {
		return Sequence{}, accesserrors.MonotonicityViolated("event %s has txTime %s before lastTxTime %s", eventID, txTime, s.lastTxTime)
	}

	var seq int64
	if txTime.Equal(s.lastTxTime) {
		seq = s.lastSeq + 1
	}
	s.lastTxTime = txTime
	s.lastSeq = seq
	s.log = append(s.log, EventLogEntry{EventID: eventID, TxTime: txTime, Sequence: seq})
	return Sequence{TxTime: txTime, Sequence: seq}, nil
}

// Log returns a copy of the append-only event log, in insertion order.
func (s *MemoryStore[U, G, P, A]) Log() []EventLogEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]EventLogEntry, len(s.log))
	copy(out, s.log)
	return out
}

func key(parts ...any) string {
	out := ""
	for i, p := range parts {
		if i > 0 {
			out += "\x00"
		}
		out += fmt.Sprintf("%v", p)
	}
	return out
}

func (s *MemoryStore[U, G, P, A]) add(k, eventID string, txTime time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows[k] = append(s.rows[k], row{ValidFrom: txTime, ValidTo: temporalMax, EventID: eventID})
	return nil
}

func (s *MemoryStore[U, G, P, A]) remove(k, eventID string, txTime time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows := s.rows[k]
	for i := range rows {
		if rows[i].open() {
			rows[i].ValidTo = tick(txTime)
			s.rows[k] = rows
			return nil
		}
	}
	return accesserrors.NotFound("no open row for key %q", k)
}

// removePrefix closes every still-open row whose key has the given
// prefix, for cascading removals (removeUser/removeGroup/
// removeEntityType/removeEntity closing every dependent mapping row).
func (s *MemoryStore[U, G, P, A]) removePrefix(prefix string, txTime time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, rows := range s.rows {
		if len(k) < len(prefix) || k[:len(prefix)] != prefix {
			continue
		}
		for i := range rows {
			if rows[i].open() {
				rows[i].ValidTo = tick(txTime)
			}
		}
		s.rows[k] = rows
	}
}

// IsOpen reports whether key has a currently-live row — used by tests to
// assert on a persister's bi-temporal state.
func (s *MemoryStore[U, G, P, A]) IsOpen(k string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.rows[k] {
		if r.open() {
			return true
		}
	}
	return false
}

func (s *MemoryStore[U, G, P, A]) AddUser(ctx context.Context, session Session, eventID string, txTime time.Time, user U) error {
	return s.add(key("user", user), eventID, txTime)
}

func (s *MemoryStore[U, G, P, A]) RemoveUser(ctx context.Context, session Session, eventID string, txTime time.Time, user U) error {
	if err := s.remove(key("user", user), eventID, txTime); err != nil {
		return err
	}
	s.removePrefix(key("u2g", user)+"\x00", txTime)
	s.removePrefix(key("u2c", user)+"\x00", txTime)
	s.removePrefix(key("u2e", user)+"\x00", txTime)
	return nil
}

func (s *MemoryStore[U, G, P, A]) AddGroup(ctx context.Context, session Session, eventID string, txTime time.Time, group G) error {
	return s.add(key("group", group), eventID, txTime)
}

func (s *MemoryStore[U, G, P, A]) RemoveGroup(ctx context.Context, session Session, eventID string, txTime time.Time, group G) error {
	if err := s.remove(key("group", group), eventID, txTime); err != nil {
		return err
	}
	s.removePrefix(key("g2g", group)+"\x00", txTime)
	s.removePrefix(key("g2c", group)+"\x00", txTime)
	s.removePrefix(key("g2e", group)+"\x00", txTime)
	return nil
}

func (s *MemoryStore[U, G, P, A]) AddUserToGroup(ctx context.Context, session Session, eventID string, txTime time.Time, user U, group G) error {
	return s.add(key("u2g", user, group), eventID, txTime)
}

func (s *MemoryStore[U, G, P, A]) RemoveUserToGroup(ctx context.Context, session Session, eventID string, txTime time.Time, user U, group G) error {
	return s.remove(key("u2g", user, group), eventID, txTime)
}

func (s *MemoryStore[U, G, P, A]) AddGroupToGroup(ctx context.Context, session Session, eventID string, txTime time.Time, from, to G) error {
	return s.add(key("g2g", from, to), eventID, txTime)
}

func (s *MemoryStore[U, G, P, A]) RemoveGroupToGroup(ctx context.Context, session Session, eventID string, txTime time.Time, from, to G) error {
	return s.remove(key("g2g", from, to), eventID, txTime)
}

func (s *MemoryStore[U, G, P, A]) AddUserToComponent(ctx context.Context, session Session, eventID string, txTime time.Time, user U, component P, access A) error {
	return s.add(key("u2c", user, component, access), eventID, txTime)
}

func (s *MemoryStore[U, G, P, A]) RemoveUserToComponent(ctx context.Context, session Session, eventID string, txTime time.Time, user U, component P, access A) error {
	return s.remove(key("u2c", user, component, access), eventID, txTime)
}

func (s *MemoryStore[U, G, P, A]) AddGroupToComponent(ctx context.Context, session Session, eventID string, txTime time.Time, group G, component P, access A) error {
	return s.add(key("g2c", group, component, access), eventID, txTime)
}

func (s *MemoryStore[U, G, P, A]) RemoveGroupToComponent(ctx context.Context, session Session, eventID string, txTime time.Time, group G, component P, access A) error {
	return s.remove(key("g2c", group, component, access), eventID, txTime)
}

func (s *MemoryStore[U, G, P, A]) AddEntityType(ctx context.Context, session Session, eventID string, txTime time.Time, entityType string) error {
	return s.add(key("etype", entityType), eventID, txTime)
}

func (s *MemoryStore[U, G, P, A]) RemoveEntityType(ctx context.Context, session Session, eventID string, txTime time.Time, entityType string) error {
	if err := s.remove(key("etype", entityType), eventID, txTime); err != nil {
		return err
	}
	s.removePrefix(key("entity", entityType)+"\x00", txTime)
	return nil
}

func (s *MemoryStore[U, G, P, A]) AddEntity(ctx context.Context, session Session, eventID string, txTime time.Time, entityType, entity string) error {
	return s.add(key("entity", entityType, entity), eventID, txTime)
}

func (s *MemoryStore[U, G, P, A]) RemoveEntity(ctx context.Context, session Session, eventID string, txTime time.Time, entityType, entity string) error {
	return s.remove(key("entity", entityType, entity), eventID, txTime)
}

func (s *MemoryStore[U, G, P, A]) AddUserToEntity(ctx context.Context, session Session, eventID string, txTime time.Time, user U, entityType, entity string) error {
	return s.add(key("u2e", user, entityType, entity), eventID, txTime)
}

func (s *MemoryStore[U, G, P, A]) RemoveUserToEntity(ctx context.Context, session Session, eventID string, txTime time.Time, user U, entityType, entity string) error {
	return s.remove(key("u2e", user, entityType, entity), eventID, txTime)
}

func (s *MemoryStore[U, G, P, A]) AddGroupToEntity(ctx context.Context, session Session, eventID string, txTime time.Time, group G, entityType, entity string) error {
	return s.add(key("g2e", group, entityType, entity), eventID, txTime)
}

func (s *MemoryStore[U, G, P, A]) RemoveGroupToEntity(ctx context.Context, session Session, eventID string, txTime time.Time, group G, entityType, entity string) error {
	return s.remove(key("g2e", group, entityType, entity), eventID, txTime)
}
