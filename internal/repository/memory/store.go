// Package memory provides an in-process Store used by tests, the CLI fixture
// mode and single-node deployments without Postgres.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/spec-kit/assignment-engine/internal/domain"
	"github.com/spec-kit/assignment-engine/internal/repository"
)

type state struct {
	units         map[string]domain.WorkUnit
	items         map[string]domain.WorkItem
	itemOrder     map[string]int64
	ledger        []domain.LedgerEntry
	rotations     map[string]domain.RotationPointer
	ownership     []domain.OwnershipChange
	notifications map[string]domain.FailedNotification
	notifOrder    map[string]int64
	seq           int64
}

func newState() *state {
	return &state{
		units:         map[string]domain.WorkUnit{},
		items:         map[string]domain.WorkItem{},
		itemOrder:     map[string]int64{},
		rotations:     map[string]domain.RotationPointer{},
		notifications: map[string]domain.FailedNotification{},
		notifOrder:    map[string]int64{},
	}
}

func (s *state) clone() *state {
	c := &state{
		units:         make(map[string]domain.WorkUnit, len(s.units)),
		items:         make(map[string]domain.WorkItem, len(s.items)),
		itemOrder:     make(map[string]int64, len(s.itemOrder)),
		ledger:        append([]domain.LedgerEntry(nil), s.ledger...),
		rotations:     make(map[string]domain.RotationPointer, len(s.rotations)),
		ownership:     append([]domain.OwnershipChange(nil), s.ownership...),
		notifications: make(map[string]domain.FailedNotification, len(s.notifications)),
		notifOrder:    make(map[string]int64, len(s.notifOrder)),
		seq:           s.seq,
	}
	for k, v := range s.units {
		c.units[k] = v
	}
	for k, v := range s.items {
		c.items[k] = v
	}
	for k, v := range s.itemOrder {
		c.itemOrder[k] = v
	}
	for k, v := range s.rotations {
		c.rotations[k] = v
	}
	for k, v := range s.notifications {
		c.notifications[k] = v
	}
	for k, v := range s.notifOrder {
		c.notifOrder[k] = v
	}
	return c
}

func (s *state) next() int64 {
	s.seq++
	return s.seq
}

// Store keeps every table in maps guarded by a mutex. Transactions are
// serialized: WithinTx works on a private copy that replaces the shared
// state only when fn succeeds.
type Store struct {
	txMu sync.Mutex
	mu   sync.RWMutex
	st   *state
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{st: newState()}
}

// Repositories returns repositories where every call is its own unit of work.
func (s *Store) Repositories() repository.Repositories {
	return s.bind(&binding{store: s})
}

// WithinTx runs fn against an isolated copy of the state.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, repos repository.Repositories) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.RLock()
	working := s.st.clone()
	s.mu.RUnlock()

	if err := fn(ctx, s.bind(&binding{store: s, tx: working})); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	s.st = working
	s.mu.Unlock()
	return nil
}

// Ping always succeeds.
func (s *Store) Ping(context.Context) error {
	return nil
}

func (s *Store) bind(b *binding) repository.Repositories {
	return repository.Repositories{
		WorkUnits:     &workUnitRepository{b: b},
		WorkItems:     &workItemRepository{b: b},
		Ledger:        &ledgerRepository{b: b},
		Rotations:     &rotationRepository{b: b},
		Ownership:     &ownershipRepository{b: b},
		Notifications: &notificationRepository{b: b},
	}
}

// binding routes a repository call either to a transaction copy or to the
// shared state under the store locks.
type binding struct {
	store *Store
	tx    *state
}

func (b *binding) read(fn func(st *state) error) error {
	if b.tx != nil {
		return fn(b.tx)
	}
	b.store.mu.RLock()
	defer b.store.mu.RUnlock()
	return fn(b.store.st)
}

func (b *binding) write(fn func(st *state) error) error {
	if b.tx != nil {
		return fn(b.tx)
	}
	b.store.txMu.Lock()
	defer b.store.txMu.Unlock()
	b.store.mu.Lock()
	defer b.store.mu.Unlock()
	return fn(b.store.st)
}

type workUnitRepository struct{ b *binding }

func (r *workUnitRepository) Create(_ context.Context, unit *domain.WorkUnit) error {
	if unit.ID == "" {
		unit.ID = newID()
	}
	return r.b.write(func(st *state) error {
		st.units[unit.ID] = *unit
		return nil
	})
}

func (r *workUnitRepository) Update(_ context.Context, unit *domain.WorkUnit) error {
	return r.b.write(func(st *state) error {
		existing, ok := st.units[unit.ID]
		if !ok {
			return repository.ErrNotFound
		}
		updated := *unit
		updated.TargetResolution = existing.TargetResolution
		updated.CreatedAt = existing.CreatedAt
		st.units[unit.ID] = updated
		return nil
	})
}

func (r *workUnitRepository) GetByID(_ context.Context, id string) (*domain.WorkUnit, error) {
	var out *domain.WorkUnit
	err := r.b.read(func(st *state) error {
		unit, ok := st.units[id]
		if !ok {
			return repository.ErrNotFound
		}
		out = &unit
		return nil
	})
	return out, err
}

func (r *workUnitRepository) GetForUpdate(ctx context.Context, id string) (*domain.WorkUnit, error) {
	return r.GetByID(ctx, id)
}

type workItemRepository struct{ b *binding }

func (r *workItemRepository) Create(_ context.Context, item *domain.WorkItem) error {
	if item.ID == "" {
		item.ID = newID()
	}
	return r.b.write(func(st *state) error {
		if _, ok := st.units[item.WorkUnitID]; !ok {
			return repository.ErrNotFound
		}
		st.items[item.ID] = *item
		st.itemOrder[item.ID] = st.next()
		return nil
	})
}

func (r *workItemRepository) Update(_ context.Context, item *domain.WorkItem) error {
	return r.b.write(func(st *state) error {
		existing, ok := st.items[item.ID]
		if !ok {
			return repository.ErrNotFound
		}
		existing.Notes = item.Notes
		existing.TransferredToID = item.TransferredToID
		existing.TransferredByID = item.TransferredByID
		existing.ActedOn = item.ActedOn
		st.items[item.ID] = existing
		return nil
	})
}

func (r *workItemRepository) GetByID(_ context.Context, id string) (*domain.WorkItem, error) {
	var out *domain.WorkItem
	err := r.b.read(func(st *state) error {
		item, ok := st.items[id]
		if !ok {
			return repository.ErrNotFound
		}
		out = &item
		return nil
	})
	return out, err
}

func (r *workItemRepository) GetForUpdate(ctx context.Context, id string) (*domain.WorkItem, error) {
	return r.GetByID(ctx, id)
}

func (r *workItemRepository) ListByWorkUnit(_ context.Context, workUnitID string) ([]domain.WorkItem, error) {
	var out []domain.WorkItem
	err := r.b.read(func(st *state) error {
		for _, item := range st.items {
			if item.WorkUnitID == workUnitID {
				out = append(out, item)
			}
		}
		sortItems(st, out)
		return nil
	})
	return out, err
}

func (r *workItemRepository) ListOpenByAssignee(_ context.Context, assigneeID string) ([]domain.WorkItem, error) {
	var out []domain.WorkItem
	err := r.b.read(func(st *state) error {
		closed := map[string]bool{}
		for _, entry := range st.ledger {
			if entry.Status.IsTerminal() {
				closed[entry.WorkItemID] = true
			}
		}
		for _, item := range st.items {
			if item.AssigneeID == assigneeID && !closed[item.ID] {
				out = append(out, item)
			}
		}
		sortItems(st, out)
		return nil
	})
	return out, err
}

func sortItems(st *state, items []domain.WorkItem) {
	sort.SliceStable(items, func(i, j int) bool {
		if !items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].CreatedAt.Before(items[j].CreatedAt)
		}
		return st.itemOrder[items[i].ID] < st.itemOrder[items[j].ID]
	})
}

type ledgerRepository struct{ b *binding }

func (r *ledgerRepository) Append(_ context.Context, entry *domain.LedgerEntry) error {
	if entry.ID == "" {
		entry.ID = newID()
	}
	return r.b.write(func(st *state) error {
		if _, ok := st.items[entry.WorkItemID]; !ok {
			return repository.ErrNotFound
		}
		entry.Seq = st.next()
		st.ledger = append(st.ledger, *entry)
		return nil
	})
}

func (r *ledgerRepository) ListByWorkItem(_ context.Context, workItemID string) ([]domain.LedgerEntry, error) {
	var out []domain.LedgerEntry
	err := r.b.read(func(st *state) error {
		for _, entry := range st.ledger {
			if entry.WorkItemID == workItemID {
				out = append(out, entry)
			}
		}
		return nil
	})
	sort.SliceStable(out, func(i, j int) bool { return out[j].Later(out[i]) })
	return out, err
}

func (r *ledgerRepository) LatestStatuses(_ context.Context, workItemIDs []string) (map[string]domain.WorkItemStatus, error) {
	result := make(map[string]domain.WorkItemStatus, len(workItemIDs))
	err := r.b.read(func(st *state) error {
		latest := map[string]domain.LedgerEntry{}
		for _, entry := range st.ledger {
			current, ok := latest[entry.WorkItemID]
			if !ok || entry.Later(current) {
				latest[entry.WorkItemID] = entry
			}
		}
		for _, id := range workItemIDs {
			if entry, ok := latest[id]; ok {
				result[id] = entry.Status
			} else {
				result[id] = domain.WorkItemNew
			}
		}
		return nil
	})
	return result, err
}

func (r *ledgerRepository) RoleHasStatus(_ context.Context, workUnitID, role string, status domain.WorkItemStatus) (bool, error) {
	found := false
	err := r.b.read(func(st *state) error {
		for _, entry := range st.ledger {
			if entry.Status != status {
				continue
			}
			item, ok := st.items[entry.WorkItemID]
			if ok && item.WorkUnitID == workUnitID && item.Role == role {
				found = true
				return nil
			}
		}
		return nil
	})
	return found, err
}

type rotationRepository struct{ b *binding }

func (r *rotationRepository) Lock(_ context.Context, key string) (*domain.RotationPointer, error) {
	var out *domain.RotationPointer
	err := r.b.write(func(st *state) error {
		pointer, ok := st.rotations[key]
		if !ok {
			pointer = domain.RotationPointer{Key: key, UpdatedAt: time.Now().UTC()}
			st.rotations[key] = pointer
		}
		out = &pointer
		return nil
	})
	return out, err
}

func (r *rotationRepository) Save(_ context.Context, pointer *domain.RotationPointer) error {
	if pointer.UpdatedAt.IsZero() {
		pointer.UpdatedAt = time.Now().UTC()
	}
	return r.b.write(func(st *state) error {
		if _, ok := st.rotations[pointer.Key]; !ok {
			return repository.ErrNotFound
		}
		st.rotations[pointer.Key] = *pointer
		return nil
	})
}

type ownershipRepository struct{ b *binding }

func (r *ownershipRepository) Create(_ context.Context, change *domain.OwnershipChange) error {
	if change.ID == "" {
		change.ID = newID()
	}
	return r.b.write(func(st *state) error {
		st.ownership = append(st.ownership, *change)
		return nil
	})
}

func (r *ownershipRepository) ListByWorkUnit(_ context.Context, workUnitID string) ([]domain.OwnershipChange, error) {
	var out []domain.OwnershipChange
	err := r.b.read(func(st *state) error {
		for _, change := range st.ownership {
			if change.WorkUnitID == workUnitID {
				out = append(out, change)
			}
		}
		return nil
	})
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, err
}
