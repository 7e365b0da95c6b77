package registry

import (
	"context"
	"errors"
	"log/slog"
	"regexp"
	"sync"
	"time"

	"github.com/Bhargav65/Silent-Byte/internal/model"
	"github.com/Bhargav65/Silent-Byte/internal/store"
)

// DefaultGracePeriod is how long a dropped connection may stay absent
// before its slot is vacated. Transport-level disconnects (network
// blips, tab backgrounding) are common and must not tear down a session
// that is about to resume.
const DefaultGracePeriod = 15 * time.Second

const storeTimeout = 3 * time.Second

var roomCodePattern = regexp.MustCompile(`^[A-Za-z0-9]{6}$`)

var (
	ErrInvalidCode  = errors.New("invalid room code")
	ErrRoomNotFound = errors.New("room not found")
)

// ValidCode reports whether code is a well-formed room code.
func ValidCode(code string) bool {
	return roomCodePattern.MatchString(code)
}

type room struct {
	slots map[model.Role]string // role -> connection handle
}

type slotKey struct {
	code string
	role model.Role
}

// pending records a disconnect whose slot has not yet been vacated.
type pending struct {
	timer  *time.Timer
	handle string
}

// Registry is the authoritative in-memory map of room code to
// participants. All mutations go through a single mutex; grace-period
// timers re-acquire it before touching state.
type Registry struct {
	mu      sync.Mutex
	rooms   map[string]*room
	pending map[slotKey]*pending

	store store.RoomStore
	grace time.Duration
}

func New(st store.RoomStore) *Registry {
	return NewWithGracePeriod(st, DefaultGracePeriod)
}

func NewWithGracePeriod(st store.RoomStore, grace time.Duration) *Registry {
	return &Registry{
		rooms:   make(map[string]*room),
		pending: make(map[slotKey]*pending),
		store:   st,
		grace:   grace,
	}
}

// WarmStart repopulates the registry from the durable store. The stored
// handles are stale (they belonged to the previous process); the first
// create/rejoin for each slot rebinds them. A store failure here is
// fatal to boot, so the error is returned rather than swallowed.
func (r *Registry) WarmStart(ctx context.Context) error {
	rooms, err := r.store.LoadAll(ctx)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, rec := range rooms {
		rm := &room{slots: make(map[model.Role]string)}
		for _, p := range rec.Participants {
			if p.Role.Valid() {
				rm.slots[p.Role] = p.Handle
			}
		}
		r.rooms[rec.Code] = rm
	}

	slog.Info("registry warmed from store", "rooms", len(rooms))
	return nil
}

// CreateOrRebindInitiator creates the room on first use, or rebinds the
// initiator slot's handle if the room already exists (idempotent
// re-registration, e.g. a page reload).
func (r *Registry) CreateOrRebindInitiator(code, handle string) (model.Role, error) {
	if !ValidCode(code) {
		return "", ErrInvalidCode
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.cancelPendingLocked(code, model.RoleInitiator)

	rm, ok := r.rooms[code]
	if !ok {
		rm = &room{slots: make(map[model.Role]string)}
		r.rooms[code] = rm
	}
	rm.slots[model.RoleInitiator] = handle

	r.persistLocked(code)
	return model.RoleInitiator, nil
}

// JoinAsResponder adds or rebinds the responder slot and returns the
// current initiator handle so the caller can notify them directly.
func (r *Registry) JoinAsResponder(code, handle string) (string, error) {
	if !ValidCode(code) {
		return "", ErrInvalidCode
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	rm, ok := r.rooms[code]
	if !ok || len(rm.slots) == 0 {
		return "", ErrRoomNotFound
	}

	r.cancelPendingLocked(code, model.RoleResponder)
	rm.slots[model.RoleResponder] = handle

	r.persistLocked(code)
	return rm.slots[model.RoleInitiator], nil
}

// Rejoin is the unconditional reconnection path: it cancels the
// matching pending disconnect, recreates the room if it was evicted,
// rebinds the slot, and returns the current occupants of both slots
// (empty string means vacant). The caller triggers renegotiation only
// when both slots are occupied after this call.
func (r *Registry) Rejoin(code string, role model.Role, handle string) (initiator, responder string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.cancelPendingLocked(code, role)

	rm, ok := r.rooms[code]
	if !ok {
		rm = &room{slots: make(map[model.Role]string)}
		r.rooms[code] = rm
	}
	rm.slots[role] = handle

	r.persistLocked(code)
	return rm.slots[model.RoleInitiator], rm.slots[model.RoleResponder]
}

// Leave removes whichever slot holds handle, immediately and without a
// grace period. Only used for explicit departure. Idempotent: an
// unknown handle is a no-op.
func (r *Registry) Leave(code, handle string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rm, ok := r.rooms[code]
	if !ok {
		return
	}

	for role, h := range rm.slots {
		if h != handle {
			continue
		}
		r.cancelPendingLocked(code, role)
		delete(rm.slots, role)
		break
	}

	if len(rm.slots) == 0 {
		delete(r.rooms, code)
		r.deleteStored(code)
		return
	}
	r.persistLocked(code)
}

// HandleDisconnect arms a grace-period timer for the slot currently
// holding handle. The (code, role) pair is returned synchronously so
// the caller can tell a tracked handle from an unknown one; whether the
// slot is actually vacated is decided when the timer fires. On expiry
// the slot is vacated and onEvicted invoked only if the slot still
// holds the same handle, so a stale timer racing a faster rejoin is a
// detectable no-op.
func (r *Registry) HandleDisconnect(handle string, onEvicted func(code string, role model.Role)) (string, model.Role, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	code, role, ok := r.findByHandleLocked(handle)
	if !ok {
		return "", "", false
	}

	// At most one pending timer per slot.
	r.cancelPendingLocked(code, role)

	key := slotKey{code: code, role: role}
	p := &pending{handle: handle}
	p.timer = time.AfterFunc(r.grace, func() {
		r.expire(code, role, handle, onEvicted)
	})
	r.pending[key] = p

	return code, role, true
}

// FindByHandle reports which room and role currently hold handle.
func (r *Registry) FindByHandle(handle string) (string, model.Role, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.findByHandleLocked(handle)
}

func (r *Registry) findByHandleLocked(handle string) (string, model.Role, bool) {
	for code, rm := range r.rooms {
		for role, h := range rm.slots {
			if h == handle {
				return code, role, true
			}
		}
	}
	return "", "", false
}

// expire runs in the timer goroutine after the grace period elapses.
func (r *Registry) expire(code string, role model.Role, handle string, onEvicted func(string, model.Role)) {
	r.mu.Lock()

	key := slotKey{code: code, role: role}
	if p, ok := r.pending[key]; ok && p.handle == handle {
		delete(r.pending, key)
	}

	rm, ok := r.rooms[code]
	if !ok || rm.slots[role] != handle {
		// A rejoin replaced the handle during the grace window.
		r.mu.Unlock()
		return
	}

	delete(rm.slots, role)
	if len(rm.slots) == 0 {
		delete(r.rooms, code)
		r.deleteStored(code)
	} else {
		r.persistLocked(code)
	}
	r.mu.Unlock()

	if onEvicted != nil {
		onEvicted(code, role)
	}
}

// cancelPendingLocked forgets any pending-disconnect timer for the
// slot. Safe to call when no timer exists, and after the timer has
// already fired: expiry re-validates the handle before mutating.
func (r *Registry) cancelPendingLocked(code string, role model.Role) {
	key := slotKey{code: code, role: role}
	if p, ok := r.pending[key]; ok {
		p.timer.Stop()
		delete(r.pending, key)
	}
}

// persistLocked syncs the room's current membership to the durable
// store. Best effort: failures are logged and swallowed, the in-memory
// state stays authoritative.
func (r *Registry) persistLocked(code string) {
	rm, ok := r.rooms[code]
	if !ok {
		return
	}

	rec := model.Room{Code: code}
	for _, role := range []model.Role{model.RoleInitiator, model.RoleResponder} {
		if h, ok := rm.slots[role]; ok {
			rec.Participants = append(rec.Participants, model.Participant{Handle: h, Role: role})
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()
	if err := r.store.Upsert(ctx, rec); err != nil {
		slog.Warn("room upsert failed", "code", code, "err", err)
	}
}

// deleteStored removes the durable record. A failed delete leaves at
// most a harmless stale row that a future upsert or load reconciles.
func (r *Registry) deleteStored(code string) {
	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()
	if err := r.store.Delete(ctx, code); err != nil {
		slog.Warn("room delete failed", "code", code, "err", err)
	}
}
