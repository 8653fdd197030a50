package federated

import (
	"github.com/oklog/ulid/v2"

	"github.com/atlasworlds/authkit/internal/auth/models"
)

// listenerRegistry is an ordered set of auth-state callbacks keyed by a
// stable subscription handle, so removal stays unambiguous even when the
// same callback value is registered twice. It carries no lock of its
// own: the owning Authenticator's state mutex guards every method.
type listenerRegistry struct {
	entries []listenerEntry
}

type listenerEntry struct {
	handle ulid.ULID
	fn     func(*models.Identity)
}

// add appends the callback in registration order and returns its handle.
func (r *listenerRegistry) add(fn func(*models.Identity)) ulid.ULID {
	handle := ulid.Make()
	r.entries = append(r.entries, listenerEntry{handle: handle, fn: fn})
	return handle
}

// remove drops the entry with the given handle, leaving the others in
// their original order.
func (r *listenerRegistry) remove(handle ulid.ULID) {
	for i, entry := range r.entries {
		if entry.handle == handle {
			r.entries = append(r.entries[:i], r.entries[i+1:]...)
			return
		}
	}
}

// snapshot returns the registered callbacks in registration order. The
// caller invokes them after releasing the state lock, so a callback may
// unsubscribe itself without deadlocking.
func (r *listenerRegistry) snapshot() []func(*models.Identity) {
	fns := make([]func(*models.Identity), len(r.entries))
	for i, entry := range r.entries {
		fns[i] = entry.fn
	}
	return fns
}
