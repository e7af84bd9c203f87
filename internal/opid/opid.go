// Package opid generates and tracks OperationIds (spec §3): opaque strings
// identifying one pipeline run, used in logs, temp filenames, and the
// cancelation registry (spec §5).
package opid

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// New mints a fresh OperationId, grounded on google/uuid (already used by
// the teacher for TranslationJob.ID and by askidmobile-AIWisper).
func New() string {
	return uuid.New().String()
}

// Registry tracks a context.CancelFunc per in-flight run so an external
// caller (a CLI signal handler, a future IPC layer) can cancel by id.
type Registry struct {
	mu      sync.Mutex
	cancels map[string]context.CancelFunc
}

func NewRegistry() *Registry {
	return &Registry{cancels: make(map[string]context.CancelFunc)}
}

// Register associates opID with a cancel function and returns a release
// function the caller must defer.
func (r *Registry) Register(opID string, cancel context.CancelFunc) (release func()) {
	r.mu.Lock()
	r.cancels[opID] = cancel
	r.mu.Unlock()
	return func() {
		r.mu.Lock()
		delete(r.cancels, opID)
		r.mu.Unlock()
	}
}

// Cancel cancels a registered run by id. Returns false if no such run is
// currently registered (already finished, or unknown id).
func (r *Registry) Cancel(opID string) bool {
	r.mu.Lock()
	cancel, ok := r.cancels[opID]
	r.mu.Unlock()
	if !ok {
		return false
	}
	cancel()
	return true
}
