package bridge

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/ddokterview/ddokterview/internal/objstore"
	"github.com/ddokterview/ddokterview/pkg/models"
)

// ObjectBindings keeps bindings next to the session's other artifacts in the object store.
type ObjectBindings struct {
	store objstore.Store
}

// NewObjectBindings creates a binding store backed by store.
func NewObjectBindings(store objstore.Store) *ObjectBindings {
	return &ObjectBindings{store: store}
}

func (o *ObjectBindings) GetBinding(ctx context.Context, appSessionID string) (string, bool, error) {
	var b models.AgentBinding
	err := objstore.GetJSON(ctx, o.store, objstore.BindingPath(appSessionID), &b)
	if errors.Is(err, objstore.ErrNotExist) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	if b.RemoteSessionID == "" {
		return "", false, nil
	}
	return b.RemoteSessionID, true, nil
}

func (o *ObjectBindings) PutBinding(ctx context.Context, appSessionID, remoteSessionID string) error {
	return objstore.PutJSON(ctx, o.store, objstore.BindingPath(appSessionID), models.AgentBinding{
		AppSessionID:    appSessionID,
		RemoteSessionID: remoteSessionID,
		UpdatedAt:       time.Now().UTC(),
	})
}

// MemoryBindings is a process-local binding store.
type MemoryBindings struct {
	mu sync.RWMutex
	m  map[string]string
}

// NewMemoryBindings creates an empty in-memory store.
func NewMemoryBindings() *MemoryBindings {
	return &MemoryBindings{m: make(map[string]string)}
}

func (m *MemoryBindings) GetBinding(_ context.Context, appSessionID string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.m[appSessionID]
	return r, ok, nil
}

func (m *MemoryBindings) PutBinding(_ context.Context, appSessionID, remoteSessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.m[appSessionID] = remoteSessionID
	return nil
}
