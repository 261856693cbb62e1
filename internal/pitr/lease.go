package pitr

import (
	"fmt"
	"sync"

	"dataguard/internal/entity"
)

// scopeLeases serializes recovery sessions whose entity scopes overlap.
// Two recoveries racing on the same restored state would corrupt it, so a
// session must hold the lease on every entity type it restores.
type scopeLeases struct {
	mu     sync.Mutex
	holder map[entity.Type]string
}

func newScopeLeases() *scopeLeases {
	return &scopeLeases{holder: make(map[entity.Type]string)}
}

// Acquire takes the lease on every listed entity type, or fails without
// taking any if one is already held by another session
func (l *scopeLeases) Acquire(sessionID string, entities []entity.Type) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, entityType := range entities {
		if holder, held := l.holder[entityType]; held && holder != sessionID {
			return fmt.Errorf("entity scope %s is locked by recovery session %s", entityType, holder)
		}
	}
	for _, entityType := range entities {
		l.holder[entityType] = sessionID
	}
	return nil
}

// Release frees every lease held by the session
func (l *scopeLeases) Release(sessionID string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for entityType, holder := range l.holder {
		if holder == sessionID {
			delete(l.holder, entityType)
		}
	}
}
