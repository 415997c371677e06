package cache

import (
	"sync"
	"time"
)

// entry is a key's owner token and expiry
type entry struct {
	token     string
	expiresAt time.Time
}

// ttlKeys is a set of expiring keys, the in-process counterpart of Redis SET NX PX.
// Both in-memory fallbacks in this package are built on it.
type ttlKeys struct {
	mu        sync.Mutex
	entries   map[string]entry
	stopChan  chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// newTTLKeys starts a sweeper that drops expired keys every interval
func newTTLKeys(interval time.Duration) *ttlKeys {
	k := &ttlKeys{
		entries:  make(map[string]entry),
		stopChan: make(chan struct{}),
	}

	k.wg.Add(1)
	go k.sweepLoop(interval)

	return k
}

// setNX stores key unless a live entry exists. Returns true if it was stored.
func (k *ttlKeys) setNX(key, token string, ttl time.Duration) bool {
	k.mu.Lock()
	defer k.mu.Unlock()

	now := time.Now()
	if e, exists := k.entries[key]; exists && now.Before(e.expiresAt) {
		return false
	}
	k.entries[key] = entry{token: token, expiresAt: now.Add(ttl)}
	return true
}

// exists reports whether key is stored and not expired
func (k *ttlKeys) exists(key string) bool {
	k.mu.Lock()
	defer k.mu.Unlock()

	e, ok := k.entries[key]
	return ok && time.Now().Before(e.expiresAt)
}

// del removes key if token still owns it
func (k *ttlKeys) del(key, token string) bool {
	k.mu.Lock()
	defer k.mu.Unlock()

	e, ok := k.entries[key]
	if !ok || e.token != token {
		return false
	}
	delete(k.entries, key)
	return true
}

func (k *ttlKeys) size() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.entries)
}

// close stops the sweeper. Safe to call multiple times.
func (k *ttlKeys) close() {
	k.closeOnce.Do(func() {
		close(k.stopChan)
		k.wg.Wait()
	})
}

func (k *ttlKeys) sweepLoop(interval time.Duration) {
	defer k.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-k.stopChan:
			return
		case <-ticker.C:
			k.sweep()
		}
	}
}

// sweep removes expired entries
func (k *ttlKeys) sweep() {
	k.mu.Lock()
	defer k.mu.Unlock()

	now := time.Now()
	for key, e := range k.entries {
		if now.After(e.expiresAt) {
			delete(k.entries, key)
		}
	}
}
