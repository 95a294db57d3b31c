// Package storage carries the shipped ReceiptStorage implementations. Real
// object storage with presigned URLs lives outside this module; the engine
// only writes signature receipts by opaque key and never reads them back.
package storage

import (
	"context"
	"sync"
)

// MemoryReceipts holds receipts in memory, keyed by storage path. Used in
// development and tests.
type MemoryReceipts struct {
	mu       sync.RWMutex
	receipts map[string][]byte
}

func NewMemoryReceipts() *MemoryReceipts {
	return &MemoryReceipts{receipts: make(map[string][]byte)}
}

func (s *MemoryReceipts) StoreReceipt(_ context.Context, key string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	buf := make([]byte, len(data))
	copy(buf, data)
	s.receipts[key] = buf
	return nil
}

// Get returns a stored receipt. Test helper.
func (s *MemoryReceipts) Get(key string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.receipts[key]
	return data, ok
}
