package cache

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

const defaultSize = 4096

// Memory is an in-process cache bounded by entry count and TTL.
type Memory struct {
	lru *expirable.LRU[string, []byte]
}

// NewMemory creates a memory cache holding at most size entries.
func NewMemory(size int, ttl time.Duration) *Memory {
	if size <= 0 {
		size = defaultSize
	}
	return &Memory{lru: expirable.NewLRU[string, []byte](size, nil, ttl)}
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, error) {
	v, ok := m.lru.Get(key)
	if !ok {
		return nil, ErrMiss
	}
	return v, nil
}

func (m *Memory) Set(_ context.Context, key string, val []byte) error {
	m.lru.Add(key, val)
	return nil
}

func (m *Memory) Backend() string { return "memory" }

// Len returns the number of live entries.
func (m *Memory) Len() int { return m.lru.Len() }
