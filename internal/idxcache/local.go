package idxcache

import (
	lru "github.com/hashicorp/golang-lru"
)

// localStore is an in-process Store backed by two LRU caches, one for
// headers and one for pages, mirroring the split capacities an operator
// tunes independently (headers are few and hot, pages are many and cold).
type localStore struct {
	headers *lru.Cache
	pages   *lru.Cache
}

// NewLocal builds an in-process Store. headerCap and pageCap are the
// maximum number of resident entries in each tier.
func NewLocal(headerCap, pageCap int) Store {
	headers, err := lru.New(headerCap)
	if err != nil {
		// Only returned by golang-lru when size <= 0; fall back to a
		// single-entry cache rather than propagating a constructor error
		// through every call site that builds a reader.
		headers, _ = lru.New(1)
	}
	pages, err := lru.New(pageCap)
	if err != nil {
		pages, _ = lru.New(1)
	}
	return &localStore{headers: headers, pages: pages}
}

func (s *localStore) cacheFor(key any) *lru.Cache {
	switch key.(type) {
	case HeaderKey:
		return s.headers
	default:
		return s.pages
	}
}

func (s *localStore) Get(key any) ([]byte, bool) {
	v, ok := s.cacheFor(key).Get(key)
	if !ok {
		return nil, false
	}
	return v.([]byte), true
}

func (s *localStore) Set(key any, value []byte) {
	s.cacheFor(key).Add(key, value)
}

func (s *localStore) Has(key any) bool {
	return s.cacheFor(key).Contains(key)
}

func (s *localStore) GetPartial(key any, fn func(data []byte) error) (bool, error) {
	data, ok := s.Get(key)
	if !ok {
		return false, nil
	}
	if err := fn(data); err != nil {
		return true, err
	}
	return true, nil
}
