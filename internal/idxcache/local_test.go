package idxcache

import (
	"bytes"
	"testing"
)

func TestLocalStoreGetSetHas(t *testing.T) {
	s := NewLocal(4, 4)
	hk := HeaderKey{BaseRevision: 5, IsPacked: false, Kind: "l2p"}
	if s.Has(hk) {
		t.Fatal("expected miss before Set")
	}
	s.Set(hk, []byte("header-bytes"))
	if !s.Has(hk) {
		t.Fatal("expected hit after Set")
	}
	got, ok := s.Get(hk)
	if !ok || !bytes.Equal(got, []byte("header-bytes")) {
		t.Fatalf("Get() = %q, %v", got, ok)
	}
}

func TestLocalStoreGetPartial(t *testing.T) {
	s := NewLocal(4, 4)
	pk := PageKey{FirstRevision: 1, IsPacked: false, PageIndex: 0, Kind: "p2l"}
	s.Set(pk, []byte{1, 2, 3, 4})

	var firstByte byte
	found, err := s.GetPartial(pk, func(data []byte) error {
		firstByte = data[0]
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if !found || firstByte != 1 {
		t.Fatalf("GetPartial found=%v firstByte=%d", found, firstByte)
	}

	found, err = s.GetPartial(PageKey{PageIndex: 99}, func([]byte) error { return nil })
	if err != nil {
		t.Fatal(err)
	}
	if found {
		t.Fatal("expected miss for unset key")
	}
}

func TestLocalStoreHeadersAndPagesDontCollide(t *testing.T) {
	s := NewLocal(4, 4)
	hk := HeaderKey{BaseRevision: 1, Kind: "l2p"}
	pk := PageKey{FirstRevision: 1, Kind: "l2p"}
	s.Set(hk, []byte("header"))
	s.Set(pk, []byte("page"))

	got, _ := s.Get(hk)
	if string(got) != "header" {
		t.Fatalf("header lookup returned %q", got)
	}
	got, _ = s.Get(pk)
	if string(got) != "page" {
		t.Fatalf("page lookup returned %q", got)
	}
}
