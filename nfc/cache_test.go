package nfc

import (
	"fmt"
	"testing"
)

func TestResultCache(t *testing.T) {
	c := NewResultCache()

	if _, ok := c.Last(); ok {
		t.Fatal("empty cache should have no last result")
	}

	c.Store(OperationResult{ID: "1", UID: "AA"})
	c.Store(OperationResult{ID: "2", UID: "BB"})
	c.Store(OperationResult{ID: "3"})

	last, ok := c.Last()
	if !ok || last.ID != "3" {
		t.Errorf("expected last result 3, got %+v", last)
	}
	if r, ok := c.ForUID("AA"); !ok || r.ID != "1" {
		t.Errorf("expected result 1 for AA, got %+v", r)
	}

	c.Store(OperationResult{ID: "4", UID: "AA"})
	if r, _ := c.ForUID("AA"); r.ID != "4" {
		t.Errorf("expected result 4 for AA, got %+v", r)
	}

}

func TestResultCacheStoresCopy(t *testing.T) {
	c := NewResultCache()
	r := OperationResult{ID: "1", UID: "AA"}
	c.Store(r)
	r.ID = "changed"

	if last, _ := c.Last(); last.ID != "1" {
		t.Errorf("cache should keep its own copy, got %q", last.ID)
	}
}

func TestResultCacheEvictsOldestUID(t *testing.T) {
	c := NewResultCache()
	c.limit = 2

	c.Store(OperationResult{ID: "1", UID: "AA"})
	c.Store(OperationResult{ID: "2", UID: "BB"})
	c.Store(OperationResult{ID: "3", UID: "AA"}) // AA is now the newest
	c.Store(OperationResult{ID: "4", UID: "CC"})

	if _, ok := c.ForUID("BB"); ok {
		t.Error("expected BB to be evicted")
	}
	if r, ok := c.ForUID("AA"); !ok || r.ID != "3" {
		t.Errorf("expected result 3 for AA, got %+v", r)
	}
	if r, ok := c.ForUID("CC"); !ok || r.ID != "4" {
		t.Errorf("expected result 4 for CC, got %+v", r)
	}
	if len(c.byUID) != 2 || len(c.order) != 2 {
		t.Errorf("expected two entries, got %d in map and %d in order", len(c.byUID), len(c.order))
	}
}

func TestResultCacheDefaultLimit(t *testing.T) {
	c := NewResultCache()
	for i := 0; i < DefaultResultCacheSize+10; i++ {
		c.Store(OperationResult{ID: fmt.Sprint(i), UID: fmt.Sprintf("%08X", i)})
	}
	if n := len(c.byUID); n != DefaultResultCacheSize {
		t.Errorf("expected %d entries, got %d", DefaultResultCacheSize, n)
	}
	if _, ok := c.ForUID("00000000"); ok {
		t.Error("expected the first UID to be evicted")
	}
	if last, _ := c.Last(); last.ID != fmt.Sprint(DefaultResultCacheSize+9) {
		t.Errorf("unexpected last result %+v", last)
	}
}
