package pelikan

import (
	"strconv"
	"sync"

	"github.com/pelikan-go/pelikan/internal/codec"
	"github.com/pelikan-go/pelikan/internal/store"
)

// MockEngine is a minimal in-memory store.Engine for tests that need a
// server wired up without exercising the real slab/cuckoo cores.
// Grounded on the teacher's MockBackend in testing.go: a map-backed
// stand-in that tracks call counts for assertions, generalized from
// ReadAt/WriteAt offsets to get/set-style keys.
type MockEngine struct {
	mu    sync.Mutex
	items map[string]store.Item
	cas   uint64

	getCalls    int
	setCalls    int
	deleteCalls int
}

// NewMockEngine creates an empty MockEngine.
func NewMockEngine() *MockEngine {
	return &MockEngine{items: make(map[string]store.Item), cas: 1}
}

func (e *MockEngine) Get(key []byte) (store.Item, codec.Status) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.getCalls++
	item, ok := e.items[string(key)]
	if !ok {
		return store.Item{}, codec.StatusNotFound
	}
	return item, codec.StatusOK
}

func (e *MockEngine) Set(key, val []byte, flag uint32, expiry int32) codec.Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.setCalls++
	e.store(key, val, flag)
	return codec.StatusOK
}

func (e *MockEngine) Add(key, val []byte, flag uint32, expiry int32) codec.Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.items[string(key)]; ok {
		return codec.StatusOther
	}
	e.store(key, val, flag)
	return codec.StatusOK
}

func (e *MockEngine) Replace(key, val []byte, flag uint32, expiry int32) codec.Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.items[string(key)]; !ok {
		return codec.StatusOther
	}
	e.store(key, val, flag)
	return codec.StatusOK
}

func (e *MockEngine) Append(key, val []byte) codec.Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	item, ok := e.items[string(key)]
	if !ok {
		return codec.StatusNotFound
	}
	item.Value = append(append([]byte{}, item.Value...), val...)
	e.cas++
	item.CAS = e.cas
	e.items[string(key)] = item
	return codec.StatusOK
}

func (e *MockEngine) Prepend(key, val []byte) codec.Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	item, ok := e.items[string(key)]
	if !ok {
		return codec.StatusNotFound
	}
	item.Value = append(append([]byte{}, val...), item.Value...)
	e.cas++
	item.CAS = e.cas
	e.items[string(key)] = item
	return codec.StatusOK
}

func (e *MockEngine) Cas(key, val []byte, flag uint32, expiry int32, cas uint64) codec.Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	item, ok := e.items[string(key)]
	if !ok {
		return codec.StatusNotFound
	}
	if item.CAS != cas {
		return codec.StatusOther
	}
	e.store(key, val, flag)
	return codec.StatusOK
}

func (e *MockEngine) Delete(key []byte) codec.Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.deleteCalls++
	if _, ok := e.items[string(key)]; !ok {
		return codec.StatusNotFound
	}
	delete(e.items, string(key))
	return codec.StatusOK
}

func (e *MockEngine) Incr(key []byte, delta uint64) (uint64, codec.Status) {
	return e.addDelta(key, delta)
}

func (e *MockEngine) Decr(key []byte, delta uint64) (uint64, codec.Status) {
	return e.addDelta(key, ^delta+1) // two's complement subtraction
}

func (e *MockEngine) addDelta(key []byte, delta uint64) (uint64, codec.Status) {
	e.mu.Lock()
	defer e.mu.Unlock()
	item, ok := e.items[string(key)]
	if !ok {
		return 0, codec.StatusNotFound
	}
	cur, err := strconv.ParseUint(string(item.Value), 10, 64)
	if err != nil {
		return 0, codec.StatusInvalid
	}
	next := cur + delta
	item.Value = []byte(strconv.FormatUint(next, 10))
	e.cas++
	item.CAS = e.cas
	e.items[string(key)] = item
	return next, codec.StatusOK
}

func (e *MockEngine) Flush() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.items = make(map[string]store.Item)
}

// store writes key/val/flag under a fresh CAS value. Caller holds e.mu.
func (e *MockEngine) store(key, val []byte, flag uint32) {
	e.cas++
	e.items[string(key)] = store.Item{
		Key:   append([]byte{}, key...),
		Value: append([]byte{}, val...),
		Flag:  flag,
		CAS:   e.cas,
	}
}

// CallCounts returns the number of times each operation has been
// invoked, for test assertions.
func (e *MockEngine) CallCounts() map[string]int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return map[string]int{
		"get":    e.getCalls,
		"set":    e.setCalls,
		"delete": e.deleteCalls,
	}
}

var _ store.Engine = (*MockEngine)(nil)
