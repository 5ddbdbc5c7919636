package cache

// entity is the constraint for records kept in a table.
type entity interface {
	GetID() string
	GetVersion() int64
}

// table is an ordered collection of records with an id index. Arrival order
// is preserved; it is not synchronized on its own.
type table[T entity] struct {
	items []T
	index map[string]int
	// touched holds ids written while a bulk load is in flight. It is nil
	// when no load is running.
	touched map[string]struct{}
}

func newTable[T entity]() table[T] {
	return table[T]{index: make(map[string]int)}
}

func (t *table[T]) get(id string) (T, bool) {
	i, ok := t.index[id]
	if !ok {
		var zero T
		return zero, false
	}
	return t.items[i], true
}

// put stores rec. When the id is absent rec is appended only if insert is
// true. When present, rec replaces the cached record unless the cached
// version is newer. It reports whether the table changed.
func (t *table[T]) put(rec T, insert bool) bool {
	id := rec.GetID()
	if i, ok := t.index[id]; ok {
		if t.items[i].GetVersion() > rec.GetVersion() {
			return false
		}
		t.items[i] = rec
		t.touch(id)
		return true
	}
	if !insert {
		return false
	}
	t.index[id] = len(t.items)
	t.items = append(t.items, rec)
	t.touch(id)
	return true
}

func (t *table[T]) touch(id string) {
	if t.touched != nil {
		t.touched[id] = struct{}{}
	}
}

// track starts or stops recording writes made during a bulk load.
func (t *table[T]) track(on bool) {
	if on {
		t.touched = make(map[string]struct{})
		return
	}
	t.touched = nil
}

func (t *table[T]) remove(id string) bool {
	i, ok := t.index[id]
	if !ok {
		return false
	}
	t.items = append(t.items[:i], t.items[i+1:]...)
	delete(t.index, id)
	if t.touched != nil {
		delete(t.touched, id)
	}
	for j := i; j < len(t.items); j++ {
		t.index[t.items[j].GetID()] = j
	}
	return true
}

// replace swaps in a freshly loaded set. A cached record whose version is
// newer than the loaded one survives in the loaded record's position, and a
// record written after the load started but missing from it is kept at the
// end.
func (t *table[T]) replace(recs []T) {
	items := make([]T, 0, len(recs))
	index := make(map[string]int, len(recs))
	for _, rec := range recs {
		id := rec.GetID()
		if _, dup := index[id]; dup {
			continue
		}
		if cached, ok := t.get(id); ok && cached.GetVersion() > rec.GetVersion() {
			rec = cached
		}
		index[id] = len(items)
		items = append(items, rec)
	}
	for _, rec := range t.items {
		id := rec.GetID()
		if _, kept := index[id]; kept {
			continue
		}
		if _, ok := t.touched[id]; ok {
			index[id] = len(items)
			items = append(items, rec)
		}
	}
	t.items = items
	t.index = index
	t.touched = nil
}

func (t *table[T]) snapshot() []T {
	out := make([]T, len(t.items))
	copy(out, t.items)
	return out
}

func (t *table[T]) len() int {
	return len(t.items)
}
