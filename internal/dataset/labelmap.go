package dataset

// LabelMap assigns stable integer indices to class label strings in
// first-seen order. The mapping is owned by the caller and built in a
// single sequential pass: index assignment depends on encounter order,
// so it must never run inside a parallel map step.
type LabelMap struct {
	indices map[string]int
	names   []string
}

// NewLabelMap creates an empty mapping.
func NewLabelMap() *LabelMap {
	return &LabelMap{indices: make(map[string]int)}
}

// Add returns the index for label, assigning the next free index on
// first sight.
func (m *LabelMap) Add(label string) int {
	if idx, ok := m.indices[label]; ok {
		return idx
	}
	idx := len(m.names)
	m.indices[label] = idx
	m.names = append(m.names, label)
	return idx
}

// Index returns the index for label, or -1 if the label was never
// added.
func (m *LabelMap) Index(label string) int {
	if idx, ok := m.indices[label]; ok {
		return idx
	}
	return -1
}

// Name returns the label string for an index.
func (m *LabelMap) Name(idx int) (string, bool) {
	if idx < 0 || idx >= len(m.names) {
		return "", false
	}
	return m.names[idx], true
}

// Len returns the number of distinct labels seen.
func (m *LabelMap) Len() int {
	return len(m.names)
}

// Names returns the labels in index order.
func (m *LabelMap) Names() []string {
	out := make([]string, len(m.names))
	copy(out, m.names)
	return out
}
