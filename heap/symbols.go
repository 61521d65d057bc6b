package heap

import "sync"

// ---------------------------------------------------------------------------
// Symbols
// ---------------------------------------------------------------------------

// SymbolTable interns names to symbol IDs. Symbols are the immutable
// non-object value kind hosts pass as held values; the table exists so
// a symbol ID in diagnostics can be turned back into its name.
type SymbolTable struct {
	mu    sync.Mutex
	ids   map[string]uint32
	names []string
}

// NewSymbolTable creates an empty symbol table.
func NewSymbolTable() *SymbolTable {
	return &SymbolTable{ids: make(map[string]uint32)}
}

// Intern returns the stable ID for name, assigning one on first use.
func (st *SymbolTable) Intern(name string) uint32 {
	st.mu.Lock()
	defer st.mu.Unlock()
	if id, ok := st.ids[name]; ok {
		return id
	}
	id := uint32(len(st.names))
	st.ids[name] = id
	st.names = append(st.names, name)
	return id
}

// SymbolValue interns name and returns it as a NaN-boxed Value.
func (st *SymbolTable) SymbolValue(name string) Value {
	return FromSymbolID(st.Intern(name))
}

// Name returns the interned name for id, or "" for an unknown ID.
func (st *SymbolTable) Name(id uint32) string {
	st.mu.Lock()
	defer st.mu.Unlock()
	if int(id) >= len(st.names) {
		return ""
	}
	return st.names[id]
}
