package session

import (
	"fmt"
	"strings"

	internalpe "github.com/saitokouna/mrexodia-dumpulator/internal/pe"
)

// ntBasename returns the final path component of a Windows-style path,
// decoded verbatim from the dump (backslash-separated, sometimes
// forward-slash). path/filepath assumes the host's separator, which is
// wrong for a Linux host reading a Windows path; split on both by hand
// instead.
func ntBasename(path string) string {
	if i := strings.LastIndexAny(path, `\/`); i >= 0 {
		return path[i+1:]
	}
	return path
}

// ModuleExport is one resolved export directory entry of a loaded module.
type ModuleExport struct {
	Address   uint64
	Ordinal   uint32
	Name      string // empty for ordinal-only exports
	Forwarder string
}

// Module is one entry of the Module Table: a dumped image's base/size/path
// plus its decoded export directory, indexed both by address and by name.
type Module struct {
	Base uint64
	Size uint64
	Path string
	Name string

	exportsByAddr map[uint64]*ModuleExport
	exportsByName map[string]*ModuleExport
	Exports       []*ModuleExport
}

func newModule(base, size uint64, path string) *Module {
	return &Module{
		Base:          base,
		Size:          size,
		Path:          path,
		Name:          ntBasename(path),
		exportsByAddr: make(map[uint64]*ModuleExport),
		exportsByName: make(map[string]*ModuleExport),
	}
}

// parseExports decodes image's export directory (image must already have
// its raw offsets rewritten to match virtual addresses for an in-memory
// module) and indexes the result.
func (m *Module) parseExports(image []byte) error {
	exports, err := internalpe.Exports(image)
	if err != nil {
		return fmt.Errorf("parse exports of %s: %w", m.Name, err)
	}
	for _, e := range exports {
		me := &ModuleExport{
			Address:   m.Base + uint64(e.RVA),
			Ordinal:   e.Ordinal,
			Name:      e.Name,
			Forwarder: e.Forwarder,
		}
		m.Exports = append(m.Exports, me)
		m.exportsByAddr[me.Address] = me
		if me.Name != "" {
			m.exportsByName[me.Name] = me
		}
	}
	return nil
}

// Contains reports whether addr falls within this module's mapped image.
func (m *Module) Contains(addr uint64) bool {
	return addr >= m.Base && addr < m.Base+m.Size
}

// Export looks an export up by name.
func (m *Module) Export(name string) (*ModuleExport, bool) {
	e, ok := m.exportsByName[name]
	return e, ok
}

// ExportAt looks an export up by absolute address.
func (m *Module) ExportAt(addr uint64) (*ModuleExport, bool) {
	e, ok := m.exportsByAddr[addr]
	return e, ok
}

// ModuleTable is the Module Table: every module the loader registered,
// indexed by base address, lowercased basename, and full path.
type ModuleTable struct {
	nameLookup map[string]*Module
	byBase     []*Module // insertion order, for deterministic iteration
}

func newModuleTable() *ModuleTable {
	return &ModuleTable{nameLookup: make(map[string]*Module)}
}

// Add registers a module at base with the given size and path.
func (t *ModuleTable) Add(base, size uint64, path string) (*Module, error) {
	m := newModule(base, size, path)
	t.nameLookup[m.Name] = m
	t.nameLookup[strings.ToLower(m.Name)] = m
	t.nameLookup[path] = m
	t.byBase = append(t.byBase, m)
	return m, nil
}

// Find looks a module up by any address inside its image (uint64/int) or
// by name/path (string).
func (t *ModuleTable) Find(key any) (*Module, bool) {
	switch k := key.(type) {
	case uint64:
		for _, m := range t.byBase {
			if m.Contains(k) {
				return m, true
			}
		}
		return nil, false
	case int:
		return t.Find(uint64(k))
	case string:
		m, ok := t.nameLookup[k]
		if ok {
			return m, true
		}
		m, ok = t.nameLookup[strings.ToLower(k)]
		return m, ok
	default:
		return nil, false
	}
}

// All returns every registered module in insertion (base-ascending, for a
// minidump's natural module list order) order.
func (t *ModuleTable) All() []*Module {
	out := make([]*Module, len(t.byBase))
	copy(out, t.byBase)
	return out
}
