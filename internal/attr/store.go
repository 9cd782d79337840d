package attr

import (
	"fmt"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/bryanchriswhite/camcorder/internal/camerr"
	"github.com/bryanchriswhite/camcorder/internal/capability"
	"github.com/bryanchriswhite/camcorder/internal/config"
	"github.com/bryanchriswhite/camcorder/internal/logger"
	"github.com/bryanchriswhite/camcorder/internal/state"
	"github.com/rs/zerolog"
)

// Gate is the command lock and state view the store validates writes against
type Gate interface {
	TryAcquire() error
	Release()
	Current() state.State
}

type box struct {
	v any
}

type entry struct {
	def      *def
	flags    Flags
	validity Validity
	dflt     any
	value    atomic.Value // box
}

func (e *entry) load() any {
	return e.value.Load().(box).v
}

func (e *entry) store(v any) {
	e.value.Store(box{v: v})
}

type pairRuntime struct {
	a, b  ID
	valid []config.IntPair
}

// Store is the attribute table. Values are read without locks; writes go
// through Set, which holds the gate's command lock for the whole call.
type Store struct {
	entries []*entry
	byName  map[string]*entry
	pairs   []pairRuntime

	handlersMu sync.RWMutex
	handlers   map[ID]CommitHandler

	gate Gate
	log  *zerolog.Logger
}

// New builds the attribute table for the device described by tr. Validity of
// device-dependent attributes comes from tr and its configuration; the
// configured disabled list is applied here and never changes afterwards.
func New(tr *capability.Translator, gate Gate) (*Store, error) {
	if tr == nil || gate == nil {
		return nil, fmt.Errorf("attribute store needs a translator and a gate: %w", camerr.ErrInvalidArgument)
	}
	s := &Store{
		entries:  make([]*entry, idCount),
		byName:   make(map[string]*entry, idCount),
		handlers: make(map[ID]CommitHandler),
		gate:     gate,
		log:      logger.WithComponent("attr"),
	}

	b := &builder{
		tr:    tr,
		store: tr.Store(),
		warn: func(name string, err error) {
			s.log.Warn().Err(err).Str("attribute", name).Msg("Using fallback validity")
		},
	}
	for _, pd := range pairs {
		table, _, err := b.store.IntPairArray(pd.category, pd.key)
		if err != nil {
			return nil, fmt.Errorf("resolution table %s/%s: %w", pd.category, pd.key, err)
		}
		b.pairs = append(b.pairs, table)
		s.pairs = append(s.pairs, pairRuntime{a: pd.a, b: pd.b, valid: table.Pairs})
	}

	for i := range defs {
		d := &defs[i]
		b.cur = d
		validity, dflt := d.validity(b)
		e := &entry{def: d, flags: d.flags, validity: validity}
		if dflt != nil {
			v, err := normalize(d.kind, dflt)
			if err != nil {
				return nil, fmt.Errorf("default of %s: %w", d.name, err)
			}
			dflt = v
		} else {
			dflt = zeroOf(d.kind)
		}
		e.dflt = dflt
		e.store(dflt)
		s.entries[d.id] = e
		s.byName[d.name] = e
	}
	for _, id := range readOnly {
		s.entries[id].flags &^= FlagWritable
	}

	disabled, _, err := b.store.StringArray(config.CategoryGeneral, "DisabledAttributes")
	if err == nil {
		for _, name := range disabled.Values {
			e, ok := s.byName[name]
			if !ok {
				s.log.Warn().Str("attribute", name).Msg("Disabled attribute does not exist")
				continue
			}
			e.flags |= FlagDisabled
		}
	}

	s.log.Debug().Int("attributes", len(s.byName)).Int("disabled", len(disabled.Values)).Msg("Attribute table built")
	return s, nil
}

func zeroOf(k Kind) any {
	switch k {
	case KindDouble:
		return float64(0)
	case KindString:
		return ""
	case KindData:
		return []byte(nil)
	default:
		return 0
	}
}

// Handle routes commits of every attribute in group to h. Call it before the
// store is shared.
func (s *Store) Handle(group Group, h CommitHandler) {
	s.handlersMu.Lock()
	defer s.handlersMu.Unlock()
	for _, e := range s.entries {
		if e.def.group == group {
			s.handlers[e.def.id] = h
		}
	}
}

func (s *Store) handler(id ID) CommitHandler {
	s.handlersMu.RLock()
	defer s.handlersMu.RUnlock()
	return s.handlers[id]
}

func (s *Store) lookup(name string) (*entry, error) {
	e, ok := s.byName[name]
	if !ok {
		return nil, camerr.Attr(name, camerr.ErrInvalidArgument)
	}
	return e, nil
}

func (e *entry) info() Info {
	return Info{
		ID:       e.def.id,
		Name:     e.def.name,
		Kind:     e.def.kind,
		Flags:    e.flags,
		Writable: e.def.writable,
		Validity: e.validity,
		Default:  e.dflt,
	}
}

// Info describes the named attribute
func (s *Store) Info(name string) (Info, error) {
	if s == nil {
		return Info{}, camerr.ErrNotInitialized
	}
	e, err := s.lookup(name)
	if err != nil {
		return Info{}, err
	}
	return e.info(), nil
}

// Infos describes every attribute in id order
func (s *Store) Infos() []Info {
	out := make([]Info, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, e.info())
	}
	return out
}

// Names returns every attribute name in id order
func (s *Store) Names() []string {
	out := make([]string, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, e.def.name)
	}
	return out
}

// Lookup resolves a name to its id
func (s *Store) Lookup(name string) (ID, bool) {
	e, ok := s.byName[name]
	if !ok {
		return 0, false
	}
	return e.def.id, true
}

// Name returns the name of id
func (s *Store) Name(id ID) string {
	return s.entries[id].def.name
}

// Feature returns the conversion table feature behind id, if any
func (s *Store) Feature(id ID) (capability.Feature, bool) {
	f := s.entries[id].def.feature
	return f, f != noFeature
}

// Get returns the values of names in order. It never takes the command lock.
func (s *Store) Get(names ...string) ([]any, error) {
	if s == nil {
		return nil, camerr.ErrNotInitialized
	}
	out := make([]any, 0, len(names))
	for _, name := range names {
		e, err := s.lookup(name)
		if err != nil {
			return nil, err
		}
		out = append(out, copyValue(e.load()))
	}
	return out, nil
}

func copyValue(v any) any {
	if b, ok := v.([]byte); ok {
		return append([]byte(nil), b...)
	}
	return v
}

// Value returns the current value of id
func (s *Store) Value(id ID) any {
	return copyValue(s.entries[id].load())
}

// Int returns the current value of an int attribute
func (s *Store) Int(id ID) int {
	n, _ := s.entries[id].load().(int)
	return n
}

// Double returns the current value of a double attribute
func (s *Store) Double(id ID) float64 {
	d, _ := s.entries[id].load().(float64)
	return d
}

// String returns the current value of a string attribute
func (s *Store) String(id ID) string {
	str, _ := s.entries[id].load().(string)
	return str
}

// Data returns a copy of the current value of a data attribute
func (s *Store) Data(id ID) []byte {
	b, _ := s.entries[id].load().([]byte)
	return append([]byte(nil), b...)
}

// Snapshot returns every value keyed by name
func (s *Store) Snapshot() map[string]any {
	out := make(map[string]any, len(s.entries))
	for _, e := range s.entries {
		out[e.def.name] = copyValue(e.load())
	}
	return out
}

// SetInternal stores an engine-owned value without validation, locking or
// commit dispatch. Only the value kind is checked.
func (s *Store) SetInternal(id ID, value any) error {
	e := s.entries[id]
	v, err := normalize(e.def.kind, value)
	if err != nil {
		return camerr.Attr(e.def.name, err)
	}
	e.store(v)
	return nil
}

// Set writes pairs in two phases. Every pair is validated first (writability,
// current state, kind, validity, then paired resolution constraints) and
// nothing is written unless all pass. Then each value is stored and its commit
// handler runs, in input order. A failing handler stops the call; values
// committed before it stay committed.
func (s *Store) Set(pairs []Pair) error {
	if s == nil {
		return camerr.ErrNotInitialized
	}
	if len(pairs) == 0 {
		return nil
	}
	if err := s.gate.TryAcquire(); err != nil {
		return camerr.Attr(pairs[0].Name, err)
	}
	defer s.gate.Release()

	ids, batch, err := s.validate(pairs)
	if err != nil {
		s.log.Debug().Err(err).Str("attribute", camerr.FailingAttribute(err)).Msg("Attribute set rejected")
		return err
	}
	return s.commit(ids, batch)
}

func (s *Store) validate(pairs []Pair) ([]ID, map[ID]any, error) {
	current := s.gate.Current()
	ids := make([]ID, 0, len(pairs))
	batch := make(map[ID]any, len(pairs))

	for _, p := range pairs {
		e, err := s.lookup(p.Name)
		if err != nil {
			return nil, nil, err
		}
		if !e.flags.Writable() {
			return nil, nil, camerr.Attr(p.Name, fmt.Errorf("%w: %w", camerr.ErrInvalidArgument, camerr.ErrReadOnly))
		}
		if !e.def.writable.Has(current) {
			return nil, nil, camerr.Attr(p.Name, fmt.Errorf("not writable in %s: %w", current, camerr.ErrInvalidState))
		}
		v, err := normalize(e.def.kind, p.Value)
		if err != nil {
			return nil, nil, camerr.Attr(p.Name, err)
		}
		if err := e.validity.Check(v); err != nil {
			return nil, nil, camerr.Attr(p.Name, fmt.Errorf("%w: %w", camerr.ErrInvalidArgument, err))
		}
		ids = append(ids, e.def.id)
		batch[e.def.id] = v
	}

	for _, pr := range s.pairs {
		av, aIn := batch[pr.a]
		bv, bIn := batch[pr.b]
		if !aIn && !bIn {
			continue
		}
		if !aIn {
			av = s.entries[pr.a].load()
		}
		if !bIn {
			bv = s.entries[pr.b].load()
		}
		candidate := config.IntPair{av.(int), bv.(int)}
		if slices.Contains(pr.valid, candidate) {
			continue
		}
		blame := pr.b
		if !aIn {
			blame = pr.a
		}
		return nil, nil, camerr.Attr(s.Name(blame), fmt.Errorf("%s is not a supported resolution: %w: %w", candidate, camerr.ErrInvalidArgument, camerr.ErrOutOfRange))
	}

	return ids, batch, nil
}

func (s *Store) commit(ids []ID, batch map[ID]any) error {
	c := &Commit{store: s, batch: batch, consistent: make(map[ID]bool)}
	for _, id := range ids {
		e := s.entries[id]
		v := batch[id]
		e.store(v)

		if c.consistent[id] {
			continue
		}
		h := s.handler(id)
		if h == nil {
			continue
		}
		c.ID = id
		c.Name = e.def.name
		c.Value = v
		if err := h.Commit(c); err != nil {
			s.log.Warn().Err(err).Str("attribute", e.def.name).Msg("Commit handler rejected value")
			return camerr.Attr(e.def.name, err)
		}
	}
	return nil
}
