package config

import (
	"fmt"
	"sort"
	"strings"

	"github.com/bryanchriswhite/camcorder/internal/camerr"
	"github.com/bryanchriswhite/camcorder/internal/logger"
	"github.com/spf13/viper"
)

// Entry is a parsed configuration value
type Entry struct {
	Category  string `json:"category" yaml:"category"`
	Key       string `json:"key" yaml:"key"`
	Kind      Kind   `json:"kind" yaml:"kind"`
	Value     any    `json:"value" yaml:"value"`
	Raw       string `json:"raw" yaml:"raw"`
	Defaulted bool   `json:"defaulted" yaml:"defaulted"`
}

// Store holds the device capability tables. It is immutable once built and
// safe for concurrent reads.
type Store struct {
	entries map[string]*Entry
	sources []string
}

// Load reads the given YAML files in order, later files overriding earlier
// ones, and builds a Store. Missing optional files are an error; an empty
// path list yields the compiled defaults.
func Load(paths ...string) (*Store, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	for i, p := range paths {
		v.SetConfigFile(p)
		var err error
		if i == 0 {
			err = v.ReadInConfig()
		} else {
			err = v.MergeInConfig()
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read device config %s: %w", p, err)
		}
	}
	s := FromViper(v)
	s.sources = append([]string(nil), paths...)
	return s, nil
}

// FromViper builds a Store from an already populated viper instance
func FromViper(v *viper.Viper) *Store {
	raw := make(map[string]string)
	for _, k := range v.AllKeys() {
		raw[k] = stringify(v.Get(k))
	}
	return build(raw)
}

// FromMap builds a Store from category -> key -> text
func FromMap(m map[string]map[string]string) *Store {
	raw := make(map[string]string)
	for cat, keys := range m {
		for k, text := range keys {
			raw[schemaKey(cat, k)] = text
		}
	}
	return build(raw)
}

// Defaults builds a Store containing only compiled defaults
func Defaults() *Store {
	return build(nil)
}

func build(raw map[string]string) *Store {
	log := logger.WithComponent("config")
	s := &Store{entries: make(map[string]*Entry, len(Schema))}

	for _, se := range Schema {
		k := schemaKey(se.Category, se.Key)
		e := &Entry{Category: se.Category, Key: se.Key, Kind: se.Kind}

		text, configured := raw[k]
		if configured {
			val, err := parseValue(se.Kind, text)
			if err == nil {
				e.Value = val
				e.Raw = text
				s.entries[k] = e
				delete(raw, k)
				continue
			}
			log.Warn().
				Err(err).
				Str("category", se.Category).
				Str("key", se.Key).
				Msg("Invalid configuration value, using compiled default")
			delete(raw, k)
		}

		val, err := parseValue(se.Kind, se.Default)
		if err != nil {
			// compiled defaults are covered by tests
			panic(fmt.Sprintf("config: bad compiled default for %s/%s: %v", se.Category, se.Key, err))
		}
		e.Value = val
		e.Raw = se.Default
		e.Defaulted = true
		s.entries[k] = e
	}

	// Keys outside the schema are kept as plain strings so device files can
	// carry extra element descriptors or notes.
	for k, text := range raw {
		cat, key, ok := strings.Cut(k, ".")
		if !ok {
			continue
		}
		log.Debug().Str("key", k).Msg("Configuration key not in schema, keeping as string")
		s.entries[k] = &Entry{Category: cat, Key: key, Kind: KindString, Value: strings.TrimSpace(text), Raw: text}
	}

	return s
}

func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case []any:
		parts := make([]string, 0, len(t))
		for _, p := range t {
			parts = append(parts, fmt.Sprint(p))
		}
		return strings.Join(parts, ", ")
	default:
		return fmt.Sprint(t)
	}
}

// Sources returns the files the store was loaded from
func (s *Store) Sources() []string {
	return s.sources
}

// Get returns the raw entry for (category, key)
func (s *Store) Get(category, key string) (*Entry, error) {
	e, ok := s.entries[schemaKey(category, key)]
	if !ok {
		return nil, fmt.Errorf("%s/%s: %w", category, key, camerr.ErrNotFound)
	}
	return e, nil
}

// Entries returns every entry sorted by category and key
func (s *Store) Entries() []*Entry {
	out := make([]*Entry, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Category != out[j].Category {
			return out[i].Category < out[j].Category
		}
		return out[i].Key < out[j].Key
	})
	return out
}

func typed[T any](s *Store, category, key string, kind Kind) (T, bool, error) {
	var zero T
	e, err := s.Get(category, key)
	if err != nil {
		return zero, false, err
	}
	if e.Kind != kind {
		return zero, e.Defaulted, fmt.Errorf("%s/%s is %s, not %s: %w", category, key, e.Kind, kind, camerr.ErrInvalidArgument)
	}
	v, ok := e.Value.(T)
	if !ok {
		return zero, e.Defaulted, fmt.Errorf("%s/%s holds %T: %w", category, key, e.Value, camerr.ErrInvalidArgument)
	}
	return v, e.Defaulted, nil
}

// Int returns an integer value and whether the compiled default was used
func (s *Store) Int(category, key string) (int, bool, error) {
	return typed[int](s, category, key, KindInt)
}

// IntRange returns a range value
func (s *Store) IntRange(category, key string) (IntRange, bool, error) {
	return typed[IntRange](s, category, key, KindIntRange)
}

// IntArray returns an integer array value
func (s *Store) IntArray(category, key string) (IntArray, bool, error) {
	return typed[IntArray](s, category, key, KindIntArray)
}

// IntPairArray returns a pair array value
func (s *Store) IntPairArray(category, key string) (IntPairArray, bool, error) {
	return typed[IntPairArray](s, category, key, KindIntPairArray)
}

// String returns a string value
func (s *Store) String(category, key string) (string, bool, error) {
	return typed[string](s, category, key, KindString)
}

// StringArray returns a string array value
func (s *Store) StringArray(category, key string) (StringArray, bool, error) {
	return typed[StringArray](s, category, key, KindStringArray)
}

// Element returns an element descriptor
func (s *Store) Element(category, key string) (*ElementDescriptor, bool, error) {
	return typed[*ElementDescriptor](s, category, key, KindElement)
}

// IntOr returns the integer value or fallback when the key is unusable
func (s *Store) IntOr(category, key string, fallback int) int {
	v, _, err := s.Int(category, key)
	if err != nil {
		return fallback
	}
	return v
}

// StringOr returns the string value or fallback when the key is unusable
func (s *Store) StringOr(category, key, fallback string) string {
	v, _, err := s.String(category, key)
	if err != nil || v == "" {
		return fallback
	}
	return v
}
