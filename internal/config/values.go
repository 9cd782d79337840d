package config

import (
	"fmt"
	"strconv"
	"strings"
)

// Kind is the typed shape of a configuration value
type Kind int

const (
	KindInt Kind = iota
	KindIntRange
	KindIntArray
	KindIntPairArray
	KindString
	KindStringArray
	KindElement
)

// String returns the kind name
func (k Kind) String() string {
	switch k {
	case KindInt:
		return "int"
	case KindIntRange:
		return "int-range"
	case KindIntArray:
		return "int-array"
	case KindIntPairArray:
		return "int-pair-array"
	case KindString:
		return "string"
	case KindStringArray:
		return "string-array"
	case KindElement:
		return "element"
	default:
		return "unknown"
	}
}

// IntRange is an inclusive integer range with a default
type IntRange struct {
	Min     int `json:"min" yaml:"min"`
	Max     int `json:"max" yaml:"max"`
	Default int `json:"default" yaml:"default"`
}

// Contains reports whether v lies inside the range
func (r IntRange) Contains(v int) bool {
	return v >= r.Min && v <= r.Max
}

// IntArray is an ordered list of integers with a default
type IntArray struct {
	Values  []int `json:"values" yaml:"values"`
	Default int   `json:"default" yaml:"default"`
}

// IntPair is a width/height style pair
type IntPair [2]int

// String renders the pair as WxH
func (p IntPair) String() string {
	return fmt.Sprintf("%dx%d", p[0], p[1])
}

// IntPairArray is an ordered list of pairs with a default pair
type IntPairArray struct {
	Pairs   []IntPair `json:"pairs" yaml:"pairs"`
	Default IntPair   `json:"default" yaml:"default"`
}

// Contains reports whether the pair appears verbatim in the list
func (a IntPairArray) Contains(p IntPair) bool {
	for _, q := range a.Pairs {
		if q == p {
			return true
		}
	}
	return false
}

// StringArray is an ordered list of strings with a default
type StringArray struct {
	Values  []string `json:"values" yaml:"values"`
	Default string   `json:"default" yaml:"default"`
}

// Property is a single element property to apply after creating the element
type Property struct {
	Name  string `json:"name" yaml:"name"`
	Value any    `json:"value" yaml:"value"` // int or string
}

// ElementDescriptor names a native element factory and the properties it needs
type ElementDescriptor struct {
	Factory    string     `json:"factory" yaml:"factory"`
	Properties []Property `json:"properties,omitempty" yaml:"properties,omitempty"`
}

// IntProperties returns only the integer properties
func (d *ElementDescriptor) IntProperties() []Property {
	var out []Property
	for _, p := range d.Properties {
		if _, ok := p.Value.(int); ok {
			out = append(out, p)
		}
	}
	return out
}

// StringProperties returns only the string properties
func (d *ElementDescriptor) StringProperties() []Property {
	var out []Property
	for _, p := range d.Properties {
		if _, ok := p.Value.(string); ok {
			out = append(out, p)
		}
	}
	return out
}

// splitDefault splits "values || default"
func splitDefault(raw string) (string, string, bool) {
	parts := strings.SplitN(raw, "||", 2)
	if len(parts) == 2 {
		return strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1]), true
	}
	return strings.TrimSpace(raw), "", false
}

func splitList(raw string) []string {
	var out []string
	for _, f := range strings.Split(raw, ",") {
		f = strings.TrimSpace(f)
		if f != "" {
			out = append(out, f)
		}
	}
	return out
}

func parseInt(raw string) (int, error) {
	v, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("invalid integer %q", raw)
	}
	return v, nil
}

func parseIntRange(raw string) (IntRange, error) {
	fields := splitList(raw)
	if len(fields) != 2 && len(fields) != 3 {
		return IntRange{}, fmt.Errorf("range needs min,max[,default], got %q", raw)
	}
	var nums [3]int
	for i, f := range fields {
		n, err := parseInt(f)
		if err != nil {
			return IntRange{}, err
		}
		nums[i] = n
	}
	r := IntRange{Min: nums[0], Max: nums[1], Default: nums[0]}
	if len(fields) == 3 {
		r.Default = nums[2]
	}
	if r.Min > r.Max {
		return IntRange{}, fmt.Errorf("range min %d greater than max %d", r.Min, r.Max)
	}
	if !r.Contains(r.Default) {
		return IntRange{}, fmt.Errorf("range default %d outside [%d,%d]", r.Default, r.Min, r.Max)
	}
	return r, nil
}

func parseIntArray(raw string) (IntArray, error) {
	list, def, hasDef := splitDefault(raw)
	var arr IntArray
	for _, f := range splitList(list) {
		n, err := parseInt(f)
		if err != nil {
			return IntArray{}, err
		}
		arr.Values = append(arr.Values, n)
	}
	if hasDef {
		n, err := parseInt(def)
		if err != nil {
			return IntArray{}, err
		}
		arr.Default = n
	} else if len(arr.Values) > 0 {
		arr.Default = arr.Values[0]
	}
	return arr, nil
}

func parsePair(raw string) (IntPair, error) {
	raw = strings.TrimSpace(raw)
	wh := strings.SplitN(strings.ToLower(raw), "x", 2)
	if len(wh) != 2 {
		return IntPair{}, fmt.Errorf("pair needs WxH, got %q", raw)
	}
	w, err := parseInt(wh[0])
	if err != nil {
		return IntPair{}, err
	}
	h, err := parseInt(wh[1])
	if err != nil {
		return IntPair{}, err
	}
	return IntPair{w, h}, nil
}

func parseIntPairArray(raw string) (IntPairArray, error) {
	list, def, hasDef := splitDefault(raw)
	var arr IntPairArray
	for _, f := range splitList(list) {
		p, err := parsePair(f)
		if err != nil {
			return IntPairArray{}, err
		}
		arr.Pairs = append(arr.Pairs, p)
	}
	if len(arr.Pairs) == 0 {
		return IntPairArray{}, fmt.Errorf("pair array %q is empty", raw)
	}
	arr.Default = arr.Pairs[0]
	if hasDef {
		p, err := parsePair(def)
		if err != nil {
			return IntPairArray{}, err
		}
		if !arr.Contains(p) {
			return IntPairArray{}, fmt.Errorf("default pair %s not in list", p)
		}
		arr.Default = p
	}
	return arr, nil
}

func parseStringArray(raw string) (StringArray, error) {
	list, def, hasDef := splitDefault(raw)
	arr := StringArray{Values: splitList(list)}
	if hasDef {
		arr.Default = def
	} else if len(arr.Values) > 0 {
		arr.Default = arr.Values[0]
	}
	return arr, nil
}

// parseElement parses "factory | name=value | name=value"
func parseElement(raw string) (*ElementDescriptor, error) {
	parts := strings.Split(raw, "|")
	factory := strings.TrimSpace(parts[0])
	if factory == "" {
		return nil, fmt.Errorf("element descriptor %q has no factory", raw)
	}
	d := &ElementDescriptor{Factory: factory}
	for _, p := range parts[1:] {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		kv := strings.SplitN(p, "=", 2)
		if len(kv) != 2 || strings.TrimSpace(kv[0]) == "" {
			return nil, fmt.Errorf("element property %q needs name=value", p)
		}
		name := strings.TrimSpace(kv[0])
		val := strings.TrimSpace(kv[1])
		if n, err := strconv.Atoi(val); err == nil {
			d.Properties = append(d.Properties, Property{Name: name, Value: n})
		} else {
			d.Properties = append(d.Properties, Property{Name: name, Value: strings.Trim(val, `"`)})
		}
	}
	return d, nil
}

// parseValue parses raw text as the given kind
func parseValue(kind Kind, raw string) (any, error) {
	switch kind {
	case KindInt:
		return parseInt(raw)
	case KindIntRange:
		return parseIntRange(raw)
	case KindIntArray:
		return parseIntArray(raw)
	case KindIntPairArray:
		return parseIntPairArray(raw)
	case KindString:
		return strings.TrimSpace(raw), nil
	case KindStringArray:
		return parseStringArray(raw)
	case KindElement:
		return parseElement(raw)
	default:
		return nil, fmt.Errorf("unknown kind %d", kind)
	}
}
