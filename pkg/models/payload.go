// Package models contains shared data models used across the tablelens codebase.
package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ValueKind identifies which member of the cell union a Value holds.
type ValueKind int

const (
	KindNull ValueKind = iota
	KindNumber
	KindString
)

// Value is a single table cell: a number, a string, or null.
type Value struct {
	kind ValueKind
	num  float64
	str  string
}

func Number(f float64) Value { return Value{kind: KindNumber, num: f} }
func String(s string) Value  { return Value{kind: KindString, str: s} }
func Null() Value            { return Value{} }

// ValueOf converts a Go literal into a Value. Unsupported types become null.
func ValueOf(v any) Value {
	switch x := v.(type) {
	case Value:
		return x
	case nil:
		return Null()
	case string:
		return String(x)
	case float64:
		return Number(x)
	case float32:
		return Number(float64(x))
	case int:
		return Number(float64(x))
	case int64:
		return Number(float64(x))
	case int32:
		return Number(float64(x))
	default:
		return Null()
	}
}

func (v Value) Kind() ValueKind { return v.kind }
func (v Value) IsNull() bool    { return v.kind == KindNull }

// Text returns the cell as a trimmed string. Numbers are formatted without
// trailing zeros; null is the empty string.
func (v Value) Text() string {
	switch v.kind {
	case KindString:
		return strings.TrimSpace(v.str)
	case KindNumber:
		return strconv.FormatFloat(v.num, 'f', -1, 64)
	default:
		return ""
	}
}

// Float returns the numeric reading of the cell. Strings such as "$1,200.50"
// or "25%" are accepted; anything else reports false.
func (v Value) Float() (float64, bool) {
	switch v.kind {
	case KindNumber:
		if math.IsNaN(v.num) || math.IsInf(v.num, 0) {
			return 0, false
		}
		return v.num, true
	case KindString:
		s := strings.TrimSpace(v.str)
		s = strings.NewReplacer("$", "", ",", "", "%", "").Replace(s)
		s = strings.TrimSpace(s)
		if s == "" {
			return 0, false
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindNumber:
		return json.Marshal(v.num)
	case KindString:
		return json.Marshal(v.str)
	default:
		return []byte("null"), nil
	}
}

func (v *Value) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*v = Null()
	case len(data) > 0 && data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*v = String(s)
	default:
		var f float64
		if err := json.Unmarshal(data, &f); err != nil {
			return fmt.Errorf("cell must be a number, string or null: %s", data)
		}
		*v = Number(f)
	}
	return nil
}

// Field is one key/value pair of a Row.
type Field struct {
	Key   string
	Value Value
}

// Row is a table row whose keys keep the order they arrived in. Column names
// differ between client exports, so lookups go through ResolveColumn rather
// than fixed names.
type Row struct {
	fields []Field
	index  map[string]int
}

// NewRow builds a Row from alternating key/value arguments:
//
//	NewRow("Server", "Alice", "Total_Waste", 800)
func NewRow(kv ...any) Row {
	var r Row
	for i := 0; i+1 < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			continue
		}
		r.Set(key, ValueOf(kv[i+1]))
	}
	return r
}

// Set stores v under key. Existing keys keep their position.
func (r *Row) Set(key string, v Value) {
	if r.index == nil {
		r.index = make(map[string]int)
	}
	if i, ok := r.index[key]; ok {
		r.fields[i].Value = v
		return
	}
	r.index[key] = len(r.fields)
	r.fields = append(r.fields, Field{Key: key, Value: v})
}

// Keys returns the row's keys in their natural order.
func (r Row) Keys() []string {
	keys := make([]string, len(r.fields))
	for i, f := range r.fields {
		keys[i] = f.Key
	}
	return keys
}

// Get returns the value stored under key. A missing key yields null.
func (r Row) Get(key string) Value {
	if i, ok := r.index[key]; ok {
		return r.fields[i].Value
	}
	return Null()
}

func (r Row) Len() int { return len(r.fields) }

func (r Row) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range r.fields {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(f.Key)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		val, err := f.Value.MarshalJSON()
		if err != nil {
			return nil, err
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes an object while keeping its key order.
func (r *Row) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("row must be a JSON object")
	}

	*r = Row{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("row key must be a string")
		}
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return fmt.Errorf("row %q: %w", key, err)
		}
		var v Value
		if err := v.UnmarshalJSON(raw); err != nil {
			return fmt.Errorf("row %q: %w", key, err)
		}
		r.Set(key, v)
	}
	_, err = dec.Token()
	return err
}

// Well-known dataset names inside AnalysisPayload.Tables.
const (
	TableEmployeePerformance = "employee_performance"
	TableWasteEfficiency     = "waste_efficiency"
	TableMenuVolatility      = "menu_volatility"
)

// AnalysisPayload is the output of one analytics run for a client: named
// scalar KPIs plus named row tables.
type AnalysisPayload struct {
	KPIs   map[string]float64 `json:"kpis"`
	Tables map[string][]Row   `json:"tables"`
}

// Table returns the rows of the named dataset, or nil.
func (p AnalysisPayload) Table(name string) []Row {
	if p.Tables == nil {
		return nil
	}
	return p.Tables[name]
}

// KPI returns the first of names present in KPIs.
func (p AnalysisPayload) KPI(names ...string) (float64, bool) {
	for _, n := range names {
		if v, ok := p.KPIs[n]; ok {
			return v, true
		}
	}
	return 0, false
}

// UnmarshalJSON ignores unknown keys and drops KPI entries that are not JSON
// numbers. Table cells are still decoded strictly.
func (p *AnalysisPayload) UnmarshalJSON(data []byte) error {
	var raw struct {
		KPIs   map[string]json.RawMessage `json:"kpis"`
		Tables map[string][]Row           `json:"tables"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	p.Tables = raw.Tables
	p.KPIs = nil
	if raw.KPIs != nil {
		p.KPIs = make(map[string]float64, len(raw.KPIs))
		for k, msg := range raw.KPIs {
			var v Value
			if err := v.UnmarshalJSON(msg); err != nil || v.Kind() != KindNumber {
				continue
			}
			if f, ok := v.Float(); ok {
				p.KPIs[k] = f
			}
		}
	}
	return nil
}

// Filters narrow which rows are eligible for rule evaluation.
type Filters struct {
	SelectedServer   string `json:"selected_server,omitempty"`
	SelectedStatus   string `json:"selected_status,omitempty"`
	SelectedCategory string `json:"selected_category,omitempty"`
}
