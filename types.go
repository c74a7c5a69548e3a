// Licensed to the Apache Software Foundation (ASF) under one
// or more contributor license agreements.  See the NOTICE file
// distributed with this work for additional information
// regarding copyright ownership.  The ASF licenses this file
// to you under the Apache License, Version 2.0 (the
// "License"); you may not use this file except in compliance
// with the License.  You may obtain a copy of the License at
//
//   http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing,
// software distributed under the License is distributed on an
// "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY
// KIND, either express or implied.  See the License for the
// specific language governing permissions and limitations
// under the License.

package evolve

import (
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"
)

type Properties map[string]string

// Get returns the value of the key if it exists, otherwise it returns the default value.
func (p Properties) Get(key, defVal string) string {
	if v, ok := p[key]; ok {
		return v
	}

	return defVal
}

func (p Properties) GetBool(key string, defVal bool) bool {
	if v, ok := p[key]; ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return defVal
		}

		return b
	}

	return defVal
}

// Clone returns a copy of the properties that can be modified without
// affecting the receiver. A nil receiver yields an empty map.
func (p Properties) Clone() Properties {
	if p == nil {
		return Properties{}
	}

	return maps.Clone(p)
}

// Type is an interface representing any of the available column types,
// such as primitives (int/long/etc.) or nested types (array/struct/map).
type Type interface {
	fmt.Stringer
	Type() string
	Equals(Type) bool
}

// NestedType is an interface that allows access to the child fields of
// a nested type such as an array/struct/map type.
type NestedType interface {
	Type
	Fields() []NestedField
}

type typeIFace struct {
	Type
}

func (t *typeIFace) MarshalJSON() ([]byte, error) {
	if nested, ok := t.Type.(NestedType); ok {
		return json.Marshal(nested)
	}

	return json.Marshal(t.Type.Type())
}

func (t *typeIFace) UnmarshalJSON(b []byte) error {
	var typename string
	err := json.Unmarshal(b, &typename)
	if err == nil {
		t.Type, err = ParseType(typename)

		return err
	}

	aux := struct {
		TypeName string `json:"type"`
	}{}
	if err = json.Unmarshal(b, &aux); err != nil {
		return err
	}

	switch aux.TypeName {
	case "array", "list":
		t.Type = &ListType{}
	case "map":
		t.Type = &MapType{}
	case "struct":
		t.Type = &StructType{}
	default:
		return fmt.Errorf("%w: %s", ErrInvalidTypeString, aux.TypeName)
	}

	return json.Unmarshal(b, t.Type)
}

// MarshalType encodes t the way field types are encoded: primitives as
// their name, nested types as objects.
func MarshalType(t Type) ([]byte, error) {
	return json.Marshal(&typeIFace{t})
}

// UnmarshalType decodes a type from either its object form or a DDL
// string such as "array<struct<x: double>>".
func UnmarshalType(b []byte) (Type, error) {
	var t typeIFace
	if err := json.Unmarshal(b, &t); err != nil {
		return nil, err
	}

	if t.Type == nil {
		return nil, fmt.Errorf("%w: missing type", ErrInvalidTypeString)
	}

	return t.Type, nil
}

// NestedField is a named column of a struct. Required is the inverse of
// SQL nullability. CurrentDefault holds the default expression text as
// written by the user and ExistenceDefault the literal it evaluated to
// when the column was added; the two are set and cleared together.
type NestedField struct {
	Type `json:"-"`

	Name             string  `json:"name"`
	Required         bool    `json:"required"`
	Doc              string  `json:"doc,omitempty"`
	CurrentDefault   *string `json:"current-default,omitempty"`
	ExistenceDefault *string `json:"existence-default,omitempty"`
}

// Nullable reports whether the column accepts null values.
func (n NestedField) Nullable() bool { return !n.Required }

func (n NestedField) String() string {
	var b strings.Builder
	writeFieldDDL(&b, n)
	if n.CurrentDefault != nil {
		b.WriteString(" DEFAULT ")
		b.WriteString(*n.CurrentDefault)
	}

	return b.String()
}

func writeFieldDDL(b *strings.Builder, f NestedField) {
	b.WriteString(quoteIdent(f.Name))
	b.WriteString(": ")
	b.WriteString(f.Type.String())
	if f.Required {
		b.WriteString(" NOT NULL")
	}
	if f.Doc != "" {
		b.WriteString(" COMMENT ")
		b.WriteString(quoteString(f.Doc))
	}
}

func optEq(a, b *string) bool {
	switch {
	case a == nil || b == nil:
		return a == b
	default:
		return *a == *b
	}
}

func (n *NestedField) Equals(other NestedField) bool {
	return n.Name == other.Name &&
		n.Required == other.Required &&
		n.Doc == other.Doc &&
		optEq(n.CurrentDefault, other.CurrentDefault) &&
		optEq(n.ExistenceDefault, other.ExistenceDefault) &&
		n.Type.Equals(other.Type)
}

func (n NestedField) MarshalJSON() ([]byte, error) {
	type Alias NestedField

	return json.Marshal(struct {
		Type *typeIFace `json:"type"`
		*Alias
	}{Type: &typeIFace{n.Type}, Alias: (*Alias)(&n)})
}

func (n *NestedField) UnmarshalJSON(b []byte) error {
	type Alias NestedField
	aux := struct {
		Type typeIFace `json:"type"`
		*Alias
	}{
		Alias: (*Alias)(n),
	}

	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}

	if aux.Type.Type == nil {
		return fmt.Errorf("%w: field %q has no type", ErrInvalidSchema, n.Name)
	}
	n.Type = aux.Type.Type

	return nil
}

type StructType struct {
	FieldList []NestedField `json:"fields"`
}

func (s *StructType) Equals(other Type) bool {
	st, ok := other.(*StructType)
	if !ok {
		return false
	}

	return slices.EqualFunc(s.FieldList, st.FieldList, func(a, b NestedField) bool {
		return a.Equals(b)
	})
}

func (s *StructType) Fields() []NestedField { return s.FieldList }

// FieldNames returns the names of the direct children in order.
func (s *StructType) FieldNames() []string {
	out := make([]string, len(s.FieldList))
	for i, f := range s.FieldList {
		out[i] = f.Name
	}

	return out
}

func (s *StructType) MarshalJSON() ([]byte, error) {
	type Alias StructType

	return json.Marshal(struct {
		Type string `json:"type"`
		*Alias
	}{Type: s.Type(), Alias: (*Alias)(s)})
}

func (*StructType) Type() string { return "struct" }
func (s *StructType) String() string {
	var b strings.Builder
	b.WriteString("struct<")
	for i, f := range s.FieldList {
		if i != 0 {
			b.WriteString(", ")
		}
		writeFieldDDL(&b, f)
	}
	b.WriteString(">")

	return b.String()
}

// ListType is the SQL ARRAY type. The element is addressed with the
// reserved path segment "element".
type ListType struct {
	Element         Type `json:"-"`
	ElementRequired bool `json:"element-required"`
}

func (l *ListType) MarshalJSON() ([]byte, error) {
	type Alias ListType

	return json.Marshal(struct {
		Type string `json:"type"`
		*Alias
		Element *typeIFace `json:"element"`
	}{Type: l.Type(), Alias: (*Alias)(l), Element: &typeIFace{l.Element}})
}

func (l *ListType) Equals(other Type) bool {
	rhs, ok := other.(*ListType)
	if !ok {
		return false
	}

	return l.Element.Equals(rhs.Element) &&
		l.ElementRequired == rhs.ElementRequired
}

func (l *ListType) Fields() []NestedField {
	return []NestedField{l.ElementField()}
}

func (l *ListType) ElementField() NestedField {
	return NestedField{
		Name:     ElementName,
		Type:     l.Element,
		Required: l.ElementRequired,
	}
}

func (*ListType) Type() string     { return "array" }
func (l *ListType) String() string { return fmt.Sprintf("array<%s>", l.Element) }

func (l *ListType) UnmarshalJSON(b []byte) error {
	aux := struct {
		Elem typeIFace `json:"element"`
		Req  bool      `json:"element-required"`
	}{}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}

	if aux.Elem.Type == nil {
		return fmt.Errorf("%w: array without element type", ErrInvalidSchema)
	}
	l.Element = aux.Elem.Type
	l.ElementRequired = aux.Req

	return nil
}

// MapType is the SQL MAP type. Keys are always required; the key and
// value are addressed with the reserved path segments "key" and "value".
type MapType struct {
	KeyType       Type `json:"-"`
	ValueType     Type `json:"-"`
	ValueRequired bool `json:"value-required"`
}

func (m *MapType) MarshalJSON() ([]byte, error) {
	type Alias MapType

	return json.Marshal(struct {
		Type string `json:"type"`
		*Alias
		KeyType   *typeIFace `json:"key"`
		ValueType *typeIFace `json:"value"`
	}{
		Type: m.Type(), Alias: (*Alias)(m),
		KeyType:   &typeIFace{m.KeyType},
		ValueType: &typeIFace{m.ValueType},
	})
}

func (m *MapType) Equals(other Type) bool {
	rhs, ok := other.(*MapType)
	if !ok {
		return false
	}

	return m.KeyType.Equals(rhs.KeyType) &&
		m.ValueType.Equals(rhs.ValueType) &&
		m.ValueRequired == rhs.ValueRequired
}

func (m *MapType) Fields() []NestedField {
	return []NestedField{m.KeyField(), m.ValueField()}
}

func (m *MapType) KeyField() NestedField {
	return NestedField{
		Name:     KeyName,
		Type:     m.KeyType,
		Required: true,
	}
}

func (m *MapType) ValueField() NestedField {
	return NestedField{
		Name:     ValueName,
		Type:     m.ValueType,
		Required: m.ValueRequired,
	}
}

func (*MapType) Type() string { return "map" }
func (m *MapType) String() string {
	return fmt.Sprintf("map<%s, %s>", m.KeyType, m.ValueType)
}

func (m *MapType) UnmarshalJSON(b []byte) error {
	aux := struct {
		Key      typeIFace `json:"key"`
		Value    typeIFace `json:"value"`
		ValueReq *bool     `json:"value-required"`
	}{}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}

	if aux.Key.Type == nil || aux.Value.Type == nil {
		return fmt.Errorf("%w: map without key or value type", ErrInvalidSchema)
	}
	m.KeyType, m.ValueType = aux.Key.Type, aux.Value.Type
	if aux.ValueReq != nil {
		m.ValueRequired = *aux.ValueReq
	}

	return nil
}

func FixedTypeOf(n int) FixedType { return FixedType{len: n} }

type FixedType struct {
	len int
}

func (f FixedType) Equals(other Type) bool {
	rhs, ok := other.(FixedType)
	if !ok {
		return false
	}

	return f.len == rhs.len
}
func (f FixedType) Len() int       { return f.len }
func (f FixedType) Type() string   { return fmt.Sprintf("fixed[%d]", f.len) }
func (f FixedType) String() string { return fmt.Sprintf("fixed[%d]", f.len) }
func (f FixedType) primitive()     {}

// MaxDecimalPrecision is the largest precision a 128-bit decimal holds.
const MaxDecimalPrecision = 38

func DecimalTypeOf(prec, scale int) DecimalType {
	return DecimalType{precision: prec, scale: scale}
}

type DecimalType struct {
	precision, scale int
}

func (d DecimalType) Equals(other Type) bool {
	rhs, ok := other.(DecimalType)
	if !ok {
		return false
	}

	return d.precision == rhs.precision &&
		d.scale == rhs.scale
}

func (d DecimalType) Type() string   { return fmt.Sprintf("decimal(%d, %d)", d.precision, d.scale) }
func (d DecimalType) String() string { return fmt.Sprintf("decimal(%d, %d)", d.precision, d.scale) }
func (d DecimalType) Precision() int { return d.precision }
func (d DecimalType) Scale() int     { return d.scale }
func (DecimalType) primitive()       {}

type PrimitiveType interface {
	Type
	primitive()
}

// IntervalType is implemented by the interval primitives. Intervals may
// appear in expressions but never in a stored table schema.
type IntervalType interface {
	PrimitiveType
	interval()
}

type BooleanType struct{}

func (BooleanType) Equals(other Type) bool {
	_, ok := other.(BooleanType)

	return ok
}

func (BooleanType) primitive()     {}
func (BooleanType) Type() string   { return "boolean" }
func (BooleanType) String() string { return "boolean" }

// Int8Type is the 8-bit "byte"/"tinyint" type.
type Int8Type struct{}

func (Int8Type) Equals(other Type) bool {
	_, ok := other.(Int8Type)

	return ok
}

func (Int8Type) primitive()     {}
func (Int8Type) Type() string   { return "byte" }
func (Int8Type) String() string { return "byte" }

// Int16Type is the 16-bit "short"/"smallint" type.
type Int16Type struct{}

func (Int16Type) Equals(other Type) bool {
	_, ok := other.(Int16Type)

	return ok
}

func (Int16Type) primitive()     {}
func (Int16Type) Type() string   { return "short" }
func (Int16Type) String() string { return "short" }

// Int32Type is the "int"/"integer" type.
type Int32Type struct{}

func (Int32Type) Equals(other Type) bool {
	_, ok := other.(Int32Type)

	return ok
}

func (Int32Type) primitive()     {}
func (Int32Type) Type() string   { return "int" }
func (Int32Type) String() string { return "int" }

// Int64Type is the "long"/"bigint" type.
type Int64Type struct{}

func (Int64Type) Equals(other Type) bool {
	_, ok := other.(Int64Type)

	return ok
}

func (Int64Type) primitive()     {}
func (Int64Type) Type() string   { return "long" }
func (Int64Type) String() string { return "long" }

// Float32Type is the "float" type.
type Float32Type struct{}

func (Float32Type) Equals(other Type) bool {
	_, ok := other.(Float32Type)

	return ok
}

func (Float32Type) primitive()     {}
func (Float32Type) Type() string   { return "float" }
func (Float32Type) String() string { return "float" }

// Float64Type represents the "double" type.
type Float64Type struct{}

func (Float64Type) Equals(other Type) bool {
	_, ok := other.(Float64Type)

	return ok
}

func (Float64Type) primitive()     {}
func (Float64Type) Type() string   { return "double" }
func (Float64Type) String() string { return "double" }

// DateType represents a calendar date without a timezone or time.
type DateType struct{}

func (DateType) Equals(other Type) bool {
	_, ok := other.(DateType)

	return ok
}

func (DateType) primitive()     {}
func (DateType) Type() string   { return "date" }
func (DateType) String() string { return "date" }

// TimeType represents a number of microseconds since midnight.
type TimeType struct{}

func (TimeType) Equals(other Type) bool {
	_, ok := other.(TimeType)

	return ok
}

func (TimeType) primitive()     {}
func (TimeType) Type() string   { return "time" }
func (TimeType) String() string { return "time" }

// TimestampType represents a number of microseconds since the unix epoch
// without regard for timezone.
type TimestampType struct{}

func (TimestampType) Equals(other Type) bool {
	_, ok := other.(TimestampType)

	return ok
}

func (TimestampType) primitive()     {}
func (TimestampType) Type() string   { return "timestamp" }
func (TimestampType) String() string { return "timestamp" }

// TimestampTzType represents a timestamp stored as UTC representing the
// number of microseconds since the unix epoch.
type TimestampTzType struct{}

func (TimestampTzType) Equals(other Type) bool {
	_, ok := other.(TimestampTzType)

	return ok
}

func (TimestampTzType) primitive()     {}
func (TimestampTzType) Type() string   { return "timestamptz" }
func (TimestampTzType) String() string { return "timestamptz" }

// TimestampNsType is TimestampType with nanosecond precision.
type TimestampNsType struct{}

func (TimestampNsType) Equals(other Type) bool {
	_, ok := other.(TimestampNsType)

	return ok
}

func (TimestampNsType) primitive()     {}
func (TimestampNsType) Type() string   { return "timestamp_ns" }
func (TimestampNsType) String() string { return "timestamp_ns" }

// TimestampTzNsType is TimestampTzType with nanosecond precision.
type TimestampTzNsType struct{}

func (TimestampTzNsType) Equals(other Type) bool {
	_, ok := other.(TimestampTzNsType)

	return ok
}

func (TimestampTzNsType) primitive()     {}
func (TimestampTzNsType) Type() string   { return "timestamptz_ns" }
func (TimestampTzNsType) String() string { return "timestamptz_ns" }

type StringType struct{}

func (StringType) Equals(other Type) bool {
	_, ok := other.(StringType)

	return ok
}

func (StringType) primitive()     {}
func (StringType) Type() string   { return "string" }
func (StringType) String() string { return "string" }

type UUIDType struct{}

func (UUIDType) Equals(other Type) bool {
	_, ok := other.(UUIDType)

	return ok
}

func (UUIDType) primitive()     {}
func (UUIDType) Type() string   { return "uuid" }
func (UUIDType) String() string { return "uuid" }

type BinaryType struct{}

func (BinaryType) Equals(other Type) bool {
	_, ok := other.(BinaryType)

	return ok
}

func (BinaryType) primitive()     {}
func (BinaryType) Type() string   { return "binary" }
func (BinaryType) String() string { return "binary" }

type UnknownType struct{}

func (UnknownType) Equals(other Type) bool {
	_, ok := other.(UnknownType)

	return ok
}

func (UnknownType) primitive()     {}
func (UnknownType) Type() string   { return "unknown" }
func (UnknownType) String() string { return "unknown" }

// YearMonthIntervalType is the "interval year to month" type.
type YearMonthIntervalType struct{}

func (YearMonthIntervalType) Equals(other Type) bool {
	_, ok := other.(YearMonthIntervalType)

	return ok
}

func (YearMonthIntervalType) primitive()     {}
func (YearMonthIntervalType) interval()      {}
func (YearMonthIntervalType) Type() string   { return "interval year to month" }
func (YearMonthIntervalType) String() string { return "interval year to month" }

// DayTimeIntervalType is the "interval day to second" type.
type DayTimeIntervalType struct{}

func (DayTimeIntervalType) Equals(other Type) bool {
	_, ok := other.(DayTimeIntervalType)

	return ok
}

func (DayTimeIntervalType) primitive()     {}
func (DayTimeIntervalType) interval()      {}
func (DayTimeIntervalType) Type() string   { return "interval day to second" }
func (DayTimeIntervalType) String() string { return "interval day to second" }

var PrimitiveTypes = struct {
	Bool              PrimitiveType
	Int8              PrimitiveType
	Int16             PrimitiveType
	Int32             PrimitiveType
	Int64             PrimitiveType
	Float32           PrimitiveType
	Float64           PrimitiveType
	Date              PrimitiveType
	Time              PrimitiveType
	Timestamp         PrimitiveType
	TimestampTz       PrimitiveType
	TimestampNs       PrimitiveType
	TimestampTzNs     PrimitiveType
	String            PrimitiveType
	Binary            PrimitiveType
	UUID              PrimitiveType
	Unknown           PrimitiveType
	YearMonthInterval PrimitiveType
	DayTimeInterval   PrimitiveType
}{
	Bool:              BooleanType{},
	Int8:              Int8Type{},
	Int16:             Int16Type{},
	Int32:             Int32Type{},
	Int64:             Int64Type{},
	Float32:           Float32Type{},
	Float64:           Float64Type{},
	Date:              DateType{},
	Time:              TimeType{},
	Timestamp:         TimestampType{},
	TimestampTz:       TimestampTzType{},
	TimestampNs:       TimestampNsType{},
	TimestampTzNs:     TimestampTzNsType{},
	String:            StringType{},
	Binary:            BinaryType{},
	UUID:              UUIDType{},
	Unknown:           UnknownType{},
	YearMonthInterval: YearMonthIntervalType{},
	DayTimeInterval:   DayTimeIntervalType{},
}

// ContainsInterval reports whether t or any type nested inside it is an
// interval primitive.
func ContainsInterval(t Type) bool {
	switch t := t.(type) {
	case IntervalType:
		return true
	case NestedType:
		for _, f := range t.Fields() {
			if ContainsInterval(f.Type) {
				return true
			}
		}
	}

	return false
}

// CanPromote reports whether a column of type from may be changed to type
// to without rewriting data. Only widening conversions are allowed:
//
//	byte    -> short, int, long
//	short   -> int, long
//	int     -> long
//	float   -> double
//	decimal(P, S) -> decimal(P', S) where P' > P
//	date    -> timestamp, timestamp_ns
//
// Every other pair, including any pair involving a nested type, is rejected.
func CanPromote(from, to Type) bool {
	switch f := from.(type) {
	case Int8Type:
		switch to.(type) {
		case Int16Type, Int32Type, Int64Type:
			return true
		}
	case Int16Type:
		switch to.(type) {
		case Int32Type, Int64Type:
			return true
		}
	case Int32Type:
		_, ok := to.(Int64Type)

		return ok
	case Float32Type:
		_, ok := to.(Float64Type)

		return ok
	case DecimalType:
		t, ok := to.(DecimalType)

		return ok && t.scale == f.scale && t.precision > f.precision
	case DateType:
		switch to.(type) {
		case TimestampType, TimestampNsType:
			return true
		}
	}

	return false
}
