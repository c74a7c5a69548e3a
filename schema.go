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
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/twmb/murmur3"
)

// Schema is the column tree of a table, represented as a struct with
// multiple fields. The fields are only exported via accessor methods
// rather than exposing the slice directly in order to keep a schema
// immutable. Every change produces a new Schema.
type Schema struct {
	fields []NestedField

	// the following maps are lazily populated as needed.
	// rather than have lock contention with a mutex, we can use
	// atomic pointers to Store/Load the values.
	nameToField      atomic.Pointer[map[string]NestedField]
	nameToFieldLower atomic.Pointer[map[string]NestedField]

	lazyFingerprint func() uint64
}

// NewSchemaFromJsonFields constructs a new schema from a json array of fields.
func NewSchemaFromJsonFields(jsonFieldsStr string) (*Schema, error) {
	var fields []NestedField
	err := json.Unmarshal([]byte(jsonFieldsStr), &fields)
	if err != nil {
		return nil, fmt.Errorf("failed to parse schema JSON: %w", err)
	}

	return NewSchema(fields...), nil
}

// NewSchema constructs a new schema from the list of top level fields.
// The slice is owned by the schema afterwards.
func NewSchema(fields ...NestedField) *Schema {
	if fields == nil {
		fields = []NestedField{}
	}

	s := &Schema{fields: fields}
	s.init()

	return s
}

func (s *Schema) init() {
	s.lazyFingerprint = sync.OnceValue(func() uint64 {
		data, err := json.Marshal(s)
		if err != nil {
			return 0
		}

		return murmur3.Sum64(data)
	})
}

func (s *Schema) String() string {
	var b strings.Builder
	b.WriteString("table {")
	for _, f := range s.fields {
		b.WriteString("\n\t")
		b.WriteString(f.String())
	}
	b.WriteString("\n}")

	return b.String()
}

func (s *Schema) lazyNameToField() (map[string]NestedField, error) {
	index := s.nameToField.Load()
	if index != nil {
		return *index, nil
	}

	idx, err := IndexByName(s)
	if err != nil {
		return nil, err
	}

	s.nameToField.Store(&idx)

	return idx, nil
}

func (s *Schema) lazyNameToFieldLower() (map[string]NestedField, error) {
	index := s.nameToFieldLower.Load()
	if index != nil {
		return *index, nil
	}

	idx, err := s.lazyNameToField()
	if err != nil {
		return nil, err
	}

	out := make(map[string]NestedField)
	for k, v := range idx {
		out[strings.ToLower(k)] = v
	}

	s.nameToFieldLower.Store(&out)

	return out, nil
}

func (s *Schema) Type() string { return "struct" }

// AsStruct returns a Struct with the same fields as the schema which can
// then be used as a Type. The returned struct shares its field slice with
// the schema and must not be modified.
func (s *Schema) AsStruct() *StructType   { return &StructType{FieldList: s.fields} }
func (s *Schema) NumFields() int          { return len(s.fields) }
func (s *Schema) Field(i int) NestedField { return s.fields[i] }
func (s *Schema) Fields() []NestedField   { return slices.Clone(s.fields) }

// FieldNames returns the names of the top level columns in order.
func (s *Schema) FieldNames() []string { return s.AsStruct().FieldNames() }

func (s *Schema) UnmarshalJSON(b []byte) error {
	aux := struct {
		Fields []NestedField `json:"fields"`
	}{}

	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}

	s.init()
	s.fields = aux.Fields
	if s.fields == nil {
		s.fields = []NestedField{}
	}

	return nil
}

func (s *Schema) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type   string        `json:"type"`
		Fields []NestedField `json:"fields"`
	}{Type: "struct", Fields: s.fields})
}

// Fingerprint returns a hash of the canonical JSON form of the schema.
// Two schemas with equal fingerprints are equal with overwhelming
// probability, which lets callers detect a concurrent change before
// committing a result.
func (s *Schema) Fingerprint() uint64 {
	if s.lazyFingerprint == nil {
		s.init()
	}

	return s.lazyFingerprint()
}

// FindFieldByName returns the field identified by the dotted name given,
// the second return value will be false if no field by this name
// is found. Array elements and map keys and values are addressed with
// "element", "key" and "value", e.g. "points.element.x".
//
// Note: This search is done in a case sensitive manner. To perform
// a case insensitive search, use [*Schema.FindFieldByNameCaseInsensitive].
func (s *Schema) FindFieldByName(name string) (NestedField, bool) {
	idx, _ := s.lazyNameToField()
	f, ok := idx[name]

	return f, ok
}

// FindFieldByNameCaseInsensitive is like [*Schema.FindFieldByName],
// but performs a case insensitive search.
func (s *Schema) FindFieldByNameCaseInsensitive(name string) (NestedField, bool) {
	idx, _ := s.lazyNameToFieldLower()
	f, ok := idx[strings.ToLower(name)]

	return f, ok
}

// FindTypeByName is a convenience function for calling [*Schema.FindFieldByName],
// and then returning just the type.
func (s *Schema) FindTypeByName(name string) (Type, bool) {
	f, ok := s.FindFieldByName(name)
	if !ok {
		return nil, false
	}

	return f.Type, true
}

// Equals compares the fields of both schemas, in order, including their
// nullability, comments and defaults.
func (s *Schema) Equals(other *Schema) bool {
	if other == nil {
		return false
	}

	if s == other {
		return true
	}

	return slices.EqualFunc(s.fields, other.fields, func(a, b NestedField) bool {
		return a.Equals(b)
	})
}

// Validate checks the schema invariants: sibling names are unique under
// match and no interval type appears anywhere in the tree.
func (s *Schema) Validate(match NameMatcher) error {
	_, err := Visit(s, &validator{match: match})

	return unwrapValidation(err)
}

// CheckNoIntervals returns an *IllegalIntervalTypeError naming the first
// interval found in t, reported relative to path.
func CheckNoIntervals(path FieldPath, t Type) error {
	v := &validator{names: slices.Clone(path)}
	_, err := VisitType(t, v)

	return unwrapValidation(err)
}

// unwrapValidation strips the visitor wrapping from the typed errors
// raised by validator.
func unwrapValidation(err error) error {
	var (
		interval *IllegalIntervalTypeError
		dup      *FieldAlreadyExistsError
	)

	switch {
	case errors.As(err, &interval):
		return interval
	case errors.As(err, &dup):
		return dup
	}

	return err
}

// SchemaVisitor is an interface that can be implemented to allow for
// easy traversal and processing of a schema.
//
// A SchemaVisitor can also optionally implement the Before/After Field,
// ListElement, MapKey, or MapValue interfaces to allow them to get called
// at the appropriate points within schema traversal.
type SchemaVisitor[T any] interface {
	Schema(schema *Schema, structResult T) T
	Struct(st *StructType, fieldResults []T) T
	Field(field NestedField, fieldResult T) T
	List(list *ListType, elemResult T) T
	Map(mapType *MapType, keyResult, valueResult T) T
	Primitive(p PrimitiveType) T
}

type BeforeFieldVisitor interface {
	BeforeField(field NestedField)
}

type AfterFieldVisitor interface {
	AfterField(field NestedField)
}

type BeforeListElementVisitor interface {
	BeforeListElement(elem NestedField)
}

type AfterListElementVisitor interface {
	AfterListElement(elem NestedField)
}

type BeforeMapKeyVisitor interface {
	BeforeMapKey(key NestedField)
}

type AfterMapKeyVisitor interface {
	AfterMapKey(key NestedField)
}

type BeforeMapValueVisitor interface {
	BeforeMapValue(value NestedField)
}

type AfterMapValueVisitor interface {
	AfterMapValue(value NestedField)
}

// Visit accepts a visitor and performs a post-order traversal of the given schema.
func Visit[T any](sc *Schema, visitor SchemaVisitor[T]) (res T, err error) {
	if sc == nil {
		err = fmt.Errorf("%w: cannot visit nil schema", ErrInvalidArgument)

		return
	}

	defer recoverVisitor(&err)

	return visitor.Schema(sc, visitStruct(sc.AsStruct(), visitor)), nil
}

// VisitType is like Visit but starts from an arbitrary type. The
// visitor's Schema method is not called.
func VisitType[T any](t Type, visitor SchemaVisitor[T]) (res T, err error) {
	if t == nil {
		err = fmt.Errorf("%w: cannot visit nil type", ErrInvalidArgument)

		return
	}

	defer recoverVisitor(&err)

	return visitType(t, visitor), nil
}

func recoverVisitor(err *error) {
	if r := recover(); r != nil {
		switch e := r.(type) {
		case string:
			*err = fmt.Errorf("error encountered during schema visitor: %s", e)
		case error:
			*err = fmt.Errorf("error encountered during schema visitor: %w", e)
		default:
			panic(r)
		}
	}
}

func visitStruct[T any](obj *StructType, visitor SchemaVisitor[T]) T {
	results := make([]T, len(obj.FieldList))

	bf, _ := visitor.(BeforeFieldVisitor)
	af, _ := visitor.(AfterFieldVisitor)

	for i, f := range obj.FieldList {
		if bf != nil {
			bf.BeforeField(f)
		}

		res := visitType(f.Type, visitor)

		if af != nil {
			af.AfterField(f)
		}

		results[i] = visitor.Field(f, res)
	}

	return visitor.Struct(obj, results)
}

func visitList[T any](obj *ListType, visitor SchemaVisitor[T]) T {
	elemField := obj.ElementField()

	if bl, ok := visitor.(BeforeListElementVisitor); ok {
		bl.BeforeListElement(elemField)
	} else if bf, ok := visitor.(BeforeFieldVisitor); ok {
		bf.BeforeField(elemField)
	}

	res := visitType(elemField.Type, visitor)

	if al, ok := visitor.(AfterListElementVisitor); ok {
		al.AfterListElement(elemField)
	} else if af, ok := visitor.(AfterFieldVisitor); ok {
		af.AfterField(elemField)
	}

	return visitor.List(obj, res)
}

func visitMap[T any](obj *MapType, visitor SchemaVisitor[T]) T {
	keyField, valueField := obj.KeyField(), obj.ValueField()

	if bmk, ok := visitor.(BeforeMapKeyVisitor); ok {
		bmk.BeforeMapKey(keyField)
	} else if bf, ok := visitor.(BeforeFieldVisitor); ok {
		bf.BeforeField(keyField)
	}

	keyRes := visitType(keyField.Type, visitor)

	if amk, ok := visitor.(AfterMapKeyVisitor); ok {
		amk.AfterMapKey(keyField)
	} else if af, ok := visitor.(AfterFieldVisitor); ok {
		af.AfterField(keyField)
	}

	if bmv, ok := visitor.(BeforeMapValueVisitor); ok {
		bmv.BeforeMapValue(valueField)
	} else if bf, ok := visitor.(BeforeFieldVisitor); ok {
		bf.BeforeField(valueField)
	}

	valueRes := visitType(valueField.Type, visitor)

	if amv, ok := visitor.(AfterMapValueVisitor); ok {
		amv.AfterMapValue(valueField)
	} else if af, ok := visitor.(AfterFieldVisitor); ok {
		af.AfterField(valueField)
	}

	return visitor.Map(obj, keyRes, valueRes)
}

func visitType[T any](t Type, visitor SchemaVisitor[T]) T {
	switch typ := t.(type) {
	case *StructType:
		return visitStruct(typ, visitor)
	case *ListType:
		return visitList(typ, visitor)
	case *MapType:
		return visitMap(typ, visitor)
	case PrimitiveType:
		return visitor.Primitive(typ)
	default:
		panic(fmt.Errorf("%w: unknown type %v", ErrInvalidSchema, t))
	}
}

// IndexByName performs a post-order traversal of the schema and returns
// a mapping from the dotted full name of every field, including the
// element, key and value fields of arrays and maps, to the field.
func IndexByName(schema *Schema) (map[string]NestedField, error) {
	if schema == nil {
		return nil, fmt.Errorf("%w: cannot index nil schema", ErrInvalidArgument)
	}

	indexer := &indexByName{index: make(map[string]NestedField)}
	if _, err := Visit(schema, indexer); err != nil {
		return nil, err
	}

	return indexer.index, nil
}

type indexByName struct {
	index      map[string]NestedField
	fieldNames FieldPath
}

func (i *indexByName) Schema(*Schema, map[string]NestedField) map[string]NestedField {
	return i.index
}

func (i *indexByName) Struct(*StructType, []map[string]NestedField) map[string]NestedField {
	return i.index
}

func (i *indexByName) Field(field NestedField, _ map[string]NestedField) map[string]NestedField {
	i.addField(field)

	return i.index
}

func (i *indexByName) List(list *ListType, _ map[string]NestedField) map[string]NestedField {
	i.addField(list.ElementField())

	return i.index
}

func (i *indexByName) Map(mapType *MapType, _, _ map[string]NestedField) map[string]NestedField {
	i.addField(mapType.KeyField())
	i.addField(mapType.ValueField())

	return i.index
}

func (i *indexByName) Primitive(PrimitiveType) map[string]NestedField { return i.index }

func (i *indexByName) addField(f NestedField) {
	fullName := i.fieldNames.Child(f.Name).String()
	if _, ok := i.index[fullName]; ok {
		panic(fmt.Errorf("%w: multiple fields for name %s", ErrInvalidSchema, fullName))
	}

	i.index[fullName] = f
}

func (i *indexByName) BeforeField(field NestedField) {
	i.fieldNames = append(i.fieldNames, field.Name)
}

func (i *indexByName) AfterField(NestedField) {
	i.fieldNames = i.fieldNames[:len(i.fieldNames)-1]
}

type validator struct {
	match NameMatcher
	names FieldPath
}

func (v *validator) Schema(*Schema, struct{}) struct{} { return struct{}{} }

func (v *validator) Struct(st *StructType, _ []struct{}) struct{} {
	if v.match == nil {
		return struct{}{}
	}

	for i, f := range st.FieldList {
		for _, prev := range st.FieldList[:i] {
			if v.match(prev.Name, f.Name) {
				panic(&FieldAlreadyExistsError{Op: "validate", Path: v.names.Child(f.Name), Struct: st})
			}
		}
	}

	return struct{}{}
}

func (v *validator) Field(NestedField, struct{}) struct{}      { return struct{}{} }
func (v *validator) List(*ListType, struct{}) struct{}         { return struct{}{} }
func (v *validator) Map(*MapType, struct{}, struct{}) struct{} { return struct{}{} }
func (v *validator) BeforeField(f NestedField)                 { v.names = append(v.names, f.Name) }
func (v *validator) AfterField(NestedField)                    { v.names = v.names[:len(v.names)-1] }
func (v *validator) Primitive(p PrimitiveType) struct{} {
	if _, ok := p.(IntervalType); ok {
		panic(&IllegalIntervalTypeError{Path: slices.Clone(v.names)})
	}

	return struct{}{}
}
