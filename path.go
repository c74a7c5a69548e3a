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
	"slices"
	"strings"
)

// Reserved path segments used to step into array and map types.
const (
	ElementName = "element"
	KeyName     = "key"
	ValueName   = "value"
)

// FieldPath locates a possibly nested column. Each element is one
// segment; struct fields are addressed by name, array elements by
// "element" and map keys and values by "key" and "value".
type FieldPath []string

// ParseFieldPath splits a dotted path. Segments containing dots can be
// quoted with backticks, a doubled backtick inside a quoted segment is a
// literal backtick.
func ParseFieldPath(s string) (FieldPath, error) {
	var (
		out    FieldPath
		cur    strings.Builder
		quoted bool
		rs     = []rune(s)
	)

	for i := 0; i < len(rs); i++ {
		r := rs[i]
		switch {
		case r == '`' && quoted && i+1 < len(rs) && rs[i+1] == '`':
			cur.WriteRune('`')
			i++
		case r == '`':
			quoted = !quoted
		case r == '.' && !quoted:
			if cur.Len() == 0 {
				return nil, fmt.Errorf("%w: empty segment in field path %q", ErrInvalidArgument, s)
			}
			out = append(out, cur.String())
			cur.Reset()
		default:
			cur.WriteRune(r)
		}
	}

	if quoted {
		return nil, fmt.Errorf("%w: unterminated quote in field path %q", ErrInvalidArgument, s)
	}
	if cur.Len() == 0 {
		return nil, fmt.Errorf("%w: empty segment in field path %q", ErrInvalidArgument, s)
	}

	return append(out, cur.String()), nil
}

// MustParseFieldPath is like ParseFieldPath but panics on error.
func MustParseFieldPath(s string) FieldPath {
	p, err := ParseFieldPath(s)
	if err != nil {
		panic(err)
	}

	return p
}

func (p FieldPath) String() string {
	parts := make([]string, len(p))
	for i, seg := range p {
		if strings.ContainsAny(seg, ".`") {
			seg = "`" + strings.ReplaceAll(seg, "`", "``") + "`"
		}
		parts[i] = seg
	}

	return strings.Join(parts, ".")
}

// UnmarshalJSON accepts either an array of segments or a dotted string.
func (p *FieldPath) UnmarshalJSON(b []byte) error {
	var dotted string
	if err := json.Unmarshal(b, &dotted); err == nil {
		parsed, err := ParseFieldPath(dotted)
		if err != nil {
			return err
		}
		*p = parsed

		return nil
	}

	var segs []string
	if err := json.Unmarshal(b, &segs); err != nil {
		return fmt.Errorf("%w: field path must be a string or an array of strings", ErrInvalidArgument)
	}
	*p = segs

	return nil
}

// Name returns the last segment of the path.
func (p FieldPath) Name() string {
	if len(p) == 0 {
		return ""
	}

	return p[len(p)-1]
}

// Parent returns the path without its last segment.
func (p FieldPath) Parent() FieldPath {
	if len(p) == 0 {
		return nil
	}

	return slices.Clone(p[:len(p)-1])
}

// Child returns a new path with name appended.
func (p FieldPath) Child(name string) FieldPath {
	out := make(FieldPath, len(p), len(p)+1)
	copy(out, p)

	return append(out, name)
}

// HasPrefix reports whether prefix is an ancestor of, or equal to, p under
// the matcher.
func (p FieldPath) HasPrefix(prefix FieldPath, match NameMatcher) bool {
	if len(prefix) > len(p) {
		return false
	}

	for i, seg := range prefix {
		if !match(p[i], seg) {
			return false
		}
	}

	return true
}

// NameMatcher decides whether a path segment names a struct field.
type NameMatcher func(fieldName, segment string) bool

var (
	CaseSensitive   NameMatcher = func(a, b string) bool { return a == b }
	CaseInsensitive NameMatcher = strings.EqualFold
)

// MatcherFor returns CaseSensitive or CaseInsensitive.
func MatcherFor(caseSensitive bool) NameMatcher {
	if caseSensitive {
		return CaseSensitive
	}

	return CaseInsensitive
}

// FieldIndex returns the position of the field matching name, or -1. A
// field whose name equals name exactly wins over other matches.
func (s *StructType) FieldIndex(name string, match NameMatcher) int {
	if idx := slices.IndexFunc(s.FieldList, func(f NestedField) bool {
		return f.Name == name
	}); idx >= 0 {
		return idx
	}

	return slices.IndexFunc(s.FieldList, func(f NestedField) bool {
		return match(f.Name, name)
	})
}

// Location is the result of resolving a FieldPath.
//
// Path holds the canonical names as stored in the schema. Field is the
// resolved field; for the reserved segments it is the synthesized element,
// key or value field of Parent. Parent is the *StructType, *ListType or
// *MapType that directly contains the field and Index is the field's
// position in Parent when Parent is a struct, or -1 otherwise.
type Location struct {
	Path   FieldPath
	Field  NestedField
	Parent Type
	Index  int
}

// InStruct reports whether the location is a struct field, as opposed to
// an array element or a map key or value.
func (l Location) InStruct() bool {
	_, ok := l.Parent.(*StructType)

	return ok
}

// Resolve walks path from the root of schema. It does not modify the schema
// and returns a *MissingFieldError when a segment cannot be found, with the
// error's Path set to the resolved prefix followed by the failing segment.
func Resolve(schema *Schema, path FieldPath, match NameMatcher) (Location, error) {
	return ResolveIn(schema.AsStruct(), path, match)
}

// ResolveIn is like Resolve but starts from an arbitrary struct.
func ResolveIn(root *StructType, path FieldPath, match NameMatcher) (Location, error) {
	if len(path) == 0 {
		return Location{}, fmt.Errorf("%w: empty field path", ErrInvalidArgument)
	}

	var (
		cur      Type = root
		loc      Location
		resolved = make(FieldPath, 0, len(path))
	)

	for _, seg := range path {
		next, err := step(cur, seg, match)
		if err != nil {
			err.Path = append(resolved, seg)

			return Location{}, err
		}

		loc = next
		resolved = append(resolved, loc.Field.Name)
		cur = loc.Field.Type
	}

	loc.Path = resolved

	return loc, nil
}

func step(cur Type, seg string, match NameMatcher) (Location, *MissingFieldError) {
	switch t := cur.(type) {
	case *StructType:
		idx := t.FieldIndex(seg, match)
		if idx < 0 {
			return Location{}, &MissingFieldError{}
		}

		return Location{Field: t.FieldList[idx], Parent: t, Index: idx}, nil
	case *ListType:
		if seg != ElementName {
			return Location{}, &MissingFieldError{Reason: "array elements are addressed as " + ElementName}
		}

		return Location{Field: t.ElementField(), Parent: t, Index: -1}, nil
	case *MapType:
		switch seg {
		case KeyName:
			return Location{Field: t.KeyField(), Parent: t, Index: -1}, nil
		case ValueName:
			return Location{Field: t.ValueField(), Parent: t, Index: -1}, nil
		}

		return Location{}, &MissingFieldError{Reason: "map entries are addressed as " + KeyName + " or " + ValueName}
	default:
		return Location{}, &MissingFieldError{Reason: "not a struct"}
	}
}

// UpdateType returns a copy of root in which the type found at path has
// been replaced with the result of fn. An empty path passes root itself to
// fn, which must then return a struct. Only the containers along path are
// copied, all other subtrees are shared with root.
func UpdateType(root *StructType, path FieldPath, match NameMatcher, fn func(Type) (Type, error)) (*StructType, error) {
	out, err := updateAt(root, path, 0, match, fn)
	if err != nil {
		return nil, err
	}

	st, ok := out.(*StructType)
	if !ok {
		return nil, fmt.Errorf("%w: root must remain a struct, got %s", ErrInvalidSchema, out)
	}

	return st, nil
}

func updateAt(cur Type, path FieldPath, depth int, match NameMatcher, fn func(Type) (Type, error)) (Type, error) {
	if depth == len(path) {
		return fn(cur)
	}

	seg := path[depth]
	loc, missing := step(cur, seg, match)
	if missing != nil {
		missing.Path = slices.Clone(path[:depth+1])

		return nil, missing
	}

	child, err := updateAt(loc.Field.Type, path, depth+1, match, fn)
	if err != nil {
		return nil, err
	}

	switch t := cur.(type) {
	case *StructType:
		fields := slices.Clone(t.FieldList)
		fields[loc.Index].Type = child

		return &StructType{FieldList: fields}, nil
	case *ListType:
		return &ListType{Element: child, ElementRequired: t.ElementRequired}, nil
	default:
		m := cur.(*MapType)
		if loc.Field.Name == KeyName {
			return &MapType{KeyType: child, ValueType: m.ValueType, ValueRequired: m.ValueRequired}, nil
		}

		return &MapType{KeyType: m.KeyType, ValueType: child, ValueRequired: m.ValueRequired}, nil
	}
}
