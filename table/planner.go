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

package table

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"

	"github.com/apache/evolve-go"
)

// ColumnPosition places a column within its enclosing struct. A nil or
// zero position appends the column.
type ColumnPosition struct {
	First bool   `json:"first,omitempty"`
	After string `json:"after,omitempty"`
}

// PositionFirst places a column before all of its siblings.
func PositionFirst() *ColumnPosition { return &ColumnPosition{First: true} }

// PositionAfter places a column immediately after the named sibling.
func PositionAfter(sibling string) *ColumnPosition { return &ColumnPosition{After: sibling} }

func (p *ColumnPosition) isSet() bool { return p != nil && (p.First || p.After != "") }

func (p *ColumnPosition) String() string {
	switch {
	case !p.isSet():
		return ""
	case p.First:
		return "FIRST"
	default:
		return "AFTER " + p.After
	}
}

// index returns the insertion index into st.
func (p *ColumnPosition) index(st *evolve.StructType, match evolve.NameMatcher) (int, error) {
	switch {
	case !p.isSet():
		return len(st.FieldList), nil
	case p.First:
		return 0, nil
	}

	idx := st.FieldIndex(p.After, match)
	if idx < 0 {
		return 0, &evolve.InvalidPositionError{Field: p.After, Known: st.FieldNames()}
	}

	return idx + 1, nil
}

// NewColumn describes a column to be added. The last segment of Path is
// the new column's name and the segments before it locate the struct it
// is added to.
type NewColumn struct {
	Path     evolve.FieldPath
	Type     evolve.Type
	Required bool
	Doc      string
	Position *ColumnPosition
	Default  *string
}

func (c NewColumn) MarshalJSON() ([]byte, error) {
	typ, err := evolve.MarshalType(c.Type)
	if err != nil {
		return nil, err
	}

	return json.Marshal(struct {
		Path     evolve.FieldPath `json:"path"`
		Type     json.RawMessage  `json:"type"`
		Required bool             `json:"required"`
		Doc      string           `json:"doc,omitempty"`
		Position *ColumnPosition  `json:"position,omitempty"`
		Default  *string          `json:"default,omitempty"`
	}{c.Path, typ, c.Required, c.Doc, c.Position, c.Default})
}

func (c *NewColumn) UnmarshalJSON(b []byte) error {
	aux := struct {
		Path     evolve.FieldPath `json:"path"`
		Type     json.RawMessage  `json:"type"`
		Required bool             `json:"required"`
		Doc      string           `json:"doc"`
		Position *ColumnPosition  `json:"position"`
		Default  *string          `json:"default"`
	}{}

	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}

	typ, err := evolve.UnmarshalType(aux.Type)
	if err != nil {
		return fmt.Errorf("column %s: %w", aux.Path, err)
	}

	*c = NewColumn{
		Path:     aux.Path,
		Type:     typ,
		Required: aux.Required,
		Doc:      aux.Doc,
		Position: aux.Position,
		Default:  aux.Default,
	}

	return nil
}

// Planner computes the schema produced by a single change. Every method
// is a pure function of its arguments: the input schema is never
// modified and a new schema is returned on success.
type Planner struct {
	tableName string
	match     evolve.NameMatcher
	evaluator Evaluator
}

// NewPlanner returns a planner for the named table. The table name only
// appears in error messages.
func NewPlanner(tableName string, opts ...Option) Planner {
	o := newOptions(opts)
	if o.tableName != "" {
		tableName = o.tableName
	}

	return Planner{
		tableName: tableName,
		match:     evolve.MatcherFor(o.caseSensitive),
		evaluator: o.evaluator,
	}
}

func (p Planner) resolve(root *evolve.StructType, path evolve.FieldPath) (evolve.Location, error) {
	return evolve.ResolveIn(root, path, p.match)
}

// replaceField rewrites the field at loc with the result of fn. loc must
// have been resolved against root.
func replaceField(root *evolve.StructType, loc evolve.Location, fn func(evolve.NestedField) evolve.NestedField) (*evolve.StructType, error) {
	return evolve.UpdateType(root, loc.Path.Parent(), evolve.CaseSensitive, func(t evolve.Type) (evolve.Type, error) {
		switch parent := t.(type) {
		case *evolve.StructType:
			fields := slices.Clone(parent.FieldList)
			fields[loc.Index] = fn(fields[loc.Index])

			return &evolve.StructType{FieldList: fields}, nil
		case *evolve.ListType:
			elem := fn(parent.ElementField())

			return &evolve.ListType{Element: elem.Type, ElementRequired: elem.Required}, nil
		case *evolve.MapType:
			if loc.Field.Name == evolve.KeyName {
				key := fn(parent.KeyField())

				return &evolve.MapType{KeyType: key.Type, ValueType: parent.ValueType, ValueRequired: parent.ValueRequired}, nil
			}

			val := fn(parent.ValueField())

			return &evolve.MapType{KeyType: parent.KeyType, ValueType: val.Type, ValueRequired: val.Required}, nil
		}

		return nil, fmt.Errorf("%w: %s is not a nested type", evolve.ErrInvalidSchema, loc.Path.Parent())
	})
}

func isMapKey(loc evolve.Location) bool {
	_, ok := loc.Parent.(*evolve.MapType)

	return ok && loc.Field.Name == evolve.KeyName
}

func schemaOf(st *evolve.StructType) *evolve.Schema {
	return evolve.NewSchema(st.FieldList...)
}

// AddColumn adds a column to the struct located by the parent of
// col.Path. The parent may be reached through array elements and map
// keys or values but must itself be a struct.
func (p Planner) AddColumn(s *evolve.Schema, col NewColumn) (*evolve.Schema, error) {
	root, err := p.addColumn(s.AsStruct(), col)
	if err != nil {
		return nil, err
	}

	return schemaOf(root), nil
}

// AddColumns adds the columns in order. Each column sees the schema as
// changed by the columns before it, so a position may refer to a column
// added earlier in the same list but not to one added later.
func (p Planner) AddColumns(s *evolve.Schema, cols []NewColumn) (*evolve.Schema, error) {
	root := s.AsStruct()
	for _, col := range cols {
		next, err := p.addColumn(root, col)
		if err != nil {
			return nil, err
		}
		root = next
	}

	return schemaOf(root), nil
}

func (p Planner) addColumn(root *evolve.StructType, col NewColumn) (*evolve.StructType, error) {
	if len(col.Path) == 0 {
		return nil, fmt.Errorf("%w: column path must contain at least the new column name", evolve.ErrInvalidArgument)
	}

	if col.Type == nil {
		return nil, fmt.Errorf("%w: column %s has no type", evolve.ErrInvalidArgument, col.Path)
	}

	if err := evolve.CheckNoIntervals(col.Path, col.Type); err != nil {
		return nil, err
	}

	var (
		name      = col.Path.Name()
		target    = root
		canonical = evolve.FieldPath{}
	)

	if parentPath := col.Path.Parent(); len(parentPath) > 0 {
		loc, err := p.resolve(root, parentPath)
		if err != nil {
			return nil, err
		}

		st, ok := loc.Field.Type.(*evolve.StructType)
		if !ok {
			return nil, &evolve.MissingFieldError{
				Path:   loc.Path.Child(name),
				Reason: loc.Path.String() + " is not a struct",
			}
		}
		target, canonical = st, loc.Path
	}

	if target.FieldIndex(name, p.match) >= 0 {
		return nil, &evolve.FieldAlreadyExistsError{Op: "add", Path: canonical.Child(name), Struct: target}
	}

	idx, err := col.Position.index(target, p.match)
	if err != nil {
		return nil, err
	}

	field := evolve.NestedField{Name: name, Type: col.Type, Required: col.Required, Doc: col.Doc}
	if col.Default != nil {
		if field, err = p.withDefault(canonical.Child(name), field, *col.Default); err != nil {
			return nil, err
		}
	}

	return evolve.UpdateType(root, canonical, evolve.CaseSensitive, func(t evolve.Type) (evolve.Type, error) {
		st := t.(*evolve.StructType)

		return &evolve.StructType{FieldList: slices.Insert(slices.Clone(st.FieldList), idx, field)}, nil
	})
}

// AlterColumnType changes the type of a primitive column, array element
// or map value. Only the widenings accepted by [evolve.CanPromote] are
// allowed; changing a column to its current type is a no-op.
func (p Planner) AlterColumnType(s *evolve.Schema, path evolve.FieldPath, newType evolve.Type) (*evolve.Schema, error) {
	if newType == nil {
		return nil, fmt.Errorf("%w: no type given for %s", evolve.ErrInvalidArgument, path)
	}

	root := s.AsStruct()
	loc, err := p.resolve(root, path)
	if err != nil {
		return nil, err
	}

	if nested, ok := loc.Field.Type.(evolve.NestedType); ok {
		return nil, &evolve.UnsupportedStructuredUpdateError{Field: loc.Path, Kind: nested.Type()}
	}

	if err := evolve.CheckNoIntervals(loc.Path, newType); err != nil {
		return nil, err
	}

	if loc.Field.Type.Equals(newType) {
		return s, nil
	}

	if isMapKey(loc) {
		return nil, fmt.Errorf("%w: cannot change the type of map key %s", evolve.ErrUnsupportedOperation, loc.Path)
	}

	if !evolve.CanPromote(loc.Field.Type, newType) {
		return nil, &evolve.UnsupportedChangeError{
			From: loc.Field.Type, To: newType, Field: loc.Path, Table: p.tableName,
		}
	}

	out, err := replaceField(root, loc, func(f evolve.NestedField) evolve.NestedField {
		f.Type = newType

		return f
	})
	if err != nil {
		return nil, err
	}

	return schemaOf(out), nil
}

// SetOrDropNotNull changes the nullability of a struct field, array
// element or map value. A nullable column can never be made required
// again: setting NOT NULL on a nullable column fails with a
// *NullabilityViolationError, setting it on a required column is a no-op.
func (p Planner) SetOrDropNotNull(s *evolve.Schema, path evolve.FieldPath, notNull bool) (*evolve.Schema, error) {
	root := s.AsStruct()
	loc, err := p.resolve(root, path)
	if err != nil {
		return nil, err
	}

	if isMapKey(loc) {
		if notNull {
			return s, nil
		}

		return nil, fmt.Errorf("%w: map key %s is always required", evolve.ErrUnsupportedOperation, loc.Path)
	}

	if notNull {
		if loc.Field.Required {
			return s, nil
		}

		return nil, &evolve.NullabilityViolationError{Field: loc.Path}
	}

	if !loc.Field.Required {
		return s, nil
	}

	out, err := replaceField(root, loc, func(f evolve.NestedField) evolve.NestedField {
		f.Required = false

		return f
	})
	if err != nil {
		return nil, err
	}

	return schemaOf(out), nil
}

func (p Planner) resolveStructField(root *evolve.StructType, path evolve.FieldPath, op string) (evolve.Location, error) {
	loc, err := p.resolve(root, path)
	if err != nil {
		return loc, err
	}

	if !loc.InStruct() {
		return loc, fmt.Errorf("%w: cannot %s %s, only struct fields support it",
			evolve.ErrUnsupportedOperation, op, loc.Path)
	}

	return loc, nil
}

// UpdateComment replaces the comment of a struct field. An empty comment
// removes it.
func (p Planner) UpdateComment(s *evolve.Schema, path evolve.FieldPath, doc string) (*evolve.Schema, error) {
	root := s.AsStruct()
	loc, err := p.resolveStructField(root, path, "comment on")
	if err != nil {
		return nil, err
	}

	if loc.Field.Doc == doc {
		return s, nil
	}

	out, err := replaceField(root, loc, func(f evolve.NestedField) evolve.NestedField {
		f.Doc = doc

		return f
	})
	if err != nil {
		return nil, err
	}

	return schemaOf(out), nil
}

// SetDefault stores expr as the column's current default and the literal
// it evaluates to as its existence default.
func (p Planner) SetDefault(s *evolve.Schema, path evolve.FieldPath, expr string) (*evolve.Schema, error) {
	root := s.AsStruct()
	loc, err := p.resolveStructField(root, path, "set a default on")
	if err != nil {
		return nil, err
	}

	field, err := p.withDefault(loc.Path, loc.Field, expr)
	if err != nil {
		return nil, err
	}

	out, err := replaceField(root, loc, func(evolve.NestedField) evolve.NestedField { return field })
	if err != nil {
		return nil, err
	}

	return schemaOf(out), nil
}

// DropDefault clears both the current and the existence default.
func (p Planner) DropDefault(s *evolve.Schema, path evolve.FieldPath) (*evolve.Schema, error) {
	root := s.AsStruct()
	loc, err := p.resolveStructField(root, path, "drop the default of")
	if err != nil {
		return nil, err
	}

	if loc.Field.CurrentDefault == nil && loc.Field.ExistenceDefault == nil {
		return s, nil
	}

	out, err := replaceField(root, loc, func(f evolve.NestedField) evolve.NestedField {
		f.CurrentDefault, f.ExistenceDefault = nil, nil

		return f
	})
	if err != nil {
		return nil, err
	}

	return schemaOf(out), nil
}

// RenameColumn renames a struct field. The reserved element, key and
// value segments cannot be renamed, only fields reached through them.
func (p Planner) RenameColumn(s *evolve.Schema, path evolve.FieldPath, newName string) (*evolve.Schema, error) {
	if newName == "" {
		return nil, fmt.Errorf("%w: new name for %s is empty", evolve.ErrInvalidArgument, path)
	}

	root := s.AsStruct()
	loc, err := p.resolveStructField(root, path, "rename")
	if err != nil {
		return nil, err
	}

	parent := loc.Parent.(*evolve.StructType)
	if idx := parent.FieldIndex(newName, p.match); idx >= 0 && idx != loc.Index {
		return nil, &evolve.FieldAlreadyExistsError{
			Op: "rename", Path: loc.Path.Parent().Child(newName), Struct: parent,
		}
	}

	if loc.Field.Name == newName {
		return s, nil
	}

	out, err := replaceField(root, loc, func(f evolve.NestedField) evolve.NestedField {
		f.Name = newName

		return f
	})
	if err != nil {
		return nil, err
	}

	return schemaOf(out), nil
}

// DropColumns removes the given struct fields in order. A path that does
// not resolve, including one below a column dropped earlier in the same
// call, fails with a *MissingFieldError unless ifExists is set, in which
// case it is skipped.
func (p Planner) DropColumns(s *evolve.Schema, paths []evolve.FieldPath, ifExists bool) (*evolve.Schema, error) {
	root := s.AsStruct()
	changed := false

	for _, path := range paths {
		loc, err := p.resolveStructField(root, path, "drop")
		if err != nil {
			if ifExists && errors.Is(err, evolve.ErrMissingField) {
				continue
			}

			return nil, err
		}

		root, err = evolve.UpdateType(root, loc.Path.Parent(), evolve.CaseSensitive, func(t evolve.Type) (evolve.Type, error) {
			st := t.(*evolve.StructType)

			return &evolve.StructType{FieldList: slices.Delete(slices.Clone(st.FieldList), loc.Index, loc.Index+1)}, nil
		})
		if err != nil {
			return nil, err
		}
		changed = true
	}

	if !changed {
		return s, nil
	}

	return schemaOf(root), nil
}

// ReplaceColumns replaces the top level column list. Names must be
// unique; nested types are taken as given.
func (p Planner) ReplaceColumns(_ *evolve.Schema, fields []evolve.NestedField) (*evolve.Schema, error) {
	for i, f := range fields {
		for _, prev := range fields[:i] {
			if p.match(prev.Name, f.Name) {
				return nil, &evolve.ColumnAlreadyExistsError{Name: f.Name}
			}
		}
	}

	for _, f := range fields {
		if f.Type == nil {
			return nil, fmt.Errorf("%w: column %s has no type", evolve.ErrInvalidArgument, f.Name)
		}

		if err := evolve.CheckNoIntervals(evolve.FieldPath{f.Name}, f.Type); err != nil {
			return nil, err
		}
	}

	return evolve.NewSchema(slices.Clone(fields)...), nil
}

// MoveColumn repositions a struct field among its siblings.
func (p Planner) MoveColumn(s *evolve.Schema, path evolve.FieldPath, pos *ColumnPosition) (*evolve.Schema, error) {
	if !pos.isSet() {
		return nil, fmt.Errorf("%w: no position given for %s", evolve.ErrInvalidArgument, path)
	}

	root := s.AsStruct()
	loc, err := p.resolveStructField(root, path, "move")
	if err != nil {
		return nil, err
	}

	if pos.After != "" && p.match(loc.Field.Name, pos.After) {
		return nil, fmt.Errorf("%w: cannot move %s after itself", evolve.ErrInvalidArgument, loc.Path)
	}

	parent := loc.Parent.(*evolve.StructType)
	rest := &evolve.StructType{
		FieldList: slices.Delete(slices.Clone(parent.FieldList), loc.Index, loc.Index+1),
	}

	idx, err := pos.index(rest, p.match)
	if err != nil {
		return nil, err
	}

	fields := slices.Insert(rest.FieldList, idx, loc.Field)
	out, err := evolve.UpdateType(root, loc.Path.Parent(), evolve.CaseSensitive, func(evolve.Type) (evolve.Type, error) {
		return &evolve.StructType{FieldList: fields}, nil
	})
	if err != nil {
		return nil, err
	}

	return schemaOf(out), nil
}
