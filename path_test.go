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

package evolve_test

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/apache/evolve-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var nestedSchema = evolve.NewSchema(
	evolve.NestedField{Name: "id", Type: evolve.PrimitiveTypes.Int64, Required: true},
	evolve.NestedField{Name: "Point", Type: evolve.MustParseType("struct<x: double, y: double>")},
	evolve.NestedField{Name: "points", Type: evolve.MustParseType("array<struct<x: double, y: double>>")},
	evolve.NestedField{Name: "attrs", Type: evolve.MustParseType("map<string, struct<v: int>>")},
	evolve.NestedField{Name: "a.b", Type: evolve.PrimitiveTypes.String},
)

func TestParseFieldPath(t *testing.T) {
	tests := []struct {
		input    string
		expected evolve.FieldPath
	}{
		{"a", evolve.FieldPath{"a"}},
		{"a.b.c", evolve.FieldPath{"a", "b", "c"}},
		{"`a.b`.c", evolve.FieldPath{"a.b", "c"}},
		{"`a``b`", evolve.FieldPath{"a`b"}},
		{"points.element.x", evolve.FieldPath{"points", "element", "x"}},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			p, err := evolve.ParseFieldPath(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, p)
			assert.Equal(t, tt.input, p.String())
		})
	}

	for _, bad := range []string{"", "a..b", "a.", "`a"} {
		_, err := evolve.ParseFieldPath(bad)
		assert.ErrorIs(t, err, evolve.ErrInvalidArgument, bad)
	}

	assert.Panics(t, func() { evolve.MustParseFieldPath("a.") })
}

func TestFieldPathJSON(t *testing.T) {
	var p evolve.FieldPath
	require.NoError(t, json.Unmarshal([]byte(`"a.b"`), &p))
	assert.Equal(t, evolve.FieldPath{"a", "b"}, p)

	require.NoError(t, json.Unmarshal([]byte(`["a.b", "c"]`), &p))
	assert.Equal(t, evolve.FieldPath{"a.b", "c"}, p)

	assert.ErrorIs(t, json.Unmarshal([]byte(`42`), &p), evolve.ErrInvalidArgument)
	assert.ErrorIs(t, json.Unmarshal([]byte(`"a..b"`), &p), evolve.ErrInvalidArgument)
}

func TestFieldPathHelpers(t *testing.T) {
	p := evolve.FieldPath{"a", "b", "c"}
	assert.Equal(t, "c", p.Name())
	assert.Equal(t, evolve.FieldPath{"a", "b"}, p.Parent())
	assert.Empty(t, evolve.FieldPath{}.Name())
	assert.Nil(t, evolve.FieldPath{}.Parent())

	child := p.Parent().Child("d")
	assert.Equal(t, evolve.FieldPath{"a", "b", "d"}, child)
	assert.Equal(t, evolve.FieldPath{"a", "b", "c"}, p, "Child must not alias the receiver")

	assert.True(t, p.HasPrefix(evolve.FieldPath{"A"}, evolve.CaseInsensitive))
	assert.False(t, p.HasPrefix(evolve.FieldPath{"A"}, evolve.CaseSensitive))
	assert.True(t, p.HasPrefix(p, evolve.CaseSensitive))
	assert.False(t, p.HasPrefix(child.Child("e"), evolve.CaseSensitive))
}

func TestFieldIndexPrefersExactName(t *testing.T) {
	st := &evolve.StructType{FieldList: []evolve.NestedField{
		{Name: "a", Type: evolve.PrimitiveTypes.Int32},
		{Name: "A", Type: evolve.PrimitiveTypes.Int64},
	}}

	assert.Equal(t, 1, st.FieldIndex("A", evolve.CaseInsensitive))
	assert.Equal(t, 0, st.FieldIndex("a", evolve.CaseInsensitive))
	assert.Equal(t, 1, st.FieldIndex("A", evolve.CaseSensitive))
	assert.Equal(t, -1, st.FieldIndex("b", evolve.CaseInsensitive))

	st = &evolve.StructType{FieldList: []evolve.NestedField{
		{Name: "Id", Type: evolve.PrimitiveTypes.Int32},
	}}
	assert.Equal(t, 0, st.FieldIndex("ID", evolve.CaseInsensitive))
	assert.Equal(t, -1, st.FieldIndex("ID", evolve.CaseSensitive))
}

func TestResolve(t *testing.T) {
	tests := []struct {
		path          string
		caseSensitive bool
		expected      evolve.FieldPath
		typ           string
		index         int
	}{
		{"id", false, evolve.FieldPath{"id"}, "long", 0},
		{"point.X", false, evolve.FieldPath{"Point", "x"}, "double", 0},
		{"Point.y", true, evolve.FieldPath{"Point", "y"}, "double", 1},
		{"points", false, evolve.FieldPath{"points"}, "array<struct<x: double, y: double>>", 2},
		{"points.element", false, evolve.FieldPath{"points", "element"}, "struct<x: double, y: double>", -1},
		{"points.element.y", false, evolve.FieldPath{"points", "element", "y"}, "double", 1},
		{"attrs.key", false, evolve.FieldPath{"attrs", "key"}, "string", -1},
		{"attrs.value.v", false, evolve.FieldPath{"attrs", "value", "v"}, "int", 0},
		{"`a.b`", true, evolve.FieldPath{"a.b"}, "string", 4},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			loc, err := evolve.Resolve(nestedSchema, evolve.MustParseFieldPath(tt.path),
				evolve.MatcherFor(tt.caseSensitive))
			require.NoError(t, err)
			assert.Equal(t, tt.expected, loc.Path)
			assert.Equal(t, tt.typ, loc.Field.Type.String())
			assert.Equal(t, tt.index, loc.Index)
			assert.Equal(t, tt.index >= 0, loc.InStruct())
		})
	}
}

func TestResolveKeyIsRequired(t *testing.T) {
	loc, err := evolve.Resolve(nestedSchema, evolve.FieldPath{"attrs", "key"}, evolve.CaseInsensitive)
	require.NoError(t, err)
	assert.True(t, loc.Field.Required)
	assert.IsType(t, (*evolve.MapType)(nil), loc.Parent)
}

func TestResolveMissing(t *testing.T) {
	tests := []struct {
		path          string
		caseSensitive bool
		expected      evolve.FieldPath
		reason        string
	}{
		{"nope", false, evolve.FieldPath{"nope"}, ""},
		{"point.x", true, evolve.FieldPath{"point"}, ""},
		{"POINT.z", false, evolve.FieldPath{"Point", "z"}, ""},
		{"id.x", false, evolve.FieldPath{"id", "x"}, "not a struct"},
		{"points.x", false, evolve.FieldPath{"points", "x"}, "array elements are addressed as element"},
		{"attrs.v", false, evolve.FieldPath{"attrs", "v"}, "map entries are addressed as key or value"},
		{"attrs.value.w", false, evolve.FieldPath{"attrs", "value", "w"}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			_, err := evolve.Resolve(nestedSchema, evolve.MustParseFieldPath(tt.path),
				evolve.MatcherFor(tt.caseSensitive))
			require.ErrorIs(t, err, evolve.ErrMissingField)

			var missing *evolve.MissingFieldError
			require.True(t, errors.As(err, &missing))
			assert.Equal(t, tt.expected, missing.Path)
			assert.Equal(t, tt.reason, missing.Reason)
		})
	}

	_, err := evolve.Resolve(nestedSchema, nil, evolve.CaseSensitive)
	assert.ErrorIs(t, err, evolve.ErrInvalidArgument)
}

func TestResolveIsPure(t *testing.T) {
	before := nestedSchema.Fingerprint()
	path := evolve.MustParseFieldPath("points.element.x")

	first, err := evolve.Resolve(nestedSchema, path, evolve.CaseInsensitive)
	require.NoError(t, err)
	second, err := evolve.Resolve(nestedSchema, path, evolve.CaseInsensitive)
	require.NoError(t, err)

	assert.Equal(t, first.Path, second.Path)
	assert.True(t, first.Field.Equals(second.Field))
	assert.Equal(t, before, nestedSchema.Fingerprint())
}

func TestUpdateType(t *testing.T) {
	root := nestedSchema.AsStruct()

	out, err := evolve.UpdateType(root, evolve.FieldPath{"points", "element", "x"}, evolve.CaseInsensitive,
		func(evolve.Type) (evolve.Type, error) { return evolve.PrimitiveTypes.Float32, nil })
	require.NoError(t, err)

	updated, err := evolve.ResolveIn(out, evolve.FieldPath{"points", "element", "x"}, evolve.CaseSensitive)
	require.NoError(t, err)
	assert.Equal(t, evolve.PrimitiveTypes.Float32, updated.Field.Type)

	orig, err := evolve.Resolve(nestedSchema, evolve.FieldPath{"points", "element", "x"}, evolve.CaseSensitive)
	require.NoError(t, err)
	assert.Equal(t, evolve.PrimitiveTypes.Float64, orig.Field.Type)

	// untouched siblings are shared
	assert.Same(t, root.FieldList[1].Type, out.FieldList[1].Type)
	assert.Same(t, root.FieldList[3].Type, out.FieldList[3].Type)

	_, err = evolve.UpdateType(root, evolve.FieldPath{"attrs", "nope"}, evolve.CaseInsensitive,
		func(typ evolve.Type) (evolve.Type, error) { return typ, nil })
	var missing *evolve.MissingFieldError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, evolve.FieldPath{"attrs", "nope"}, missing.Path)

	_, err = evolve.UpdateType(root, nil, evolve.CaseInsensitive,
		func(evolve.Type) (evolve.Type, error) { return evolve.PrimitiveTypes.Int32, nil })
	assert.ErrorIs(t, err, evolve.ErrInvalidSchema)
}
