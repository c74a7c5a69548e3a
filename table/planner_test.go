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

package table_test

import (
	"errors"
	"testing"

	"github.com/apache/evolve-go"
	"github.com/apache/evolve-go/table"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var path = evolve.MustParseFieldPath

func nestedSchema() *evolve.Schema {
	return evolve.NewSchema(
		evolve.NestedField{Name: "id", Type: evolve.PrimitiveTypes.Int32, Required: true},
		evolve.NestedField{Name: "Point", Type: evolve.MustParseType("struct<x: double, y: double>")},
		evolve.NestedField{Name: "points", Type: evolve.MustParseType("array<struct<x: double, y: double>>")},
		evolve.NestedField{Name: "attrs", Type: evolve.MustParseType("map<string, struct<v: int>>")},
	)
}

func fieldType(t *testing.T, s *evolve.Schema, p string) evolve.NestedField {
	t.Helper()

	loc, err := evolve.Resolve(s, path(p), evolve.CaseSensitive)
	require.NoError(t, err)

	return loc.Field
}

func TestAddColumn(t *testing.T) {
	planner := table.NewPlanner("db.events")
	s := evolve.NewSchema(evolve.NestedField{Name: "id", Type: evolve.PrimitiveTypes.Int32})

	out, err := planner.AddColumn(s, table.NewColumn{
		Path: path("data"), Type: evolve.PrimitiveTypes.String, Required: true,
	})
	require.NoError(t, err)

	expected := evolve.NewSchema(
		evolve.NestedField{Name: "id", Type: evolve.PrimitiveTypes.Int32},
		evolve.NestedField{Name: "data", Type: evolve.PrimitiveTypes.String, Required: true},
	)
	assert.True(t, expected.Equals(out), out.String())
	assert.Equal(t, []string{"id"}, s.FieldNames())
}

func TestAddColumnPositions(t *testing.T) {
	planner := table.NewPlanner("db.events")
	s := evolve.NewSchema(
		evolve.NestedField{Name: "a", Type: evolve.PrimitiveTypes.String},
		evolve.NestedField{Name: "b", Type: evolve.PrimitiveTypes.Int32},
		evolve.NestedField{Name: "c", Type: evolve.PrimitiveTypes.Int32},
	)

	tests := []struct {
		pos      *table.ColumnPosition
		expected []string
	}{
		{nil, []string{"a", "b", "c", "n"}},
		{&table.ColumnPosition{}, []string{"a", "b", "c", "n"}},
		{table.PositionFirst(), []string{"n", "a", "b", "c"}},
		{table.PositionAfter("a"), []string{"a", "n", "b", "c"}},
		{table.PositionAfter("C"), []string{"a", "b", "c", "n"}},
	}

	for _, tt := range tests {
		t.Run(tt.pos.String(), func(t *testing.T) {
			out, err := planner.AddColumn(s, table.NewColumn{
				Path: path("n"), Type: evolve.PrimitiveTypes.Int64, Position: tt.pos,
			})
			require.NoError(t, err)
			assert.Equal(t, tt.expected, out.FieldNames())
		})
	}

	_, err := planner.AddColumn(s, table.NewColumn{
		Path: path("n"), Type: evolve.PrimitiveTypes.Int64, Position: table.PositionAfter("z"),
	})
	require.ErrorIs(t, err, evolve.ErrInvalidPosition)

	var posErr *evolve.InvalidPositionError
	require.ErrorAs(t, err, &posErr)
	assert.Equal(t, "z", posErr.Field)
	assert.Equal(t, []string{"a", "b", "c"}, posErr.Known)
	assert.ErrorContains(t, err, "available fields: [a, b, c]")
}

func TestAddNestedColumn(t *testing.T) {
	planner := table.NewPlanner("db.events")
	s := nestedSchema()

	tests := []struct {
		col      string
		parent   string
		expected []string
	}{
		{"Point.z", "Point", []string{"x", "y", "z"}},
		{"point.z", "Point", []string{"x", "y", "z"}},
		{"points.element.z", "points.element", []string{"x", "y", "z"}},
		{"attrs.value.w", "attrs.value", []string{"v", "w"}},
	}

	for _, tt := range tests {
		t.Run(tt.col, func(t *testing.T) {
			out, err := planner.AddColumn(s, table.NewColumn{
				Path: path(tt.col), Type: evolve.PrimitiveTypes.Float64, Doc: "added",
			})
			require.NoError(t, err)

			st, ok := fieldType(t, out, tt.parent).Type.(*evolve.StructType)
			require.True(t, ok)
			assert.Equal(t, tt.expected, st.FieldNames())
			assert.Equal(t, "added", st.FieldList[len(st.FieldList)-1].Doc)
		})
	}

	for _, bad := range []string{"id.z", "attrs.key.z", "missing.z", "points.z"} {
		t.Run(bad, func(t *testing.T) {
			_, err := planner.AddColumn(s, table.NewColumn{Path: path(bad), Type: evolve.PrimitiveTypes.Int32})
			assert.ErrorIs(t, err, evolve.ErrMissingField)
		})
	}
}

func TestAddColumnAlreadyExists(t *testing.T) {
	planner := table.NewPlanner("db.events")
	s := nestedSchema()

	_, err := planner.AddColumn(s, table.NewColumn{Path: path("point.X"), Type: evolve.PrimitiveTypes.Int32})
	require.ErrorIs(t, err, evolve.ErrFieldAlreadyExists)

	var existsErr *evolve.FieldAlreadyExistsError
	require.ErrorAs(t, err, &existsErr)
	assert.Equal(t, "add", existsErr.Op)
	assert.Equal(t, evolve.FieldPath{"Point", "X"}, existsErr.Path)
	assert.Equal(t, []string{"x", "y"}, existsErr.Struct.FieldNames())
	assert.ErrorContains(t, err, "struct<x: double, y: double>")

	_, err = planner.AddColumn(s, table.NewColumn{Path: path("ID"), Type: evolve.PrimitiveTypes.Int32})
	assert.ErrorIs(t, err, evolve.ErrFieldAlreadyExists)

	sensitive := table.NewPlanner("db.events", table.WithCaseSensitive(true))
	out, err := sensitive.AddColumn(s, table.NewColumn{Path: path("ID"), Type: evolve.PrimitiveTypes.Int32})
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "Point", "points", "attrs", "ID"}, out.FieldNames())
}

func TestAddColumnInvalid(t *testing.T) {
	planner := table.NewPlanner("db.events")
	s := nestedSchema()

	_, err := planner.AddColumn(s, table.NewColumn{
		Path: path("span"), Type: evolve.MustParseType("struct<d: interval day to second>"),
	})
	require.ErrorIs(t, err, evolve.ErrIllegalIntervalType)

	var intervalErr *evolve.IllegalIntervalTypeError
	require.ErrorAs(t, err, &intervalErr)
	assert.Equal(t, evolve.FieldPath{"span", "d"}, intervalErr.Path)

	_, err = planner.AddColumn(s, table.NewColumn{Path: path("n")})
	assert.ErrorIs(t, err, evolve.ErrInvalidArgument)

	_, err = planner.AddColumn(s, table.NewColumn{Type: evolve.PrimitiveTypes.Int32})
	assert.ErrorIs(t, err, evolve.ErrInvalidArgument)
}

func TestAddColumnsSequentialVisibility(t *testing.T) {
	planner := table.NewPlanner("db.events")
	s := evolve.NewSchema(
		evolve.NestedField{Name: "a", Type: evolve.PrimitiveTypes.String},
		evolve.NestedField{Name: "b", Type: evolve.PrimitiveTypes.Int32},
	)

	col := func(name, after string) table.NewColumn {
		c := table.NewColumn{Path: path(name), Type: evolve.PrimitiveTypes.Int32}
		if after != "" {
			c.Position = table.PositionAfter(after)
		}

		return c
	}

	out, err := planner.AddColumns(s, []table.NewColumn{col("x", "a"), col("y", "x"), col("z", "y")})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "x", "y", "z", "b"}, out.FieldNames())

	_, err = planner.AddColumns(s, []table.NewColumn{col("y", "x"), col("x", "")})
	assert.ErrorIs(t, err, evolve.ErrInvalidPosition)

	_, err = planner.AddColumns(s, []table.NewColumn{col("x", ""), col("X", "")})
	assert.ErrorIs(t, err, evolve.ErrFieldAlreadyExists)
	assert.Equal(t, []string{"a", "b"}, s.FieldNames())
}

func TestAlterColumnType(t *testing.T) {
	planner := table.NewPlanner("db.events")
	s := nestedSchema()

	out, err := planner.AlterColumnType(s, path("id"), evolve.PrimitiveTypes.Int64)
	require.NoError(t, err)
	assert.Equal(t, evolve.PrimitiveTypes.Int64, fieldType(t, out, "id").Type)
	assert.True(t, fieldType(t, out, "id").Required)

	out, err = planner.AlterColumnType(s, path("attrs.value.v"), evolve.PrimitiveTypes.Int64)
	require.NoError(t, err)
	assert.Equal(t, evolve.PrimitiveTypes.Int64, fieldType(t, out, "attrs.value.v").Type)

	same, err := planner.AlterColumnType(s, path("points.element.x"), evolve.PrimitiveTypes.Float64)
	require.NoError(t, err)
	assert.Same(t, s, same)

	_, err = planner.AlterColumnType(s, path("id"), evolve.PrimitiveTypes.Bool)
	require.ErrorIs(t, err, evolve.ErrUnsupportedChange)

	var changeErr *evolve.UnsupportedChangeError
	require.ErrorAs(t, err, &changeErr)
	assert.Equal(t, evolve.PrimitiveTypes.Int32, changeErr.From)
	assert.Equal(t, evolve.PrimitiveTypes.Bool, changeErr.To)
	assert.Equal(t, evolve.FieldPath{"id"}, changeErr.Field)
	assert.Equal(t, "db.events", changeErr.Table)
	assert.ErrorContains(t, err, "INT -> BOOLEAN")

	_, err = planner.AlterColumnType(s, path("points"), evolve.MustParseType("array<long>"))
	require.ErrorIs(t, err, evolve.ErrUnsupportedStructuredUpdate)

	var structuredErr *evolve.UnsupportedStructuredUpdateError
	require.ErrorAs(t, err, &structuredErr)
	assert.Equal(t, evolve.FieldPath{"points"}, structuredErr.Field)
	assert.Equal(t, "array", structuredErr.Kind)
	assert.ErrorContains(t, err, "points.element")

	_, err = planner.AlterColumnType(s, path("attrs.key"), evolve.PrimitiveTypes.Binary)
	assert.ErrorIs(t, err, evolve.ErrUnsupportedOperation)

	_, err = planner.AlterColumnType(s, path("id"), evolve.PrimitiveTypes.YearMonthInterval)
	assert.ErrorIs(t, err, evolve.ErrIllegalIntervalType)

	_, err = planner.AlterColumnType(s, path("nope"), evolve.PrimitiveTypes.Int64)
	assert.ErrorIs(t, err, evolve.ErrMissingField)
}

func TestSetOrDropNotNull(t *testing.T) {
	planner := table.NewPlanner("db.events")
	s := nestedSchema()

	same, err := planner.SetOrDropNotNull(s, path("id"), true)
	require.NoError(t, err)
	assert.Same(t, s, same)

	relaxed, err := planner.SetOrDropNotNull(s, path("id"), false)
	require.NoError(t, err)
	assert.False(t, fieldType(t, relaxed, "id").Required)
	assert.True(t, fieldType(t, s, "id").Required)

	_, err = planner.SetOrDropNotNull(relaxed, path("id"), true)
	require.ErrorIs(t, err, evolve.ErrNullabilityViolation)

	var nullErr *evolve.NullabilityViolationError
	require.ErrorAs(t, err, &nullErr)
	assert.Equal(t, evolve.FieldPath{"id"}, nullErr.Field)

	_, err = planner.SetOrDropNotNull(s, path("attrs.key"), false)
	assert.ErrorIs(t, err, evolve.ErrUnsupportedOperation)

	same, err = planner.SetOrDropNotNull(s, path("attrs.key"), true)
	require.NoError(t, err)
	assert.Same(t, s, same)

	strict := evolve.NewSchema(evolve.NestedField{
		Name: "tags", Type: &evolve.ListType{Element: evolve.PrimitiveTypes.String, ElementRequired: true},
	})
	out, err := planner.SetOrDropNotNull(strict, path("tags.element"), false)
	require.NoError(t, err)
	assert.False(t, out.Field(0).Type.(*evolve.ListType).ElementRequired)
}

func TestUpdateComment(t *testing.T) {
	planner := table.NewPlanner("db.events")
	s := nestedSchema()

	out, err := planner.UpdateComment(s, path("point.x"), "horizontal")
	require.NoError(t, err)
	assert.Equal(t, "horizontal", fieldType(t, out, "Point.x").Doc)
	assert.Empty(t, fieldType(t, s, "Point.x").Doc)

	cleared, err := planner.UpdateComment(out, path("Point.x"), "")
	require.NoError(t, err)
	assert.True(t, s.Equals(cleared))

	_, err = planner.UpdateComment(s, path("points.element"), "nope")
	assert.ErrorIs(t, err, evolve.ErrUnsupportedOperation)

	_, err = planner.UpdateComment(s, path("Point.z"), "nope")
	require.ErrorIs(t, err, evolve.ErrMissingField)

	var missing *evolve.MissingFieldError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, evolve.FieldPath{"Point", "z"}, missing.Path)
}

func TestRenameColumn(t *testing.T) {
	planner := table.NewPlanner("db.events")
	s := nestedSchema()

	out, err := planner.RenameColumn(s, path("points.element.x"), "lon")
	require.NoError(t, err)
	assert.Equal(t, []string{"lon", "y"},
		fieldType(t, out, "points.element").Type.(*evolve.StructType).FieldNames())

	out, err = planner.RenameColumn(s, path("Point.x"), "X")
	require.NoError(t, err)
	assert.Equal(t, []string{"X", "y"}, fieldType(t, out, "Point").Type.(*evolve.StructType).FieldNames())

	_, err = planner.RenameColumn(s, path("Point.x"), "Y")
	require.ErrorIs(t, err, evolve.ErrFieldAlreadyExists)

	var existsErr *evolve.FieldAlreadyExistsError
	require.ErrorAs(t, err, &existsErr)
	assert.Equal(t, "rename", existsErr.Op)
	assert.Equal(t, evolve.FieldPath{"Point", "Y"}, existsErr.Path)
	assert.True(t, nestedSchema().Equals(s))

	for _, reserved := range []string{"points.element", "attrs.key", "attrs.value"} {
		_, err = planner.RenameColumn(s, path(reserved), "other")
		assert.ErrorIs(t, err, evolve.ErrUnsupportedOperation, reserved)
	}

	_, err = planner.RenameColumn(s, path("id"), "")
	assert.ErrorIs(t, err, evolve.ErrInvalidArgument)
}

func TestDropColumns(t *testing.T) {
	planner := table.NewPlanner("db.events")
	s := nestedSchema()

	out, err := planner.DropColumns(s, []evolve.FieldPath{path("Point.x"), path("attrs")}, false)
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "Point", "points"}, out.FieldNames())
	assert.Equal(t, []string{"y"}, fieldType(t, out, "Point").Type.(*evolve.StructType).FieldNames())

	same, err := planner.DropColumns(s, []evolve.FieldPath{path("missing")}, true)
	require.NoError(t, err)
	assert.Same(t, s, same)

	_, err = planner.DropColumns(s, []evolve.FieldPath{path("missing")}, false)
	assert.ErrorIs(t, err, evolve.ErrMissingField)

	out, err = planner.DropColumns(s, []evolve.FieldPath{path("Point"), path("Point.x")}, true)
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "points", "attrs"}, out.FieldNames())

	_, err = planner.DropColumns(s, []evolve.FieldPath{path("Point"), path("Point.x")}, false)
	assert.ErrorIs(t, err, evolve.ErrMissingField)

	_, err = planner.DropColumns(s, []evolve.FieldPath{path("points.element")}, false)
	assert.ErrorIs(t, err, evolve.ErrUnsupportedOperation)

	all, err := planner.DropColumns(s, []evolve.FieldPath{path("id"), path("Point"), path("points"), path("attrs")}, false)
	require.NoError(t, err)
	assert.Zero(t, all.NumFields())
}

func TestReplaceColumns(t *testing.T) {
	planner := table.NewPlanner("db.events")
	s := nestedSchema()

	fields := []evolve.NestedField{
		{Name: "key", Type: evolve.PrimitiveTypes.String, Required: true},
		{Name: "nested", Type: evolve.MustParseType("struct<a: int, A: int>")},
	}

	out, err := planner.ReplaceColumns(s, fields)
	require.NoError(t, err)
	assert.True(t, evolve.NewSchema(fields...).Equals(out))

	_, err = planner.ReplaceColumns(s, []evolve.NestedField{
		{Name: "a", Type: evolve.PrimitiveTypes.String},
		{Name: "A", Type: evolve.PrimitiveTypes.Int32},
	})
	require.ErrorIs(t, err, evolve.ErrColumnAlreadyExists)

	var dupErr *evolve.ColumnAlreadyExistsError
	require.ErrorAs(t, err, &dupErr)
	assert.Equal(t, "A", dupErr.Name)
	assert.True(t, nestedSchema().Equals(s))

	_, err = planner.ReplaceColumns(s, []evolve.NestedField{
		{Name: "span", Type: evolve.PrimitiveTypes.DayTimeInterval},
	})
	assert.ErrorIs(t, err, evolve.ErrIllegalIntervalType)
}

func TestMoveColumn(t *testing.T) {
	planner := table.NewPlanner("db.events")
	s := nestedSchema()

	out, err := planner.MoveColumn(s, path("attrs"), table.PositionFirst())
	require.NoError(t, err)
	assert.Equal(t, []string{"attrs", "id", "Point", "points"}, out.FieldNames())

	out, err = planner.MoveColumn(s, path("id"), table.PositionAfter("points"))
	require.NoError(t, err)
	assert.Equal(t, []string{"Point", "points", "id", "attrs"}, out.FieldNames())

	out, err = planner.MoveColumn(s, path("Point.x"), table.PositionAfter("y"))
	require.NoError(t, err)
	assert.Equal(t, []string{"y", "x"}, fieldType(t, out, "Point").Type.(*evolve.StructType).FieldNames())

	_, err = planner.MoveColumn(s, path("id"), table.PositionAfter("id"))
	assert.ErrorIs(t, err, evolve.ErrInvalidArgument)

	_, err = planner.MoveColumn(s, path("id"), nil)
	assert.ErrorIs(t, err, evolve.ErrInvalidArgument)

	_, err = planner.MoveColumn(s, path("id"), table.PositionAfter("x"))
	assert.ErrorIs(t, err, evolve.ErrInvalidPosition)
}

func TestAddThenDropRestoresSchema(t *testing.T) {
	planner := table.NewPlanner("db.events")
	s := nestedSchema()

	for _, p := range []string{"extra", "Point.extra", "points.element.extra", "attrs.value.extra"} {
		t.Run(p, func(t *testing.T) {
			added, err := planner.AddColumn(s, table.NewColumn{
				Path: path(p), Type: evolve.PrimitiveTypes.String, Position: table.PositionFirst(),
			})
			require.NoError(t, err)
			assert.False(t, s.Equals(added))

			dropped, err := planner.DropColumns(added, []evolve.FieldPath{path(p)}, false)
			require.NoError(t, err)
			assert.True(t, s.Equals(dropped), dropped.String())
		})
	}
}

func TestPlannerErrorsAreTyped(t *testing.T) {
	planner := table.NewPlanner("db.events")
	_, err := planner.AlterColumnType(nestedSchema(), path("Point.z"), evolve.PrimitiveTypes.Int64)

	var missing *evolve.MissingFieldError
	assert.True(t, errors.As(err, &missing))
}
