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
	"testing"

	"github.com/apache/evolve-go"
	"github.com/apache/evolve-go/table"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTable(t *testing.T, s *evolve.Schema) *table.Table {
	t.Helper()

	tbl, err := table.New("db.events", s, evolve.Properties{
		table.PropertyProvider: "parquet",
		"owner":                "analytics",
	})
	require.NoError(t, err)

	return tbl
}

func TestApplyBatch(t *testing.T) {
	tbl := newTable(t, evolve.NewSchema(
		evolve.NestedField{Name: "a", Type: evolve.PrimitiveTypes.String},
		evolve.NestedField{Name: "b", Type: evolve.PrimitiveTypes.Int32, Required: true},
	))

	out, err := table.ApplyBatch(tbl, []table.Update{
		table.NewAddColumnsUpdate(
			table.NewColumn{Path: path("x"), Type: evolve.PrimitiveTypes.Int32, Position: table.PositionAfter("a")},
			table.NewColumn{Path: path("y"), Type: evolve.PrimitiveTypes.Int32, Position: table.PositionAfter("x")},
			table.NewColumn{Path: path("z"), Type: evolve.PrimitiveTypes.Int32, Position: table.PositionAfter("y")},
		),
		table.NewAlterColumnTypeUpdate(path("x"), evolve.PrimitiveTypes.Int64),
		table.NewNullabilityUpdate(path("b"), false),
		table.NewCommentUpdate(path("a"), "label"),
		table.NewRenameColumnUpdate(path("z"), "zz"),
		table.NewDropColumnsUpdate(true, path("y"), path("missing")),
		table.NewMoveColumnUpdate(path("b"), table.PositionFirst()),
		table.NewSetDefaultUpdate(path("zz"), "7"),
		table.NewSetPropertiesUpdate(evolve.Properties{"comment": "events"}),
		table.NewRemovePropertiesUpdate([]string{"owner", "absent"}),
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"b", "a", "x", "zz"}, out.Schema().FieldNames())
	assert.Equal(t, evolve.PrimitiveTypes.Int64, out.Schema().Field(2).Type)
	assert.False(t, out.Schema().Field(0).Required)
	assert.Equal(t, "label", out.Schema().Field(1).Doc)
	assert.Equal(t, "7", *out.Schema().Field(3).ExistenceDefault)
	assert.Equal(t, evolve.Properties{table.PropertyProvider: "parquet", "comment": "events"}, out.Properties())
	assert.Equal(t, "db.events", out.Name())

	assert.Equal(t, []string{"a", "b"}, tbl.Schema().FieldNames())
	assert.Equal(t, "analytics", tbl.Properties()["owner"])
}

func TestApplyBatchIsAllOrNothing(t *testing.T) {
	tbl := newTable(t, evolve.NewSchema(
		evolve.NestedField{Name: "id", Type: evolve.PrimitiveTypes.Int32},
	))
	before := tbl.Schema()

	var applied []string
	hook := table.WithUpdateHook(func(u table.Update, _ *evolve.Schema) {
		applied = append(applied, u.Action())
	})

	out, err := table.ApplyBatch(tbl, []table.Update{
		table.NewAddColumnsUpdate(table.NewColumn{Path: path("data"), Type: evolve.PrimitiveTypes.String}),
		table.NewSetPropertiesUpdate(evolve.Properties{"k": "v"}),
		table.NewAlterColumnTypeUpdate(path("id"), evolve.PrimitiveTypes.Bool),
		table.NewDropColumnsUpdate(false, path("data")),
	}, hook)
	require.ErrorIs(t, err, evolve.ErrUnsupportedChange)
	assert.Nil(t, out)

	assert.Equal(t, []string{table.UpdateAddColumns, table.UpdateSetProperties}, applied)
	assert.Same(t, before, tbl.Schema())
	assert.Equal(t, []string{"id"}, tbl.Schema().FieldNames())
	assert.NotContains(t, tbl.Properties(), "k")
}

func TestApplyBatchNoChanges(t *testing.T) {
	tbl := newTable(t, evolve.NewSchema(
		evolve.NestedField{Name: "id", Type: evolve.PrimitiveTypes.Int32},
	))

	out, err := table.ApplyBatch(tbl, nil)
	require.NoError(t, err)
	assert.Same(t, tbl, out)

	out, err = table.ApplyBatch(tbl, []table.Update{
		table.NewDropColumnsUpdate(true, path("missing")),
		table.NewRemovePropertiesUpdate([]string{"absent"}),
	})
	require.NoError(t, err)
	assert.Same(t, tbl, out)
}

func TestApplyBatchCaseSensitivity(t *testing.T) {
	tbl := newTable(t, evolve.NewSchema(
		evolve.NestedField{Name: "Id", Type: evolve.PrimitiveTypes.Int32},
	))

	updates := []table.Update{table.NewAlterColumnTypeUpdate(path("id"), evolve.PrimitiveTypes.Int64)}

	out, err := table.ApplyBatch(tbl, updates)
	require.NoError(t, err)
	assert.Equal(t, evolve.PrimitiveTypes.Int64, out.Schema().Field(0).Type)

	_, err = table.ApplyBatch(tbl, updates, table.WithCaseSensitive(true))
	assert.ErrorIs(t, err, evolve.ErrMissingField)
}

func TestApplyBatchRejectsAmbiguousSnapshot(t *testing.T) {
	tbl := newTable(t, evolve.NewSchema(
		evolve.NestedField{Name: "a", Type: evolve.PrimitiveTypes.Int32},
		evolve.NestedField{Name: "A", Type: evolve.PrimitiveTypes.Int32},
	))

	updates := []table.Update{table.NewAlterColumnTypeUpdate(path("A"), evolve.PrimitiveTypes.Int64)}

	_, err := table.ApplyBatch(tbl, updates)
	require.ErrorIs(t, err, evolve.ErrFieldAlreadyExists)

	var dup *evolve.FieldAlreadyExistsError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, evolve.FieldPath{"A"}, dup.Path)

	_, err = table.ApplyBatch(tbl, nil)
	assert.ErrorIs(t, err, evolve.ErrFieldAlreadyExists)

	txn := tbl.NewTransaction()
	assert.ErrorIs(t, txn.Apply(updates), evolve.ErrFieldAlreadyExists)

	out, err := table.ApplyBatch(tbl, updates, table.WithCaseSensitive(true))
	require.NoError(t, err)
	assert.Equal(t, evolve.PrimitiveTypes.Int32, out.Schema().Field(0).Type)
	assert.Equal(t, evolve.PrimitiveTypes.Int64, out.Schema().Field(1).Type)
}

func TestWithTableName(t *testing.T) {
	tbl := newTable(t, evolve.NewSchema(
		evolve.NestedField{Name: "id", Type: evolve.PrimitiveTypes.Int32},
	))

	updates := []table.Update{table.NewAlterColumnTypeUpdate(path("id"), evolve.PrimitiveTypes.Bool)}

	var change *evolve.UnsupportedChangeError

	_, err := table.ApplyBatch(tbl, updates)
	require.ErrorAs(t, err, &change)
	assert.Equal(t, "db.events", change.Table)

	_, err = table.ApplyBatch(tbl, updates, table.WithTableName("prod.events"))
	require.ErrorAs(t, err, &change)
	assert.Equal(t, "prod.events", change.Table)
}

func TestReservedProperties(t *testing.T) {
	tbl := newTable(t, evolve.NewSchema(
		evolve.NestedField{Name: "id", Type: evolve.PrimitiveTypes.Int32},
	))

	assert.True(t, table.IsReservedProperty(table.PropertyProvider))
	assert.False(t, table.IsReservedProperty("owner"))

	_, err := table.ApplyBatch(tbl, []table.Update{
		table.NewSetPropertiesUpdate(evolve.Properties{table.PropertyProvider: "orc"}),
	})
	assert.ErrorIs(t, err, evolve.ErrReservedProperty)

	_, err = table.ApplyBatch(tbl, []table.Update{
		table.NewRemovePropertiesUpdate([]string{table.PropertyProvider}),
	})
	assert.ErrorIs(t, err, evolve.ErrReservedProperty)
	assert.Equal(t, "parquet", tbl.Provider())
}

func TestBuilder(t *testing.T) {
	tbl := newTable(t, evolve.NewSchema(
		evolve.NestedField{Name: "id", Type: evolve.PrimitiveTypes.Int32},
	))

	b := table.NewBuilder(tbl)
	_, err := b.AddColumns([]table.NewColumn{{Path: path("data"), Type: evolve.PrimitiveTypes.String}})
	require.NoError(t, err)

	_, err = b.RenameColumn(path("data"), "id")
	require.ErrorIs(t, err, evolve.ErrFieldAlreadyExists)
	assert.Equal(t, []string{"id", "data"}, b.Schema().FieldNames())

	_, err = b.SetProperties(evolve.Properties{"k": "v"})
	require.NoError(t, err)
	assert.Equal(t, "v", b.Properties()["k"])

	out := b.Build()
	assert.Equal(t, []string{"id", "data"}, out.Schema().FieldNames())
	assert.Equal(t, "v", out.Properties()["k"])
	assert.Equal(t, []string{"id"}, tbl.Schema().FieldNames())
	assert.Empty(t, b.Updates())
}
