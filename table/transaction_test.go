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

func TestTransaction(t *testing.T) {
	tbl := newTable(t, evolve.NewSchema(
		evolve.NestedField{Name: "id", Type: evolve.PrimitiveTypes.Int32},
	))
	fp := tbl.Schema().Fingerprint()

	txn := tbl.NewTransaction()
	require.NoError(t, txn.Apply([]table.Update{
		table.NewAddColumnsUpdate(table.NewColumn{Path: path("data"), Type: evolve.PrimitiveTypes.String}),
	}, table.AssertSchemaFingerprint(fp)))

	err := txn.Apply([]table.Update{
		table.NewAddColumnsUpdate(table.NewColumn{Path: path("more"), Type: evolve.PrimitiveTypes.String}),
		table.NewRenameColumnUpdate(path("more"), "data"),
	})
	require.ErrorIs(t, err, evolve.ErrFieldAlreadyExists)

	require.NoError(t, txn.SetProperties(evolve.Properties{"comment": "events"}))
	require.NoError(t, txn.RemoveProperties("owner"))
	require.NoError(t, txn.SetProperties(nil))

	staged := txn.StagedTable()
	assert.Equal(t, []string{"id", "data"}, staged.Schema().FieldNames())
	assert.Len(t, txn.Updates(), 3)
	assert.Len(t, txn.Requirements(), 1)
	assert.Equal(t, []string{"id"}, tbl.Schema().FieldNames())

	out, err := txn.Commit(nil)
	require.NoError(t, err)
	assert.True(t, staged.Equals(out))
	assert.Equal(t, evolve.Properties{table.PropertyProvider: "parquet", "comment": "events"}, out.Properties())

	_, err = txn.Commit(nil)
	assert.ErrorIs(t, err, table.ErrTransactionCommitted)
	assert.ErrorIs(t, txn.Apply(nil), table.ErrTransactionCommitted)
}

func TestTransactionRequirementFailure(t *testing.T) {
	tbl := newTable(t, evolve.NewSchema(
		evolve.NestedField{Name: "id", Type: evolve.PrimitiveTypes.Int32},
	))

	txn := tbl.NewTransaction()
	err := txn.Apply([]table.Update{
		table.NewDropColumnsUpdate(false, path("id")),
	}, table.AssertProperty("owner", evolve.Ptr("finance")))
	require.ErrorIs(t, err, table.ErrRequirementFailed)
	assert.Empty(t, txn.Updates())
	assert.Same(t, tbl, txn.StagedTable())
}

func TestTransactionCommitDetectsConcurrentChange(t *testing.T) {
	tbl := newTable(t, evolve.NewSchema(
		evolve.NestedField{Name: "id", Type: evolve.PrimitiveTypes.Int32},
	))

	txn := tbl.NewTransaction()
	require.NoError(t, txn.Apply([]table.Update{
		table.NewAddColumnsUpdate(table.NewColumn{Path: path("data"), Type: evolve.PrimitiveTypes.String}),
	}, table.AssertSchemaFingerprint(tbl.Schema().Fingerprint())))

	concurrent, err := table.ApplyBatch(tbl, []table.Update{
		table.NewAddColumnsUpdate(table.NewColumn{Path: path("other"), Type: evolve.PrimitiveTypes.Int64}),
	})
	require.NoError(t, err)

	_, err = txn.Commit(concurrent)
	require.ErrorIs(t, err, table.ErrRequirementFailed)

	out, err := txn.Commit(tbl)
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "data"}, out.Schema().FieldNames())
}

func TestTransactionUpdateHook(t *testing.T) {
	tbl := newTable(t, evolve.NewSchema(
		evolve.NestedField{Name: "id", Type: evolve.PrimitiveTypes.Int32},
	))

	var seen []int
	txn := tbl.NewTransaction(table.WithUpdateHook(func(_ table.Update, s *evolve.Schema) {
		seen = append(seen, s.NumFields())
	}))

	require.NoError(t, txn.Apply([]table.Update{
		table.NewAddColumnsUpdate(table.NewColumn{Path: path("a"), Type: evolve.PrimitiveTypes.Int32}),
		table.NewAddColumnsUpdate(table.NewColumn{Path: path("b"), Type: evolve.PrimitiveTypes.Int32}),
	}))
	assert.Equal(t, []int{2, 3}, seen)
}
