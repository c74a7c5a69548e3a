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
	"fmt"
	"maps"

	"github.com/apache/evolve-go"
)

// Table is an immutable snapshot of a table's name, schema and
// properties as fetched from a catalog. Changes produce a new Table.
type Table struct {
	name       string
	schema     *evolve.Schema
	properties evolve.Properties
}

// New creates a table snapshot. The properties must carry the reserved
// provider key and the schema must not contain duplicate sibling names
// or interval types.
func New(name string, schema *evolve.Schema, props evolve.Properties) (*Table, error) {
	if schema == nil {
		return nil, fmt.Errorf("%w: table %s has no schema", evolve.ErrInvalidArgument, name)
	}

	if _, ok := props[PropertyProvider]; !ok {
		return nil, fmt.Errorf("%w: table %s is missing the %q property",
			evolve.ErrInvalidArgument, name, PropertyProvider)
	}

	if err := schema.Validate(evolve.CaseSensitive); err != nil {
		return nil, err
	}

	return &Table{name: name, schema: schema, properties: props.Clone()}, nil
}

func (t *Table) Name() string           { return t.name }
func (t *Table) Schema() *evolve.Schema { return t.schema }
func (t *Table) Provider() string       { return t.properties[PropertyProvider] }

// Properties returns a copy of the table properties.
func (t *Table) Properties() evolve.Properties { return t.properties.Clone() }

func (t *Table) Equals(other *Table) bool {
	if other == nil {
		return false
	}

	return t.name == other.name &&
		maps.Equal(t.properties, other.properties) &&
		t.schema.Equals(other.schema)
}

// NewTransaction starts a transaction on a copy of the table.
func (t *Table) NewTransaction(opts ...Option) *Transaction {
	return &Transaction{
		tbl:  t,
		meta: NewBuilder(t, opts...),
	}
}

func (t *Table) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Name       string            `json:"name"`
		Schema     *evolve.Schema    `json:"schema"`
		Properties evolve.Properties `json:"properties"`
	}{t.name, t.schema, t.properties})
}

func (t *Table) UnmarshalJSON(b []byte) error {
	aux := struct {
		Name       string            `json:"name"`
		Schema     *evolve.Schema    `json:"schema"`
		Properties evolve.Properties `json:"properties"`
	}{}

	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}

	tbl, err := New(aux.Name, aux.Schema, aux.Properties)
	if err != nil {
		return err
	}
	*t = *tbl

	return nil
}
