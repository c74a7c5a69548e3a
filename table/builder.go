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
	"maps"
	"slices"

	"github.com/apache/evolve-go"
)

type options struct {
	caseSensitive bool
	tableName     string
	evaluator     Evaluator
	hook          func(Update, *evolve.Schema)
}

func newOptions(opts []Option) options {
	o := options{evaluator: LiteralEvaluator{}}
	for _, apply := range opts {
		apply(&o)
	}

	return o
}

// Option configures how changes are planned. By default names are
// matched case-insensitively and defaults are folded with
// [LiteralEvaluator].
type Option func(*options)

func WithCaseSensitive(caseSensitive bool) Option {
	return func(o *options) { o.caseSensitive = caseSensitive }
}

// WithTableName overrides the table name reported in errors.
func WithTableName(name string) Option {
	return func(o *options) { o.tableName = name }
}

func WithEvaluator(e Evaluator) Option {
	return func(o *options) {
		if e != nil {
			o.evaluator = e
		}
	}
}

// WithUpdateHook registers fn to be called with every update applied by
// [ApplyBatch] or a [Transaction] and the schema it produced.
func WithUpdateHook(fn func(Update, *evolve.Schema)) Option {
	return func(o *options) { o.hook = fn }
}

// Builder accumulates changes to a table. Every method either applies
// its change fully or returns an error and leaves the builder as it was.
type Builder struct {
	base    *Table
	schema  *evolve.Schema
	props   evolve.Properties
	planner Planner
	hook    func(Update, *evolve.Schema)

	updates []Update
}

func NewBuilder(tbl *Table, opts ...Option) *Builder {
	o := newOptions(opts)

	return &Builder{
		base:    tbl,
		schema:  tbl.schema,
		props:   tbl.properties.Clone(),
		planner: NewPlanner(tbl.name, opts...),
		hook:    o.hook,
	}
}

func (b *Builder) clone() *Builder {
	out := *b
	out.props = b.props.Clone()
	out.updates = slices.Clone(b.updates)

	return &out
}

func (b *Builder) Schema() *evolve.Schema        { return b.schema }
func (b *Builder) Properties() evolve.Properties { return b.props.Clone() }

// Updates returns the updates applied so far.
func (b *Builder) Updates() []Update { return slices.Clone(b.updates) }

func (b *Builder) setSchema(s *evolve.Schema, err error) (*Builder, error) {
	if err != nil {
		return nil, err
	}
	b.schema = s

	return b, nil
}

func (b *Builder) AddColumns(cols []NewColumn) (*Builder, error) {
	return b.setSchema(b.planner.AddColumns(b.schema, cols))
}

func (b *Builder) AlterColumnType(path evolve.FieldPath, typ evolve.Type) (*Builder, error) {
	return b.setSchema(b.planner.AlterColumnType(b.schema, path, typ))
}

func (b *Builder) SetOrDropNotNull(path evolve.FieldPath, notNull bool) (*Builder, error) {
	return b.setSchema(b.planner.SetOrDropNotNull(b.schema, path, notNull))
}

func (b *Builder) UpdateComment(path evolve.FieldPath, doc string) (*Builder, error) {
	return b.setSchema(b.planner.UpdateComment(b.schema, path, doc))
}

func (b *Builder) SetDefault(path evolve.FieldPath, expr string) (*Builder, error) {
	return b.setSchema(b.planner.SetDefault(b.schema, path, expr))
}

func (b *Builder) DropDefault(path evolve.FieldPath) (*Builder, error) {
	return b.setSchema(b.planner.DropDefault(b.schema, path))
}

func (b *Builder) RenameColumn(path evolve.FieldPath, newName string) (*Builder, error) {
	return b.setSchema(b.planner.RenameColumn(b.schema, path, newName))
}

func (b *Builder) DropColumns(paths []evolve.FieldPath, ifExists bool) (*Builder, error) {
	return b.setSchema(b.planner.DropColumns(b.schema, paths, ifExists))
}

func (b *Builder) ReplaceColumns(fields []evolve.NestedField) (*Builder, error) {
	return b.setSchema(b.planner.ReplaceColumns(b.schema, fields))
}

func (b *Builder) MoveColumn(path evolve.FieldPath, pos *ColumnPosition) (*Builder, error) {
	return b.setSchema(b.planner.MoveColumn(b.schema, path, pos))
}

// SetProperties sets or overwrites the given properties. The reserved
// provider property cannot be changed.
func (b *Builder) SetProperties(props evolve.Properties) (*Builder, error) {
	if err := checkReserved("set", slices.Collect(maps.Keys(props))...); err != nil {
		return nil, err
	}

	maps.Copy(b.props, props)

	return b, nil
}

// RemoveProperties removes the given keys. Keys that are not set are
// ignored.
func (b *Builder) RemoveProperties(keys []string) (*Builder, error) {
	if err := checkReserved("unset", keys...); err != nil {
		return nil, err
	}

	for _, k := range keys {
		delete(b.props, k)
	}

	return b, nil
}

// checkBase rejects a base table whose sibling names collide under the
// builder's name matcher, since paths into it would be ambiguous.
func (b *Builder) checkBase() error {
	return b.base.schema.Validate(b.planner.match)
}

// apply runs u against a copy of the builder and adopts the copy only if
// u succeeds.
func (b *Builder) apply(u Update) error {
	next := b.clone()
	if err := u.Apply(next); err != nil {
		return err
	}

	next.updates = append(next.updates, u)
	*b = *next

	if b.hook != nil {
		b.hook(u, b.schema)
	}

	return nil
}

// Build returns the resulting table. The base table is returned as is
// when nothing changed.
func (b *Builder) Build() *Table {
	if b.schema == b.base.schema && maps.Equal(b.props, b.base.properties) {
		return b.base
	}

	return &Table{name: b.base.name, schema: b.schema, properties: b.props.Clone()}
}

// ApplyBatch applies updates in order and returns the resulting table.
// The batch is all or nothing: if any update fails its error is
// returned and tbl, which is never modified, remains the current state.
func ApplyBatch(tbl *Table, updates []Update, opts ...Option) (*Table, error) {
	b := NewBuilder(tbl, opts...)
	if err := b.checkBase(); err != nil {
		return nil, err
	}

	for _, u := range updates {
		if err := b.apply(u); err != nil {
			return nil, err
		}
	}

	return b.Build(), nil
}
