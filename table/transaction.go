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
	"errors"
	"sync"

	"github.com/apache/evolve-go"
)

var ErrTransactionCommitted = errors.New("transaction has already been committed")

// Transaction stages changes to a table. Each call to Apply is all or
// nothing; the staged result becomes visible through Commit.
type Transaction struct {
	tbl  *Table
	meta *Builder

	reqs []Requirement

	mx        sync.Mutex
	committed bool
}

// Apply validates reqs against the table the transaction was started
// from and then applies updates on top of the changes staged so far.
func (t *Transaction) Apply(updates []Update, reqs ...Requirement) error {
	t.mx.Lock()
	defer t.mx.Unlock()

	if t.committed {
		return ErrTransactionCommitted
	}

	if err := t.meta.checkBase(); err != nil {
		return err
	}

	for _, r := range reqs {
		if err := r.Validate(t.tbl); err != nil {
			return err
		}
	}

	next := t.meta.clone()
	for _, u := range updates {
		if err := next.apply(u); err != nil {
			return err
		}
	}

	existing := map[string]struct{}{}
	for _, r := range t.reqs {
		existing[r.GetType()] = struct{}{}
	}

	for _, r := range reqs {
		if _, ok := existing[r.GetType()]; !ok {
			t.reqs = append(t.reqs, r)
		}
	}
	t.meta = next

	return nil
}

func (t *Transaction) SetProperties(props evolve.Properties) error {
	if len(props) > 0 {
		return t.Apply([]Update{NewSetPropertiesUpdate(props)})
	}

	return nil
}

func (t *Transaction) RemoveProperties(keys ...string) error {
	if len(keys) > 0 {
		return t.Apply([]Update{NewRemovePropertiesUpdate(keys)})
	}

	return nil
}

// StagedTable returns the table as it would be after commit.
func (t *Transaction) StagedTable() *Table {
	t.mx.Lock()
	defer t.mx.Unlock()

	return t.meta.Build()
}

// Requirements returns the requirements collected by Apply.
func (t *Transaction) Requirements() []Requirement {
	t.mx.Lock()
	defer t.mx.Unlock()

	return append([]Requirement(nil), t.reqs...)
}

// Updates returns the updates staged so far.
func (t *Transaction) Updates() []Update {
	t.mx.Lock()
	defer t.mx.Unlock()

	return t.meta.Updates()
}

// Commit validates the collected requirements against current, the table
// as it is now known to the caller, and returns the staged table. A nil
// current stands for the table the transaction was started from. A
// transaction can be committed once.
func (t *Transaction) Commit(current *Table) (*Table, error) {
	t.mx.Lock()
	defer t.mx.Unlock()

	if t.committed {
		return nil, ErrTransactionCommitted
	}

	if current == nil {
		current = t.tbl
	}

	for _, r := range t.reqs {
		if err := r.Validate(current); err != nil {
			return nil, err
		}
	}
	t.committed = true

	return t.meta.Build(), nil
}
