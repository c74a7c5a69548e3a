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
)

const (
	reqAssertSchemaFingerprint = "assert-schema-fingerprint"
	reqAssertProperty          = "assert-property"
)

var (
	ErrInvalidRequirement = errors.New("invalid requirement")
	ErrRequirementFailed  = errors.New("requirement failed")
)

// A Requirement is a validation rule that must be satisfied before attempting to
// make changes to a table. Requirements guard against applying a batch that was
// planned against a different version of the table.
type Requirement interface {
	// Validate checks that the current table satisfies the requirement.
	Validate(*Table) error
	GetType() string
}

type Requirements []Requirement

func (r *Requirements) UnmarshalJSON(data []byte) error {
	var rawRequirements []json.RawMessage
	if err := json.Unmarshal(data, &rawRequirements); err != nil {
		return err
	}

	for _, raw := range rawRequirements {
		var base baseRequirement
		if err := json.Unmarshal(raw, &base); err != nil {
			return err
		}

		var req Requirement
		switch base.Type {
		case reqAssertSchemaFingerprint:
			req = &assertSchemaFingerprint{}
		case reqAssertProperty:
			req = &assertProperty{}
		default:
			return fmt.Errorf("%w: unknown requirement type: %s", ErrInvalidRequirement, base.Type)
		}

		if err := json.Unmarshal(raw, req); err != nil {
			return err
		}
		*r = append(*r, req)
	}

	return nil
}

// baseRequirement is a common struct that all requirements embed. It is used to
// identify the type of the requirement.
type baseRequirement struct {
	Type string `json:"type"`
}

func (b baseRequirement) GetType() string {
	return b.Type
}

type assertSchemaFingerprint struct {
	baseRequirement
	Fingerprint uint64 `json:"fingerprint"`
}

// AssertSchemaFingerprint creates a requirement that the table schema has
// the given fingerprint, see [evolve.Schema.Fingerprint].
func AssertSchemaFingerprint(fp uint64) Requirement {
	return &assertSchemaFingerprint{
		baseRequirement: baseRequirement{Type: reqAssertSchemaFingerprint},
		Fingerprint:     fp,
	}
}

func (a *assertSchemaFingerprint) Validate(tbl *Table) error {
	if tbl == nil {
		return fmt.Errorf("%w: table does not exist", ErrRequirementFailed)
	}

	if got := tbl.Schema().Fingerprint(); got != a.Fingerprint {
		return fmt.Errorf("%w: schema of %s has changed: expected fingerprint %x, found %x",
			ErrRequirementFailed, tbl.Name(), a.Fingerprint, got)
	}

	return nil
}

type assertProperty struct {
	baseRequirement
	Key   string  `json:"key"`
	Value *string `json:"value"`
}

// AssertProperty creates a requirement that the property key has the
// given value. If value is nil, the property must not be set.
func AssertProperty(key string, value *string) Requirement {
	return &assertProperty{
		baseRequirement: baseRequirement{Type: reqAssertProperty},
		Key:             key,
		Value:           value,
	}
}

func (a *assertProperty) Validate(tbl *Table) error {
	if tbl == nil {
		return fmt.Errorf("%w: table does not exist", ErrRequirementFailed)
	}

	got, ok := tbl.properties[a.Key]
	switch {
	case a.Value == nil && ok:
		return fmt.Errorf("%w: property %s was set concurrently to %q", ErrRequirementFailed, a.Key, got)
	case a.Value != nil && !ok:
		return fmt.Errorf("%w: property %s is missing, expected %q", ErrRequirementFailed, a.Key, *a.Value)
	case a.Value != nil && got != *a.Value:
		return fmt.Errorf("%w: property %s has changed: expected %q, found %q",
			ErrRequirementFailed, a.Key, *a.Value, got)
	}

	return nil
}
