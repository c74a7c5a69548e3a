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
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidArgument      = errors.New("invalid argument")
	ErrInvalidSchema        = errors.New("invalid schema")
	ErrInvalidTypeString    = errors.New("invalid type")
	ErrBadCast              = errors.New("could not cast value")
	ErrUnsupportedOperation = errors.New("unsupported operation")
	ErrReservedProperty     = errors.New("reserved table property")
	ErrInvalidDefault       = errors.New("invalid default value")

	ErrMissingField                = errors.New("missing field")
	ErrFieldAlreadyExists          = errors.New("field already exists")
	ErrColumnAlreadyExists         = errors.New("column already exists")
	ErrUnsupportedChange           = errors.New("unsupported column type change")
	ErrUnsupportedStructuredUpdate = errors.New("cannot update a structured type")
	ErrIllegalIntervalType         = errors.New("interval types are not allowed in a table schema")
	ErrNullabilityViolation        = errors.New("cannot change nullable column to non-nullable")
	ErrInvalidPosition             = errors.New("invalid column position")
)

// MissingFieldError is returned when a path cannot be resolved. Path holds
// the prefix that was resolved followed by the segment that failed.
type MissingFieldError struct {
	Path   FieldPath
	Reason string
}

func (e *MissingFieldError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("%s: %s (%s)", ErrMissingField, e.Path, e.Reason)
	}

	return fmt.Sprintf("%s: %s", ErrMissingField, e.Path)
}

func (e *MissingFieldError) Unwrap() error { return ErrMissingField }

// FieldAlreadyExistsError reports a name conflict while adding or renaming
// a field. Struct is the enclosing struct as it was when the conflict was
// detected.
type FieldAlreadyExistsError struct {
	Op     string
	Path   FieldPath
	Struct *StructType
}

func (e *FieldAlreadyExistsError) Error() string {
	return fmt.Sprintf("cannot %s %s: %s in %s",
		e.Op, e.Path, ErrFieldAlreadyExists, e.Struct)
}

func (e *FieldAlreadyExistsError) Unwrap() error { return ErrFieldAlreadyExists }

type ColumnAlreadyExistsError struct {
	Name string
}

func (e *ColumnAlreadyExistsError) Error() string {
	return fmt.Sprintf("%s: %s", ErrColumnAlreadyExists, e.Name)
}

func (e *ColumnAlreadyExistsError) Unwrap() error { return ErrColumnAlreadyExists }

type UnsupportedChangeError struct {
	From, To Type
	Field    FieldPath
	Table    string
}

func (e *UnsupportedChangeError) Error() string {
	return fmt.Sprintf("%s: %s -> %s for column %s of table %s", ErrUnsupportedChange,
		strings.ToUpper(e.From.String()), strings.ToUpper(e.To.String()), e.Field, e.Table)
}

func (e *UnsupportedChangeError) Unwrap() error { return ErrUnsupportedChange }

// UnsupportedStructuredUpdateError is returned when the type of a struct,
// list or map column is replaced as a whole. Kind is the type name of the
// current container ("struct", "array" or "map").
type UnsupportedStructuredUpdateError struct {
	Field FieldPath
	Kind  string
}

func (e *UnsupportedStructuredUpdateError) Error() string {
	var hint string
	switch e.Kind {
	case "array":
		hint = "update the element using " + e.Field.Child(ElementName).String()
	case "map":
		hint = "update the key or value using " + e.Field.Child(KeyName).String() +
			" or " + e.Field.Child(ValueName).String()
	default:
		hint = "update the individual fields of " + e.Field.String()
	}

	return fmt.Sprintf("%s: %s is a %s, %s", ErrUnsupportedStructuredUpdate, e.Field, e.Kind, hint)
}

func (e *UnsupportedStructuredUpdateError) Unwrap() error { return ErrUnsupportedStructuredUpdate }

type IllegalIntervalTypeError struct {
	Path FieldPath
}

func (e *IllegalIntervalTypeError) Error() string {
	return fmt.Sprintf("%s: %s", ErrIllegalIntervalType, e.Path)
}

func (e *IllegalIntervalTypeError) Unwrap() error { return ErrIllegalIntervalType }

type NullabilityViolationError struct {
	Field FieldPath
}

func (e *NullabilityViolationError) Error() string {
	return fmt.Sprintf("%s: %s", ErrNullabilityViolation, e.Field)
}

func (e *NullabilityViolationError) Unwrap() error { return ErrNullabilityViolation }

// InvalidPositionError is returned when a FIRST/AFTER clause references a
// sibling that does not exist. Known lists the field names of the target
// struct at the time of the lookup.
type InvalidPositionError struct {
	Field string
	Known []string
}

func (e *InvalidPositionError) Error() string {
	return fmt.Sprintf("%s: field not found: %s, available fields: [%s]",
		ErrInvalidPosition, e.Field, strings.Join(e.Known, ", "))
}

func (e *InvalidPositionError) Unwrap() error { return ErrInvalidPosition }
