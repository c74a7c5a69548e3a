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

	"github.com/apache/evolve-go"
)

// These are the schema and property changes a batch may contain.
const (
	UpdateAddColumns       = "add-columns"
	UpdateAlterColumnType  = "alter-column-type"
	UpdateNullability      = "update-nullability"
	UpdateComment          = "update-comment"
	UpdateSetDefault       = "set-default"
	UpdateDropDefault      = "drop-default"
	UpdateRenameColumn     = "rename-column"
	UpdateDropColumns      = "drop-columns"
	UpdateReplaceColumns   = "replace-columns"
	UpdateMoveColumn       = "move-column"
	UpdateSetProperties    = "set-properties"
	UpdateRemoveProperties = "remove-properties"
)

// Update represents a single change to a table.
type Update interface {
	// Action returns the name of the action that the update represents.
	Action() string
	// Apply applies the update to the given builder.
	Apply(*Builder) error
}

type Updates []Update

func (u *Updates) UnmarshalJSON(data []byte) error {
	var rawUpdates []json.RawMessage
	if err := json.Unmarshal(data, &rawUpdates); err != nil {
		return err
	}

	for _, raw := range rawUpdates {
		var base baseUpdate
		if err := json.Unmarshal(raw, &base); err != nil {
			return err
		}

		var upd Update
		switch base.ActionName {
		case UpdateAddColumns:
			upd = &addColumnsUpdate{}
		case UpdateAlterColumnType:
			upd = &alterColumnTypeUpdate{}
		case UpdateNullability:
			upd = &nullabilityUpdate{}
		case UpdateComment:
			upd = &commentUpdate{}
		case UpdateSetDefault:
			upd = &setDefaultUpdate{}
		case UpdateDropDefault:
			upd = &dropDefaultUpdate{}
		case UpdateRenameColumn:
			upd = &renameColumnUpdate{}
		case UpdateDropColumns:
			upd = &dropColumnsUpdate{}
		case UpdateReplaceColumns:
			upd = &replaceColumnsUpdate{}
		case UpdateMoveColumn:
			upd = &moveColumnUpdate{}
		case UpdateSetProperties:
			upd = &setPropertiesUpdate{}
		case UpdateRemoveProperties:
			upd = &removePropertiesUpdate{}
		default:
			return fmt.Errorf("%w: unknown update action: %s", evolve.ErrInvalidArgument, base.ActionName)
		}

		if err := json.Unmarshal(raw, upd); err != nil {
			return err
		}
		*u = append(*u, upd)
	}

	return nil
}

// baseUpdate contains the common fields for all updates. It is used to identify the type
// of the update.
type baseUpdate struct {
	ActionName string `json:"action"`
}

func (u *baseUpdate) Action() string {
	return u.ActionName
}

type addColumnsUpdate struct {
	baseUpdate
	Columns []NewColumn `json:"columns"`
}

// NewAddColumnsUpdate creates an update that adds the given columns in order.
func NewAddColumnsUpdate(cols ...NewColumn) *addColumnsUpdate {
	return &addColumnsUpdate{
		baseUpdate: baseUpdate{ActionName: UpdateAddColumns},
		Columns:    cols,
	}
}

func (u *addColumnsUpdate) Apply(builder *Builder) error {
	_, err := builder.AddColumns(u.Columns)

	return err
}

type alterColumnTypeUpdate struct {
	baseUpdate
	Path evolve.FieldPath
	Type evolve.Type
}

// NewAlterColumnTypeUpdate creates an update that widens the type of the
// column at path.
func NewAlterColumnTypeUpdate(path evolve.FieldPath, typ evolve.Type) *alterColumnTypeUpdate {
	return &alterColumnTypeUpdate{
		baseUpdate: baseUpdate{ActionName: UpdateAlterColumnType},
		Path:       path,
		Type:       typ,
	}
}

func (u *alterColumnTypeUpdate) MarshalJSON() ([]byte, error) {
	typ, err := evolve.MarshalType(u.Type)
	if err != nil {
		return nil, err
	}

	return json.Marshal(struct {
		baseUpdate
		Path evolve.FieldPath `json:"path"`
		Type json.RawMessage  `json:"type"`
	}{u.baseUpdate, u.Path, typ})
}

func (u *alterColumnTypeUpdate) UnmarshalJSON(b []byte) error {
	aux := struct {
		baseUpdate
		Path evolve.FieldPath `json:"path"`
		Type json.RawMessage  `json:"type"`
	}{}

	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}

	typ, err := evolve.UnmarshalType(aux.Type)
	if err != nil {
		return fmt.Errorf("%s %s: %w", UpdateAlterColumnType, aux.Path, err)
	}

	u.baseUpdate, u.Path, u.Type = aux.baseUpdate, aux.Path, typ

	return nil
}

func (u *alterColumnTypeUpdate) Apply(builder *Builder) error {
	_, err := builder.AlterColumnType(u.Path, u.Type)

	return err
}

type nullabilityUpdate struct {
	baseUpdate
	Path    evolve.FieldPath `json:"path"`
	NotNull bool             `json:"not-null"`
}

// NewNullabilityUpdate creates an update that sets NOT NULL on the column
// at path when notNull is true and drops it otherwise.
func NewNullabilityUpdate(path evolve.FieldPath, notNull bool) *nullabilityUpdate {
	return &nullabilityUpdate{
		baseUpdate: baseUpdate{ActionName: UpdateNullability},
		Path:       path,
		NotNull:    notNull,
	}
}

func (u *nullabilityUpdate) Apply(builder *Builder) error {
	_, err := builder.SetOrDropNotNull(u.Path, u.NotNull)

	return err
}

type commentUpdate struct {
	baseUpdate
	Path    evolve.FieldPath `json:"path"`
	Comment string           `json:"comment"`
}

// NewCommentUpdate creates an update that replaces the comment of the
// column at path.
func NewCommentUpdate(path evolve.FieldPath, comment string) *commentUpdate {
	return &commentUpdate{
		baseUpdate: baseUpdate{ActionName: UpdateComment},
		Path:       path,
		Comment:    comment,
	}
}

func (u *commentUpdate) Apply(builder *Builder) error {
	_, err := builder.UpdateComment(u.Path, u.Comment)

	return err
}

type setDefaultUpdate struct {
	baseUpdate
	Path    evolve.FieldPath `json:"path"`
	Default string           `json:"default"`
}

// NewSetDefaultUpdate creates an update that sets the default value
// expression of the column at path.
func NewSetDefaultUpdate(path evolve.FieldPath, expr string) *setDefaultUpdate {
	return &setDefaultUpdate{
		baseUpdate: baseUpdate{ActionName: UpdateSetDefault},
		Path:       path,
		Default:    expr,
	}
}

func (u *setDefaultUpdate) Apply(builder *Builder) error {
	_, err := builder.SetDefault(u.Path, u.Default)

	return err
}

type dropDefaultUpdate struct {
	baseUpdate
	Path evolve.FieldPath `json:"path"`
}

// NewDropDefaultUpdate creates an update that removes the default value of
// the column at path.
func NewDropDefaultUpdate(path evolve.FieldPath) *dropDefaultUpdate {
	return &dropDefaultUpdate{
		baseUpdate: baseUpdate{ActionName: UpdateDropDefault},
		Path:       path,
	}
}

func (u *dropDefaultUpdate) Apply(builder *Builder) error {
	_, err := builder.DropDefault(u.Path)

	return err
}

type renameColumnUpdate struct {
	baseUpdate
	Path    evolve.FieldPath `json:"path"`
	NewName string           `json:"new-name"`
}

// NewRenameColumnUpdate creates an update that renames the column at path.
func NewRenameColumnUpdate(path evolve.FieldPath, newName string) *renameColumnUpdate {
	return &renameColumnUpdate{
		baseUpdate: baseUpdate{ActionName: UpdateRenameColumn},
		Path:       path,
		NewName:    newName,
	}
}

func (u *renameColumnUpdate) Apply(builder *Builder) error {
	_, err := builder.RenameColumn(u.Path, u.NewName)

	return err
}

type dropColumnsUpdate struct {
	baseUpdate
	Paths    []evolve.FieldPath `json:"paths"`
	IfExists bool               `json:"if-exists,omitempty"`
}

// NewDropColumnsUpdate creates an update that drops the columns at paths.
// With ifExists set, paths that do not resolve are skipped.
func NewDropColumnsUpdate(ifExists bool, paths ...evolve.FieldPath) *dropColumnsUpdate {
	return &dropColumnsUpdate{
		baseUpdate: baseUpdate{ActionName: UpdateDropColumns},
		Paths:      paths,
		IfExists:   ifExists,
	}
}

func (u *dropColumnsUpdate) Apply(builder *Builder) error {
	_, err := builder.DropColumns(u.Paths, u.IfExists)

	return err
}

type replaceColumnsUpdate struct {
	baseUpdate
	Columns []evolve.NestedField `json:"columns"`
}

// NewReplaceColumnsUpdate creates an update that replaces the entire top
// level column list.
func NewReplaceColumnsUpdate(cols ...evolve.NestedField) *replaceColumnsUpdate {
	return &replaceColumnsUpdate{
		baseUpdate: baseUpdate{ActionName: UpdateReplaceColumns},
		Columns:    cols,
	}
}

func (u *replaceColumnsUpdate) Apply(builder *Builder) error {
	_, err := builder.ReplaceColumns(u.Columns)

	return err
}

type moveColumnUpdate struct {
	baseUpdate
	Path     evolve.FieldPath `json:"path"`
	Position *ColumnPosition  `json:"position"`
}

// NewMoveColumnUpdate creates an update that moves the column at path to
// pos within its struct.
func NewMoveColumnUpdate(path evolve.FieldPath, pos *ColumnPosition) *moveColumnUpdate {
	return &moveColumnUpdate{
		baseUpdate: baseUpdate{ActionName: UpdateMoveColumn},
		Path:       path,
		Position:   pos,
	}
}

func (u *moveColumnUpdate) Apply(builder *Builder) error {
	_, err := builder.MoveColumn(u.Path, u.Position)

	return err
}

type setPropertiesUpdate struct {
	baseUpdate
	Updates evolve.Properties `json:"updates"`
}

// NewSetPropertiesUpdate creates a new update that sets the given properties in the
// table.
func NewSetPropertiesUpdate(updates evolve.Properties) *setPropertiesUpdate {
	return &setPropertiesUpdate{
		baseUpdate: baseUpdate{ActionName: UpdateSetProperties},
		Updates:    updates,
	}
}

func (u *setPropertiesUpdate) Apply(builder *Builder) error {
	_, err := builder.SetProperties(u.Updates)

	return err
}

type removePropertiesUpdate struct {
	baseUpdate
	Removals []string `json:"removals"`
}

// NewRemovePropertiesUpdate creates a new update that removes properties from the table.
// Keys that are not set are ignored.
func NewRemovePropertiesUpdate(removals []string) *removePropertiesUpdate {
	return &removePropertiesUpdate{
		baseUpdate: baseUpdate{ActionName: UpdateRemoveProperties},
		Removals:   removals,
	}
}

func (u *removePropertiesUpdate) Apply(builder *Builder) error {
	_, err := builder.RemoveProperties(u.Removals)

	return err
}
