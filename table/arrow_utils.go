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
	"fmt"
	"slices"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/extensions"
	"github.com/apache/evolve-go"
	"github.com/apache/evolve-go/internal"
)

// constants to look for as Keys in Arrow field metadata
const (
	ArrowFieldDocKey              = "doc"
	ArrowFieldCurrentDefaultKey   = "current-default"
	ArrowFieldExistenceDefaultKey = "existence-default"
)

// ArrowSchemaVisitor is an interface that can be implemented and used to
// call VisitArrowSchema for iterating
type ArrowSchemaVisitor[T any] interface {
	Schema(*arrow.Schema, T) T
	Struct(*arrow.StructType, []T) T
	Field(arrow.Field, T) T
	List(arrow.ListLikeType, T) T
	Map(mt *arrow.MapType, keyResult T, valueResult T) T
	Primitive(arrow.DataType) T
}

func VisitArrowSchema[T any](sc *arrow.Schema, visitor ArrowSchemaVisitor[T]) (res T, err error) {
	if sc == nil {
		err = fmt.Errorf("%w: cannot visit nil arrow schema", evolve.ErrInvalidArgument)

		return
	}

	defer internal.RecoverError(&err)

	return visitor.Schema(sc, visitArrowStruct(arrow.StructOf(sc.Fields()...), visitor)), err
}

func visitArrowField[T any](f arrow.Field, visitor ArrowSchemaVisitor[T]) T {
	switch typ := f.Type.(type) {
	case *arrow.StructType:
		return visitArrowStruct(typ, visitor)
	case *arrow.MapType:
		return visitArrowMap(typ, visitor)
	case arrow.ListLikeType:
		return visitArrowList(typ, visitor)
	default:
		return visitor.Primitive(typ)
	}
}

func visitArrowStruct[T any](dt *arrow.StructType, visitor ArrowSchemaVisitor[T]) T {
	results := make([]T, dt.NumFields())
	for i, f := range dt.Fields() {
		results[i] = visitor.Field(f, visitArrowField(f, visitor))
	}

	return visitor.Struct(dt, results)
}

func visitArrowMap[T any](dt *arrow.MapType, visitor ArrowSchemaVisitor[T]) T {
	keyResult := visitArrowField(dt.KeyField(), visitor)
	valueResult := visitArrowField(dt.ItemField(), visitor)

	return visitor.Map(dt, keyResult, valueResult)
}

func visitArrowList[T any](dt arrow.ListLikeType, visitor ArrowSchemaVisitor[T]) T {
	return visitor.List(dt, visitArrowField(dt.ElemField(), visitor))
}

type convertToEvolve struct{}

func (convertToEvolve) Schema(_ *arrow.Schema, result evolve.NestedField) evolve.NestedField {
	return result
}

func (convertToEvolve) Struct(_ *arrow.StructType, results []evolve.NestedField) evolve.NestedField {
	return evolve.NestedField{
		Type: &evolve.StructType{FieldList: results},
	}
}

func (convertToEvolve) Field(field arrow.Field, result evolve.NestedField) evolve.NestedField {
	if field.HasMetadata() {
		if doc, ok := field.Metadata.GetValue(ArrowFieldDocKey); ok {
			result.Doc = doc
		}
		if v, ok := field.Metadata.GetValue(ArrowFieldCurrentDefaultKey); ok {
			result.CurrentDefault = &v
		}
		if v, ok := field.Metadata.GetValue(ArrowFieldExistenceDefaultKey); ok {
			result.ExistenceDefault = &v
		}
	}

	result.Required = !field.Nullable
	result.Name = field.Name

	return result
}

func (convertToEvolve) List(dt arrow.ListLikeType, elemResult evolve.NestedField) evolve.NestedField {
	return evolve.NestedField{
		Type: &evolve.ListType{
			Element:         elemResult.Type,
			ElementRequired: !dt.ElemField().Nullable,
		},
	}
}

func (convertToEvolve) Map(m *arrow.MapType, keyResult, valueResult evolve.NestedField) evolve.NestedField {
	return evolve.NestedField{
		Type: &evolve.MapType{
			KeyType:       keyResult.Type,
			ValueType:     valueResult.Type,
			ValueRequired: !m.ItemField().Nullable,
		},
	}
}

var utcAliases = []string{"UTC", "+00:00", "Etc/UTC", "Z"}

func unsupportedArrowType(dt arrow.DataType) error {
	return fmt.Errorf("%w: unsupported arrow type for conversion - %s", evolve.ErrInvalidSchema, dt)
}

func (c convertToEvolve) Primitive(dt arrow.DataType) (result evolve.NestedField) {
	switch dt := dt.(type) {
	case *arrow.DictionaryType:
		if _, ok := dt.ValueType.(arrow.NestedType); ok {
			panic(unsupportedArrowType(dt))
		}

		return c.Primitive(dt.ValueType)
	case *arrow.RunEndEncodedType:
		if _, ok := dt.Encoded().(arrow.NestedType); ok {
			panic(unsupportedArrowType(dt))
		}

		return c.Primitive(dt.Encoded())
	case *arrow.NullType:
		result.Type = evolve.PrimitiveTypes.Unknown
	case *arrow.BooleanType:
		result.Type = evolve.PrimitiveTypes.Bool
	case *arrow.Int8Type:
		result.Type = evolve.PrimitiveTypes.Int8
	case *arrow.Uint8Type, *arrow.Int16Type:
		result.Type = evolve.PrimitiveTypes.Int16
	case *arrow.Uint16Type, *arrow.Int32Type:
		result.Type = evolve.PrimitiveTypes.Int32
	case *arrow.Uint32Type, *arrow.Int64Type:
		result.Type = evolve.PrimitiveTypes.Int64
	case *arrow.Uint64Type:
		result.Type = evolve.DecimalTypeOf(20, 0)
	case *arrow.Float16Type, *arrow.Float32Type:
		result.Type = evolve.PrimitiveTypes.Float32
	case *arrow.Float64Type:
		result.Type = evolve.PrimitiveTypes.Float64
	case *arrow.Decimal32Type, *arrow.Decimal64Type, *arrow.Decimal128Type:
		dec := dt.(arrow.DecimalType)
		result.Type = evolve.DecimalTypeOf(int(dec.GetPrecision()), int(dec.GetScale()))
	case *arrow.StringType, *arrow.LargeStringType, *arrow.StringViewType:
		result.Type = evolve.PrimitiveTypes.String
	case *arrow.BinaryType, *arrow.LargeBinaryType, *arrow.BinaryViewType:
		result.Type = evolve.PrimitiveTypes.Binary
	case *arrow.Date32Type, *arrow.Date64Type:
		result.Type = evolve.PrimitiveTypes.Date
	case *arrow.Time64Type:
		if dt.Unit != arrow.Microsecond {
			panic(unsupportedArrowType(dt))
		}
		result.Type = evolve.PrimitiveTypes.Time
	case *arrow.TimestampType:
		utc := slices.Contains(utcAliases, dt.TimeZone)
		if !utc && dt.TimeZone != "" {
			panic(unsupportedArrowType(dt))
		}

		switch {
		case dt.Unit == arrow.Nanosecond && utc:
			result.Type = evolve.PrimitiveTypes.TimestampTzNs
		case dt.Unit == arrow.Nanosecond:
			result.Type = evolve.PrimitiveTypes.TimestampNs
		case utc:
			result.Type = evolve.PrimitiveTypes.TimestampTz
		default:
			result.Type = evolve.PrimitiveTypes.Timestamp
		}
	case *arrow.MonthIntervalType:
		result.Type = evolve.PrimitiveTypes.YearMonthInterval
	case *arrow.DurationType:
		result.Type = evolve.PrimitiveTypes.DayTimeInterval
	case *arrow.FixedSizeBinaryType:
		result.Type = evolve.FixedTypeOf(dt.ByteWidth)
	case arrow.ExtensionType:
		if dt.ExtensionName() != "arrow.uuid" {
			panic(unsupportedArrowType(dt))
		}
		result.Type = evolve.PrimitiveTypes.UUID
	default:
		panic(unsupportedArrowType(dt))
	}

	return
}

// ArrowSchemaToSchema converts an Arrow schema to a schema. Unsigned
// integers are widened to the next signed type that can hold every value
// and timestamps coarser than microseconds are read as microseconds.
func ArrowSchemaToSchema(sc *arrow.Schema) (*evolve.Schema, error) {
	top, err := VisitArrowSchema(sc, convertToEvolve{})
	if err != nil {
		return nil, err
	}

	out := evolve.NewSchema(top.Type.(*evolve.StructType).FieldList...)
	if err := out.Validate(evolve.MatcherFor(true)); err != nil {
		return nil, err
	}

	return out, nil
}

// ArrowTypeToType converts a single Arrow data type.
func ArrowTypeToType(dt arrow.DataType) (evolve.Type, error) {
	sc, err := ArrowSchemaToSchema(arrow.NewSchema([]arrow.Field{{
		Name: "field", Type: dt, Nullable: true,
	}}, nil))
	if err != nil {
		return nil, err
	}

	return sc.Field(0).Type, nil
}

type convertToArrow struct {
	metadata      map[string]string
	useLargeTypes bool
}

func (c convertToArrow) Schema(_ *evolve.Schema, result arrow.Field) arrow.Field {
	result.Metadata = arrow.MetadataFrom(c.metadata)

	return result
}

func (c convertToArrow) Struct(_ *evolve.StructType, results []arrow.Field) arrow.Field {
	return arrow.Field{Type: arrow.StructOf(results...)}
}

func (c convertToArrow) Field(field evolve.NestedField, result arrow.Field) arrow.Field {
	meta := map[string]string{}
	if len(field.Doc) > 0 {
		meta[ArrowFieldDocKey] = field.Doc
	}
	if field.CurrentDefault != nil {
		meta[ArrowFieldCurrentDefaultKey] = *field.CurrentDefault
	}
	if field.ExistenceDefault != nil {
		meta[ArrowFieldExistenceDefaultKey] = *field.ExistenceDefault
	}

	if len(meta) > 0 {
		result.Metadata = arrow.MetadataFrom(meta)
	}

	result.Name, result.Nullable = field.Name, !field.Required

	return result
}

func (c convertToArrow) List(list *evolve.ListType, elemResult arrow.Field) arrow.Field {
	elemField := c.Field(list.ElementField(), elemResult)
	if c.useLargeTypes {
		return arrow.Field{Type: arrow.LargeListOfField(elemField)}
	}

	return arrow.Field{Type: arrow.ListOfField(elemField)}
}

func (c convertToArrow) Map(m *evolve.MapType, keyResult, valResult arrow.Field) arrow.Field {
	keyField := c.Field(m.KeyField(), keyResult)
	valField := c.Field(m.ValueField(), valResult)

	mt := arrow.MapOfWithMetadata(keyField.Type, keyField.Metadata,
		valField.Type, valField.Metadata)
	mt.SetItemNullable(valField.Nullable)

	return arrow.Field{Type: mt}
}

func (c convertToArrow) Primitive(p evolve.PrimitiveType) arrow.Field {
	var dt arrow.DataType
	switch p := p.(type) {
	case evolve.FixedType:
		dt = &arrow.FixedSizeBinaryType{ByteWidth: p.Len()}
	case evolve.DecimalType:
		dt = &arrow.Decimal128Type{Precision: int32(p.Precision()), Scale: int32(p.Scale())}
	case evolve.BooleanType:
		dt = arrow.FixedWidthTypes.Boolean
	case evolve.Int8Type:
		dt = arrow.PrimitiveTypes.Int8
	case evolve.Int16Type:
		dt = arrow.PrimitiveTypes.Int16
	case evolve.Int32Type:
		dt = arrow.PrimitiveTypes.Int32
	case evolve.Int64Type:
		dt = arrow.PrimitiveTypes.Int64
	case evolve.Float32Type:
		dt = arrow.PrimitiveTypes.Float32
	case evolve.Float64Type:
		dt = arrow.PrimitiveTypes.Float64
	case evolve.DateType:
		dt = arrow.FixedWidthTypes.Date32
	case evolve.TimeType:
		dt = arrow.FixedWidthTypes.Time64us
	case evolve.TimestampType:
		dt = &arrow.TimestampType{Unit: arrow.Microsecond}
	case evolve.TimestampTzType:
		dt = arrow.FixedWidthTypes.Timestamp_us
	case evolve.TimestampNsType:
		dt = &arrow.TimestampType{Unit: arrow.Nanosecond}
	case evolve.TimestampTzNsType:
		dt = arrow.FixedWidthTypes.Timestamp_ns
	case evolve.StringType:
		dt = arrow.BinaryTypes.String
		if c.useLargeTypes {
			dt = arrow.BinaryTypes.LargeString
		}
	case evolve.BinaryType:
		dt = arrow.BinaryTypes.Binary
		if c.useLargeTypes {
			dt = arrow.BinaryTypes.LargeBinary
		}
	case evolve.UUIDType:
		dt = extensions.NewUUIDType()
	case evolve.UnknownType:
		dt = arrow.Null
	case evolve.YearMonthIntervalType:
		dt = arrow.FixedWidthTypes.MonthInterval
	case evolve.DayTimeIntervalType:
		dt = arrow.FixedWidthTypes.Duration_us
	default:
		panic(fmt.Errorf("%w: no arrow type for %s", evolve.ErrInvalidSchema, p))
	}

	return arrow.Field{Type: dt}
}

// SchemaToArrowSchema converts a schema to an Arrow schema. If the metadata
// parameter is non-nil, it will be included as the top-level metadata in
// the schema. Column comments and defaults are carried in field metadata.
func SchemaToArrowSchema(sc *evolve.Schema, metadata map[string]string, useLargeTypes bool) (*arrow.Schema, error) {
	top, err := evolve.Visit(sc, convertToArrow{
		metadata: metadata, useLargeTypes: useLargeTypes,
	})
	if err != nil {
		return nil, err
	}

	return arrow.NewSchema(top.Type.(*arrow.StructType).Fields(), &top.Metadata), nil
}

// TypeToArrowType converts a given type into the equivalent Arrow data type.
func TypeToArrowType(t evolve.Type, useLargeTypes bool) (arrow.DataType, error) {
	top, err := evolve.VisitType(t, convertToArrow{useLargeTypes: useLargeTypes})
	if err != nil {
		return nil, err
	}

	return top.Type, nil
}
