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
	"fmt"
	"strings"

	"github.com/apache/evolve-go/internal"
	"github.com/hamba/avro/v2"
)

// AvroFieldNameProp is set on avro fields whose column name had to be
// rewritten to be a valid avro name. It holds the original name.
const AvroFieldNameProp = "field-name"

// SchemaToAvro converts sc to an avro record schema called name. Nested
// structs become records named after their path, nullable columns become
// unions with null, and maps with non-string keys become arrays of
// key/value records. Interval columns have no avro equivalent and are
// rejected.
func SchemaToAvro(sc *Schema, name string) (avro.Schema, error) {
	if name == "" {
		name = "record"
	}

	return Visit[avro.Schema](sc, &convertToAvro{path: []string{avroName(name)}})
}

type convertToAvro struct {
	path []string
}

func (c *convertToAvro) BeforeField(f NestedField) { c.path = append(c.path, avroName(f.Name)) }
func (c *convertToAvro) AfterField(NestedField)    { c.path = c.path[:len(c.path)-1] }

func (c *convertToAvro) recordName() string { return strings.Join(c.path, "_") }

func (c *convertToAvro) Schema(_ *Schema, result avro.Schema) avro.Schema { return result }

func (c *convertToAvro) Struct(st *StructType, results []avro.Schema) avro.Schema {
	fields := make([]*avro.Field, len(st.FieldList))
	for i, f := range st.FieldList {
		opts := []avro.SchemaOption{}
		if f.Doc != "" {
			opts = append(opts, avro.WithDoc(f.Doc))
		}

		props := map[string]any{}
		if name := avroName(f.Name); name != f.Name {
			props[AvroFieldNameProp] = f.Name
		}
		if f.CurrentDefault != nil {
			props["current-default"] = *f.CurrentDefault
		}
		if len(props) > 0 {
			opts = append(opts, avro.WithProps(props))
		}

		fields[i] = internal.Must(avro.NewField(avroName(f.Name), results[i], opts...))
	}

	return internal.Must(avro.NewRecordSchema(c.recordName(), "", fields))
}

func nullable(sc avro.Schema, required bool) avro.Schema {
	if required || sc.Type() == avro.Null {
		return sc
	}

	return internal.NullableSchema(sc)
}

func (c *convertToAvro) Field(f NestedField, result avro.Schema) avro.Schema {
	return nullable(result, f.Required)
}

func (c *convertToAvro) List(list *ListType, elem avro.Schema) avro.Schema {
	return avro.NewArraySchema(nullable(elem, list.ElementRequired))
}

func (c *convertToAvro) Map(m *MapType, key, value avro.Schema) avro.Schema {
	return internal.Must(internal.NewMapSchema(c.recordName()+"_entry", key,
		nullable(value, m.ValueRequired)))
}

func (c *convertToAvro) Primitive(p PrimitiveType) avro.Schema {
	switch p := p.(type) {
	case BooleanType:
		return internal.BoolSchema
	case Int8Type, Int16Type, Int32Type:
		return internal.IntSchema
	case Int64Type:
		return internal.LongSchema
	case Float32Type:
		return internal.FloatSchema
	case Float64Type:
		return internal.DoubleSchema
	case DecimalType:
		return internal.Must(internal.DecimalSchema(p.precision, p.scale))
	case DateType:
		return internal.DateSchema
	case TimeType:
		return internal.TimeSchema
	case TimestampType:
		return internal.TimestampSchema
	case TimestampTzType:
		return internal.TimestampTzSchema
	case TimestampNsType:
		return internal.TimestampNsSchema
	case TimestampTzNsType:
		return internal.TimestampTzNsSchema
	case StringType:
		return internal.StringSchema
	case BinaryType:
		return internal.BinarySchema
	case FixedType:
		return internal.Must(internal.FixedSchema(p.Len()))
	case UUIDType:
		return internal.UUIDSchema
	case UnknownType:
		return internal.NullSchema
	default:
		panic(fmt.Errorf("%w: %s %s has no avro representation",
			ErrIllegalIntervalType, strings.Join(c.path[1:], "."), p))
	}
}

// avroName rewrites s into a valid avro name. Characters outside
// [A-Za-z0-9_] are replaced by _x followed by their hex code point and a
// leading digit is prefixed with an underscore.
func avroName(s string) string {
	var b strings.Builder
	for i, r := range s {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
			b.WriteRune(r)
		case r >= '0' && r <= '9':
			if i == 0 {
				b.WriteByte('_')
			}
			b.WriteRune(r)
		default:
			fmt.Fprintf(&b, "_x%X", r)
		}
	}

	if b.Len() == 0 {
		return "_"
	}

	return b.String()
}
