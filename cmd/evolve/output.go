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

package main

import (
	"encoding/json"
	"fmt"
	"log"
	"maps"
	"slices"
	"strconv"

	"github.com/apache/evolve-go"
	"github.com/apache/evolve-go/table"

	"github.com/pterm/pterm"
	"github.com/pterm/pterm/putils"
)

type Output interface {
	DescribeTable(*table.Table)
	Schema(*evolve.Schema)
	Location(evolve.Location)
	Check([]CheckResult)
	Text(string)
	Error(error)
}

type textOutput struct{}

func (t textOutput) DescribeTable(tbl *table.Table) {
	props := tbl.Properties()
	propData := pterm.TableData{{"key", "value"}}
	for _, k := range slices.Sorted(maps.Keys(props)) {
		propData = append(propData, []string{k, props[k]})
	}

	pterm.DefaultTable.
		WithData(pterm.TableData{
			{"Table", tbl.Name()},
			{"Provider", tbl.Provider()},
			{"Fingerprint", fmt.Sprintf("%x", tbl.Schema().Fingerprint())},
		}).Render()

	t.Schema(tbl.Schema())
	pterm.Println("Properties")
	pterm.DefaultTable.
		WithHasHeader(true).
		WithHeaderRowSeparator("-").
		WithData(propData).Render()
}

func (textOutput) Schema(schema *evolve.Schema) {
	schemaTree := pterm.LeveledList{}
	var addChildren func(evolve.NestedField, int)
	addChildren = func(nf evolve.NestedField, depth int) {
		if nested, ok := nf.Type.(evolve.NestedType); ok {
			for _, n := range nested.Fields() {
				schemaTree = append(schemaTree, pterm.LeveledListItem{
					Level: depth, Text: fieldLine(n),
				})
				addChildren(n, depth+1)
			}
		}
	}

	for _, f := range schema.Fields() {
		schemaTree = append(schemaTree, pterm.LeveledListItem{
			Level: 0, Text: fieldLine(f),
		})
		addChildren(f, 1)
	}
	schemaTreeNode := putils.TreeFromLeveledList(schemaTree)
	schemaTreeNode.Text = "Current Schema, columns=" + strconv.Itoa(schema.NumFields())
	pterm.DefaultTree.WithRoot(schemaTreeNode).Render()
}

// fieldLine renders a field without its nested children, which the tree
// shows on their own lines.
func fieldLine(f evolve.NestedField) string {
	line := f.Name + ": "
	if nested, ok := f.Type.(evolve.NestedType); ok {
		line += nested.Type()
	} else {
		line += f.Type.String()
	}

	if f.Required {
		line += " NOT NULL"
	}
	if f.CurrentDefault != nil {
		line += " DEFAULT " + *f.CurrentDefault
	}
	if f.Doc != "" {
		line += " (" + f.Doc + ")"
	}

	return line
}

func (textOutput) Location(loc evolve.Location) {
	container := "struct"
	if !loc.InStruct() {
		container = loc.Parent.Type()
	}

	pterm.DefaultTable.
		WithData(pterm.TableData{
			{"Path", loc.Path.String()},
			{"Field", fieldLine(loc.Field)},
			{"Container", container},
		}).Render()
}

func (textOutput) Check(results []CheckResult) {
	data := pterm.TableData{{"updates", "result"}}
	for _, r := range results {
		var status string
		if r.Err != nil {
			status = r.Err.Error()
		} else {
			status = "ok, fingerprint " + strconv.FormatUint(r.Table.Schema().Fingerprint(), 16)
		}
		data = append(data, []string{r.File, status})
	}

	pterm.DefaultTable.
		WithBoxed(true).
		WithHasHeader(true).
		WithHeaderRowSeparator("-").
		WithData(data).Render()
}

func (textOutput) Text(val string) {
	pterm.Println(val)
}

func (textOutput) Error(err error) {
	log.Fatal(err)
}

type jsonOutput struct{}

func (j jsonOutput) print(v any) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		j.Error(err)
	}
	pterm.Println(string(data))
}

func (j jsonOutput) DescribeTable(tbl *table.Table) {
	j.print(struct {
		Name        string            `json:"name"`
		Schema      *evolve.Schema    `json:"schema"`
		Properties  evolve.Properties `json:"properties"`
		Fingerprint string            `json:"fingerprint"`
	}{tbl.Name(), tbl.Schema(), tbl.Properties(), strconv.FormatUint(tbl.Schema().Fingerprint(), 16)})
}

func (j jsonOutput) Schema(schema *evolve.Schema) { j.print(schema) }

func (j jsonOutput) Location(loc evolve.Location) {
	j.print(struct {
		Path  []string           `json:"path"`
		Field evolve.NestedField `json:"field"`
		Index int                `json:"index"`
	}{loc.Path, loc.Field, loc.Index})
}

func (j jsonOutput) Check(results []CheckResult) {
	type result struct {
		File        string `json:"file"`
		OK          bool   `json:"ok"`
		Fingerprint string `json:"fingerprint,omitempty"`
		Error       string `json:"error,omitempty"`
	}

	out := make([]result, len(results))
	for i, r := range results {
		out[i] = result{File: r.File, OK: r.Err == nil}
		if r.Err != nil {
			out[i].Error = r.Err.Error()
		} else {
			out[i].Fingerprint = strconv.FormatUint(r.Table.Schema().Fingerprint(), 16)
		}
	}
	j.print(out)
}

func (j jsonOutput) Text(val string) { j.print(map[string]string{"text": val}) }

func (jsonOutput) Error(err error) {
	log.Fatal(err)
}
