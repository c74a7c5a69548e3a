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
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/apache/evolve-go"
	"github.com/apache/evolve-go/config"
	evolveio "github.com/apache/evolve-go/io"
	"github.com/apache/evolve-go/table"

	"github.com/docopt/docopt-go"
	"github.com/pterm/pterm"
	"golang.org/x/sync/errgroup"
)

const usage = `evolve.

Usage:
  evolve schema [options] TABLE_FILE
  evolve resolve [options] TABLE_FILE PATH
  evolve apply [options] TABLE_FILE [UPDATES_FILE]
  evolve check [options] TABLE_FILE UPDATES_FILE...
  evolve -h | --help | --version

Commands:
  schema      Print the schema of a table.
  resolve     Resolve a column path against the schema of a table.
  apply       Apply a batch of updates and print the resulting table.
  check       Validate candidate batches against the same table.

Arguments:
  TABLE_FILE     JSON or YAML file holding a table, a local path or a
                 file://, mem://, s3://, gs:// or azblob:// location
  UPDATES_FILE   JSON or YAML file holding a list of updates
  PATH           dotted column path, e.g. points.element.x

Options:
  -h --help          	show this help messages and exit
  --output TYPE      	output type (json/text)
  --format TYPE      	schema format (sql/arrow/avro) (schema only) [default: sql]
  --config TEXT      	specify the path to the configuration file
  --profile TEXT     	specify the configuration profile to use
  --case-sensitive   	match column names case-sensitively
  --table-name TEXT  	name of the table used in error messages
  --properties TEXT  	properties to set after the updates in key=value format (apply only)
                     	Ex:"owner=data-eng,retention=30d"
  --out LOCATION     	write the resulting table as JSON to LOCATION (apply only)
  --verbose          	log every applied update`

type Config struct {
	Schema  bool `docopt:"schema"`
	Resolve bool `docopt:"resolve"`
	Apply   bool `docopt:"apply"`
	Check   bool `docopt:"check"`

	TableFile   string   `docopt:"TABLE_FILE"`
	UpdateFiles []string `docopt:"UPDATES_FILE"`
	Path        string   `docopt:"PATH"`

	Output        string `docopt:"--output"`
	Format        string `docopt:"--format"`
	Config        string `docopt:"--config"`
	Profile       string `docopt:"--profile"`
	CaseSensitive bool   `docopt:"--case-sensitive"`
	TableName     string `docopt:"--table-name"`
	Properties    string `docopt:"--properties"`
	Out           string `docopt:"--out"`
	Verbose       bool   `docopt:"--verbose"`
}

func main() {
	args, err := docopt.ParseArgs(usage, os.Args[1:], evolve.Version())
	if err != nil {
		log.Fatal(err)
	}

	cfg := Config{}

	if err := args.Bind(&cfg); err != nil {
		log.Fatal(err)
	}

	profile := config.EnvConfig.Profile(cfg.Profile)
	if cfg.Config != "" {
		name := cfg.Profile
		if name == "" {
			name = "default"
		}

		if p := config.ParseConfig(config.LoadConfig(cfg.Config), name); p != nil {
			profile = *p
		}
	}
	mergeConf(profile, &cfg)

	var output Output
	switch strings.ToLower(cfg.Output) {
	case "text":
		output = textOutput{}
	case "json":
		output = jsonOutput{}
	default:
		log.Fatal("unimplemented output type")
	}

	ctx := context.Background()
	storage := profile.Storage
	tbl := loadTable(ctx, output, storage, cfg.TableFile)

	opts := batchOptions(cfg)

	switch {
	case cfg.Schema:
		if cfg.Format == "" || strings.EqualFold(cfg.Format, "sql") {
			output.Schema(tbl.Schema())

			break
		}

		text, err := exportSchema(tbl, cfg.Format)
		if err != nil {
			output.Error(err)
			os.Exit(1)
		}
		output.Text(text)
	case cfg.Resolve:
		resolve(output, tbl, cfg)
	case cfg.Apply:
		var updates table.Updates
		if len(cfg.UpdateFiles) > 0 {
			updates = loadUpdates(ctx, output, storage, cfg.UpdateFiles[0])
		}

		if cfg.Properties != "" {
			props, err := parseProperties(cfg.Properties)
			if err != nil {
				output.Error(fmt.Errorf("failed to parse properties: %w", err))
				os.Exit(1)
			}
			updates = append(updates, table.NewSetPropertiesUpdate(props))
		}

		result, err := table.ApplyBatch(tbl, updates, opts...)
		if err != nil {
			output.Error(err)
			os.Exit(1)
		}

		if cfg.Out != "" {
			if err := writeTable(ctx, storage, cfg.Out, result); err != nil {
				output.Error(fmt.Errorf("failed to write table %s: %w", cfg.Out, err))
				os.Exit(1)
			}
		}
		output.DescribeTable(result)
	case cfg.Check:
		results := check(ctx, tbl, storage, cfg.UpdateFiles, opts)
		output.Check(results)
		for _, r := range results {
			if r.Err != nil {
				os.Exit(1)
			}
		}
	}
}

func mergeConf(profile config.Profile, cfg *Config) {
	if cfg.Output == "" {
		cfg.Output = profile.Output
	}
	if cfg.Output == "" {
		cfg.Output = "text"
	}
	if !cfg.CaseSensitive {
		cfg.CaseSensitive = profile.CaseSensitive
	}
	if cfg.TableName == "" {
		cfg.TableName = profile.TableName
	}
}

// batchOptions turns the command line flags into planner options.
func batchOptions(cfg Config) []table.Option {
	opts := []table.Option{table.WithCaseSensitive(cfg.CaseSensitive)}
	if cfg.TableName != "" {
		opts = append(opts, table.WithTableName(cfg.TableName))
	}
	if cfg.Verbose {
		logger := pterm.DefaultLogger.WithLevel(pterm.LogLevelDebug)
		opts = append(opts, table.WithUpdateHook(func(u table.Update, s *evolve.Schema) {
			logger.Debug("applied update", logger.Args(
				"action", u.Action(),
				"columns", s.NumFields(),
				"fingerprint", fmt.Sprintf("%x", s.Fingerprint())))
		}))
	}

	return opts
}

func loadTable(ctx context.Context, output Output, storage map[string]string, location string) *table.Table {
	var tbl table.Table
	if err := decodeFile(ctx, storage, location, &tbl); err != nil {
		output.Error(fmt.Errorf("failed to load table %s: %w", location, err))
		os.Exit(1)
	}

	return &tbl
}

func loadUpdates(ctx context.Context, output Output, storage map[string]string, location string) table.Updates {
	updates, err := readUpdates(ctx, storage, location)
	if err != nil {
		output.Error(fmt.Errorf("failed to load updates %s: %w", location, err))
		os.Exit(1)
	}

	return updates
}

func readUpdates(ctx context.Context, storage map[string]string, location string) (table.Updates, error) {
	var updates table.Updates
	if err := decodeFile(ctx, storage, location, &updates); err != nil {
		return nil, err
	}

	return updates, nil
}

func writeTable(ctx context.Context, storage map[string]string, location string, tbl *table.Table) error {
	data, err := json.MarshalIndent(tbl, "", "  ")
	if err != nil {
		return err
	}

	return evolveio.WriteFile(ctx, storage, location, data)
}

func resolve(output Output, tbl *table.Table, cfg Config) {
	path, err := evolve.ParseFieldPath(cfg.Path)
	if err != nil {
		output.Error(err)
		os.Exit(1)
	}

	loc, err := evolve.Resolve(tbl.Schema(), path, evolve.MatcherFor(cfg.CaseSensitive))
	if err != nil {
		var missing *evolve.MissingFieldError
		if errors.As(err, &missing) {
			output.Error(fmt.Errorf("%s: %w", tableLabel(tbl, cfg), err))
		} else {
			output.Error(err)
		}
		os.Exit(1)
	}

	output.Location(loc)
}

// exportSchema renders the table schema as an Arrow or Avro schema.
func exportSchema(tbl *table.Table, format string) (string, error) {
	switch strings.ToLower(format) {
	case "arrow":
		sc, err := table.SchemaToArrowSchema(tbl.Schema(), tbl.Properties(), false)
		if err != nil {
			return "", err
		}

		return sc.String(), nil
	case "avro":
		name := tbl.Name()
		if i := strings.LastIndexByte(name, '.'); i >= 0 {
			name = name[i+1:]
		}

		sc, err := evolve.SchemaToAvro(tbl.Schema(), name)
		if err != nil {
			return "", err
		}

		return sc.String(), nil
	default:
		return "", fmt.Errorf("%w: unknown schema format %q", evolve.ErrInvalidArgument, format)
	}
}

func tableLabel(tbl *table.Table, cfg Config) string {
	if cfg.TableName != "" {
		return cfg.TableName
	}

	return tbl.Name()
}

// CheckResult is the outcome of applying one candidate batch.
type CheckResult struct {
	File  string
	Table *table.Table
	Err   error
}

// check applies every batch to the same table concurrently. Each batch
// starts from tbl; a failure in one does not affect the others.
func check(ctx context.Context, tbl *table.Table, storage map[string]string, files []string, opts []table.Option) []CheckResult {
	results := make([]CheckResult, len(files))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(max(config.EnvConfig.MaxWorkers, 1))
	for i, file := range files {
		g.Go(func() error {
			results[i].File = file
			updates, err := readUpdates(ctx, storage, file)
			if err != nil {
				results[i].Err = err

				return nil
			}

			results[i].Table, results[i].Err = table.ApplyBatch(tbl, updates, opts...)

			return nil
		})
	}
	_ = g.Wait()

	return results
}
