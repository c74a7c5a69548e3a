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


// Package gocloud registers object store schemes with the io package.
// Import it for its side effects:
//
//	import _ "github.com/apache/evolve-go/io/gocloud"
package gocloud

import (
	"context"
	"fmt"
	"net/url"

	evolveio "github.com/apache/evolve-go/io"
	"gocloud.dev/blob"
)

// backend opens the bucket a location points into. Buckets of a shared
// backend outlive the IO that opened them.
type backend struct {
	schemes []string
	open    func(ctx context.Context, loc *url.URL, storage evolveio.Storage) (*blob.Bucket, error)
	shared  bool
}

var backends = []backend{
	{schemes: []string{"s3", "s3a", "s3n"}, open: openS3Bucket},
	{schemes: []string{"gs"}, open: openGCSBucket},
	{schemes: []string{"azblob", "abfs", "abfss", "wasb", "wasbs"}, open: openAzureBucket},
	{schemes: []string{"mem"}, open: openMemBucket, shared: true},
}

func init() {
	for _, b := range backends {
		for _, scheme := range b.schemes {
			evolveio.Register(scheme, b.opener())
		}
	}
}

func (b backend) opener() evolveio.Opener {
	return func(ctx context.Context, loc *url.URL, storage evolveio.Storage) (evolveio.IO, error) {
		if loc.Host == "" {
			return nil, fmt.Errorf("%s location %s names no bucket", loc.Scheme, loc)
		}

		bucket, err := b.open(ctx, loc, storage)
		if err != nil {
			return nil, fmt.Errorf("open %s bucket %s: %w", loc.Scheme, loc.Host, err)
		}

		return newBlobIO(bucket, loc.Host, b.shared), nil
	}
}
