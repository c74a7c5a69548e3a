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

package gocloud

import (
	"context"
	"fmt"
	"io/fs"
	"net/url"
	"path"
	"strings"
	"sync"

	evolveio "github.com/apache/evolve-go/io"
	"gocloud.dev/blob"
	"gocloud.dev/blob/memblob"
	"gocloud.dev/gcerrors"
)

// blobIO reads and writes documents in a single bucket. Locations name
// the bucket in their host and the key in their path.
type blobIO struct {
	bucket *blob.Bucket
	host   string
	shared bool
}

func newBlobIO(bucket *blob.Bucket, host string, shared bool) *blobIO {
	return &blobIO{bucket: bucket, host: host, shared: shared}
}

func (b *blobIO) key(op, name string) (string, error) {
	parsed, err := url.Parse(name)
	if err != nil {
		return "", &fs.PathError{Op: op, Path: name, Err: fs.ErrInvalid}
	}

	if parsed.Host != "" && parsed.Host != b.host {
		return "", &fs.PathError{Op: op, Path: name,
			Err: fmt.Errorf("%w: location is outside bucket %s", fs.ErrInvalid, b.host)}
	}

	key := strings.TrimPrefix(parsed.Path, "/")
	if key == "" || strings.HasSuffix(key, "/") {
		return "", &fs.PathError{Op: op, Path: name, Err: fs.ErrInvalid}
	}

	return key, nil
}

func (b *blobIO) ReadFile(ctx context.Context, name string) ([]byte, error) {
	key, err := b.key("read", name)
	if err != nil {
		return nil, err
	}

	data, err := b.bucket.ReadAll(ctx, key)
	if err != nil {
		if gcerrors.Code(err) == gcerrors.NotFound {
			err = fs.ErrNotExist
		}

		return nil, &fs.PathError{Op: "read", Path: name, Err: err}
	}

	return data, nil
}

func (b *blobIO) WriteFile(ctx context.Context, name string, data []byte) error {
	key, err := b.key("write", name)
	if err != nil {
		return err
	}

	opts := &blob.WriterOptions{ContentType: contentType(key)}
	if err := b.bucket.WriteAll(ctx, key, data, opts); err != nil {
		return &fs.PathError{Op: "write", Path: name, Err: err}
	}

	return nil
}

// Close releases the bucket unless it is shared between loads.
func (b *blobIO) Close() error {
	if b.shared {
		return nil
	}

	return b.bucket.Close()
}

func contentType(key string) string {
	switch path.Ext(key) {
	case ".json":
		return "application/json"
	case ".yaml", ".yml":
		return "application/yaml"
	default:
		return "application/octet-stream"
	}
}

var (
	memMx      sync.Mutex
	memBuckets = map[string]*blob.Bucket{}
)

func openMemBucket(_ context.Context, loc *url.URL, _ evolveio.Storage) (*blob.Bucket, error) {
	return memBucket(loc.Host), nil
}

func memBucket(host string) *blob.Bucket {
	memMx.Lock()
	defer memMx.Unlock()

	if b, ok := memBuckets[host]; ok {
		return b
	}

	b := memblob.OpenBucket(nil)
	memBuckets[host] = b

	return b
}
