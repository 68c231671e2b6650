// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package storage

import "errors"

var (
	// ErrNotFound is returned for a missing artifact, chunk or blob.
	ErrNotFound = errors.New("record not found")

	// ErrDuplicateKey is returned when creating an artifact whose ID is taken.
	ErrDuplicateKey = errors.New("duplicate key")

	// ErrStorageClosed is returned by every call after Close.
	ErrStorageClosed = errors.New("storage is closed")

	// ErrInvalidQuery covers empty query vectors and non-positive limits.
	ErrInvalidQuery = errors.New("invalid query parameters")

	// ErrSerializationFailed wraps msgpack encode and decode failures.
	ErrSerializationFailed = errors.New("serialization failed")

	// ErrTruncatedData is returned when a key or value is shorter than its encoding.
	ErrTruncatedData = errors.New("truncated data")

	// ErrInvalidLocation is returned for a blob location that escapes the store root.
	ErrInvalidLocation = errors.New("invalid storage location")
)
