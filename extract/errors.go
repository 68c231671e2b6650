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


package extract

import "errors"

var (
	// ErrNoExtractor indicates no extractor is registered for the MIME type.
	ErrNoExtractor = errors.New("no extractor for mime type")

	// ErrNoPages indicates a PDF without pages.
	ErrNoPages = errors.New("document has no pages")

	// ErrNoRows indicates a delimited file without a header row.
	ErrNoRows = errors.New("delimited file has no header")

	// ErrNoSheets indicates a workbook without worksheets.
	ErrNoSheets = errors.New("workbook has no sheets")

	// ErrPanic indicates a third-party parser panicked.
	ErrPanic = errors.New("parser panicked")
)
