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


package validator

import "errors"

// Rejection reasons. Each is wrapped together with core.ErrValidation.
var (
	// ErrTypeNotAllowed indicates the declared extension is not on the allow-list.
	ErrTypeNotAllowed = errors.New("file type not allowed")

	// ErrTooLarge indicates the content exceeds the size ceiling.
	ErrTooLarge = errors.New("file too large")

	// ErrEmpty indicates zero-byte content.
	ErrEmpty = errors.New("file is empty")

	// ErrContentMismatch indicates the content does not match the declared extension.
	ErrContentMismatch = errors.New("file content doesn't match extension")
)
