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


package api

import "errors"

var (
	// ErrServiceRequired is returned when NewServer is given a nil service.
	ErrServiceRequired = errors.New("service is required")

	// ErrSecretRequired is returned when the JWT signing secret is empty.
	ErrSecretRequired = errors.New("jwt secret is required")

	// ErrUnauthenticated indicates a missing, malformed or invalid bearer token.
	ErrUnauthenticated = errors.New("unauthenticated")
)
