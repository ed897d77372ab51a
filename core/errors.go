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


package core

import "errors"

// Domain validation errors
var (
	// ErrInvalidItem indicates an Item failed validation.
	ErrInvalidItem = errors.New("invalid item")

	// ErrMissingID indicates the item id is zero.
	ErrMissingID = errors.New("item id cannot be zero")

	// ErrMissingURL indicates the item has no article URL.
	ErrMissingURL = errors.New("item url cannot be empty")

	// ErrInvalidURL indicates the item URL is not an absolute http(s) URL.
	ErrInvalidURL = errors.New("item url must be an absolute http or https url")

	// ErrInvalidVector indicates an EmbeddedVector failed validation.
	ErrInvalidVector = errors.New("invalid vector")

	// ErrDimensionMismatch indicates a vector length differs from the index dimension.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
)
