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

import (
	"fmt"
	"net/url"
)

// ValidateItem validates an Item according to domain rules.
//
// Validation rules:
//   - ID must not be zero
//   - URL must be present and absolute with an http or https scheme
//
// NOT validated:
//   - Title (upstream occasionally omits it)
//   - Author, Score, PublishedAt (informational only)
func ValidateItem(item *Item) error {
	if item == nil {
		return fmt.Errorf("%w: item is nil", ErrInvalidItem)
	}

	if item.ID == 0 {
		return fmt.Errorf("%w: %w", ErrInvalidItem, ErrMissingID)
	}

	if item.URL == "" {
		return fmt.Errorf("%w: %w", ErrInvalidItem, ErrMissingURL)
	}

	if !IsFetchableURL(item.URL) {
		return fmt.Errorf("%w: %w", ErrInvalidItem, ErrInvalidURL)
	}

	return nil
}

// ValidateVector checks that a vector has an id and the expected dimension.
// A dimension of zero skips the length check.
func ValidateVector(vector *EmbeddedVector, dimension int) error {
	if vector == nil {
		return fmt.Errorf("%w: vector is nil", ErrInvalidVector)
	}
	if vector.ID == "" {
		return fmt.Errorf("%w: empty id", ErrInvalidVector)
	}
	if len(vector.Values) == 0 {
		return fmt.Errorf("%w: %s has no values", ErrInvalidVector, vector.ID)
	}
	if dimension > 0 && len(vector.Values) != dimension {
		return fmt.Errorf("%w: %s has %d values, want %d", ErrDimensionMismatch, vector.ID, len(vector.Values), dimension)
	}
	return nil
}

// IsFetchableURL reports whether raw is an absolute http or https URL with a host.
func IsFetchableURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}
	return u.Host != ""
}
