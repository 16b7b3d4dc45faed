// COMOR: Disease Co-occurrence Analysis Library
// Copyright (c) 2022 imec vzw.

// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version, and Additional Terms
// (see below).

// This program is distributed in the hope that it will be useful, but
// WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the GNU
// Affero General Public License for more details.

// You should have received a copy of the GNU Affero General Public
// License and Additional Terms along with this program. If not, see
// <https://www.gnu.org/licenses/>.

package comat

import (
	"errors"
	"fmt"
	"strings"
)

// SchemaError reports required columns that are absent from an input table.
type SchemaError struct {
	Source  string   // the offending file or table
	Missing []string // the column names that are absent
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("missing columns in %s: %s", e.Source, strings.Join(e.Missing, ", "))
}

// ConfigurationError reports an invalid or missing configuration value, such
// as an unknown filter mode or a bootstrap iteration count that is too low.
type ConfigurationError struct {
	Msg string
}

func (e *ConfigurationError) Error() string {
	return "configuration error: " + e.Msg
}

// StatisticalPreconditionError reports that a statistic cannot be computed
// from the given inputs, e.g. a sample standard deviation over fewer than two
// bootstrap draws.
type StatisticalPreconditionError struct {
	Msg string
}

func (e *StatisticalPreconditionError) Error() string {
	return "statistical precondition violated: " + e.Msg
}

// ErrNoCommonCodes signals that two matrices being compared share no disease
// codes. It accompanies an empty result rather than replacing it; callers may
// log it and continue.
var ErrNoCommonCodes = errors.New("no common disease codes between matrices")
