/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package shape

import (
	"fmt"

	"go.jetify.com/typeid/v2"
)

// PrefixObject is the type-id prefix of every annotation object.
const PrefixObject = "obj"

func NewObjectID() string {
	return typeid.MustGenerate(PrefixObject).String()
}

// ValidateObjectID checks that id is a well-formed object type-id.
func ValidateObjectID(id string) error {
	parsed, err := typeid.Parse(id)
	if err != nil {
		return fmt.Errorf("invalid object id %q: %w", id, err)
	}
	if parsed.Prefix() != PrefixObject {
		return fmt.Errorf("expected prefix %q but got %q in id %q", PrefixObject, parsed.Prefix(), id)
	}
	return nil
}
