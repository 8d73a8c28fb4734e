/*
 * Copyright 2017-2022 Provide Technologies Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package userstate

import "fmt"

// NotFound is the structured not-found error CurrentEpoch returns when
// no epoch row exists and the proof-input assemblers return when the
// identity's GST leaf is absent (spec.md §7). It carries only the
// resource name and does not wrap store.ErrNotFound.
type NotFound struct {
	Resource string
}

func (e *NotFound) Error() string {
	return fmt.Sprintf("%s not found", e.Resource)
}
