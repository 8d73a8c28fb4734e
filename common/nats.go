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

package common

// NatsStream is the jetstream stream name shared by the synchronizer's
// publisher and userstate's cache-invalidation subscriber -- kept here
// rather than in either package so neither has to import the other
// just to agree on a subject name.
const NatsStream = "unirep"

// NatsCommittedSubject is published to once per successfully committed
// log. userstate subscribes to invalidate its EpochKeys/CurrentEpoch
// cache; nothing else currently subscribes.
const NatsCommittedSubject = "unirep.sync.committed"
