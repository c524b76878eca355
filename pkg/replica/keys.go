/*
 * Copyright 2025 The Pagekeep Authors. All rights reserved.
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

package replica

// Names of the top-level collections of the shared document. Every store
// is a projection over exactly one of these subtrees.
const (
	SubtreeLibrary     = "library"
	SubtreeProgress    = "progress"
	SubtreeAnnotations = "annotations"
	SubtreeReadingList = "readinglist"
	SubtreeDevices     = "devices"
	SubtreeSettings    = "settings"
	SubtreeLexicon     = "lexicon"
)

// Subtrees lists every top-level collection, in creation order.
var Subtrees = []string{
	SubtreeLibrary,
	SubtreeProgress,
	SubtreeAnnotations,
	SubtreeReadingList,
	SubtreeDevices,
	SubtreeSettings,
	SubtreeLexicon,
}
