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


// Package search answers similarity queries scoped to one owner.
//
// The Searcher embeds the query with the ingestion embedder, over-fetches
// candidates from the vector index, drops chunks owned by anyone else or
// whose artifact record is gone, and returns at most k hits in relevance
// order. Fewer than k hits may come back; the index is never re-queried.
//
// Hits whose chunk contains every significant query word (stop words
// removed) are flagged Exact. The flag does not affect ordering.
package search
