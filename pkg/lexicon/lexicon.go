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

// Package lexicon is the pronunciation-rule store, a projection over the
// lexicon subtree of the shared document. Rules are ordered; the order
// decides precedence when text is prepared for speech.
package lexicon

import (
	"sort"
	"strings"
	gotime "time"

	"github.com/rs/xid"
	"github.com/yorkie-team/yorkie/pkg/document/json"
	"github.com/yorkie-team/yorkie/pkg/document/yson"

	pkerrors "github.com/pagekeep-io/pagekeep/pkg/errors"
	"github.com/pagekeep-io/pagekeep/pkg/replica"
)

// Rule is one substitution applied to text before it is spoken.
type Rule struct {
	ID          string
	Original    string
	Replacement string
	Created     int64
}

// Keys inside the lexicon subtree. Rules live keyed by id; the order
// sequence holds the ids in precedence order and is replaced wholesale on
// every reorder.
const (
	rulesKey = "rules"
	orderKey = "order"
)

// Store exposes the lexicon actions.
type Store struct {
	handle *replica.Handle
	now    func() gotime.Time
}

// NewStore creates a lexicon store over the given handle.
func NewStore(handle *replica.Handle) *Store {
	return &Store{handle: handle, now: gotime.Now}
}

// AddRule appends a rule at the end of the list and returns its id.
func (s *Store) AddRule(original, replacement string) (string, error) {
	if strings.TrimSpace(original) == "" {
		return "", pkerrors.InvalidArgument("rule original must not be blank")
	}

	order, err := s.orderIDs()
	if err != nil {
		return "", err
	}

	id := xid.New().String()
	created := s.now().UnixMilli()
	err = s.handle.Update(
		replica.OriginLocal,
		[]string{replica.SubtreeLexicon},
		"add lexicon rule",
		func(root *json.Object) error {
			lex := ensureObject(root, replica.SubtreeLexicon)
			rules := lex.GetObject(rulesKey)
			if rules == nil {
				rules = lex.SetNewObject(rulesKey)
			}
			entry := rules.SetNewObject(id)
			entry.SetString("id", id)
			entry.SetString("original", original)
			entry.SetString("replacement", replacement)
			entry.SetLong("created", created)
			writeOrder(lex, append(order, id))
			return nil
		},
	)
	if err != nil {
		return "", err
	}
	return id, nil
}

// UpdateRule rewrites the original and replacement of an existing rule.
func (s *Store) UpdateRule(id, original, replacement string) error {
	if strings.TrimSpace(original) == "" {
		return pkerrors.InvalidArgument("rule original must not be blank")
	}

	return s.handle.Update(
		replica.OriginLocal,
		[]string{replica.SubtreeLexicon},
		"update lexicon rule",
		func(root *json.Object) error {
			rules := rulesObject(root)
			if rules == nil || !rules.Has(id) {
				return pkerrors.NotFound("lexicon rule not found: " + id)
			}
			entry := rules.GetObject(id)
			entry.SetString("original", original)
			entry.SetString("replacement", replacement)
			return nil
		},
	)
}

// RemoveRule deletes a rule and drops it from the order.
func (s *Store) RemoveRule(id string) error {
	order, err := s.orderIDs()
	if err != nil {
		return err
	}

	return s.handle.Update(
		replica.OriginLocal,
		[]string{replica.SubtreeLexicon},
		"remove lexicon rule",
		func(root *json.Object) error {
			rules := rulesObject(root)
			if rules == nil || !rules.Has(id) {
				return pkerrors.NotFound("lexicon rule not found: " + id)
			}
			rules.Delete(id)

			kept := make([]string, 0, len(order))
			for _, o := range order {
				if o != id {
					kept = append(kept, o)
				}
			}
			writeOrder(root.GetObject(replica.SubtreeLexicon), kept)
			return nil
		},
	)
}

// MoveRule repositions a rule to the given index of the order.
func (s *Store) MoveRule(id string, index int) error {
	order, err := s.orderIDs()
	if err != nil {
		return err
	}
	if index < 0 || index >= len(order) {
		return pkerrors.InvalidArgument("rule index out of range")
	}

	from := -1
	for i, o := range order {
		if o == id {
			from = i
			break
		}
	}
	if from == -1 {
		return pkerrors.NotFound("lexicon rule not found: " + id)
	}
	if from == index {
		return nil
	}

	moved := make([]string, 0, len(order))
	moved = append(moved, order[:from]...)
	moved = append(moved, order[from+1:]...)
	moved = append(moved[:index], append([]string{id}, moved[index:]...)...)

	return s.handle.Update(
		replica.OriginLocal,
		[]string{replica.SubtreeLexicon},
		"reorder lexicon rules",
		func(root *json.Object) error {
			lex := root.GetObject(replica.SubtreeLexicon)
			if lex == nil {
				return pkerrors.NotFound("lexicon rule not found: " + id)
			}
			writeOrder(lex, moved)
			return nil
		},
	)
}

// ListRules returns the rules in precedence order. Rules that arrived
// from a remote replica without an order slot yet are appended at the
// end, oldest first.
func (s *Store) ListRules() ([]Rule, error) {
	lex, err := s.handle.SubtreeData(replica.SubtreeLexicon)
	if err != nil {
		return nil, err
	}
	rules := replica.ObjectOf(lex, rulesKey)
	order := replica.StringsOf(lex, orderKey)

	out := make([]Rule, 0, len(rules))
	seen := make(map[string]bool, len(order))
	for _, id := range order {
		if entry := replica.ObjectOf(rules, id); entry != nil {
			out = append(out, decodeRule(id, entry))
			seen[id] = true
		}
	}

	var stragglers []Rule
	for id, v := range rules {
		if seen[id] {
			continue
		}
		if entry, ok := v.(yson.Object); ok {
			stragglers = append(stragglers, decodeRule(id, entry))
		}
	}
	sort.Slice(stragglers, func(i, j int) bool {
		if stragglers[i].Created != stragglers[j].Created {
			return stragglers[i].Created < stragglers[j].Created
		}
		return stragglers[i].ID < stragglers[j].ID
	})
	return append(out, stragglers...), nil
}

// Apply rewrites the given text with every rule, in precedence order.
func (s *Store) Apply(text string) (string, error) {
	rules, err := s.ListRules()
	if err != nil {
		return "", err
	}
	for _, r := range rules {
		text = strings.ReplaceAll(text, r.Original, r.Replacement)
	}
	return text, nil
}

func (s *Store) orderIDs() ([]string, error) {
	lex, err := s.handle.SubtreeData(replica.SubtreeLexicon)
	if err != nil {
		return nil, err
	}
	return replica.StringsOf(lex, orderKey), nil
}

func decodeRule(id string, entry yson.Object) Rule {
	created, _ := replica.Int64Of(entry, "created")
	return Rule{
		ID:          id,
		Original:    replica.StringOf(entry, "original"),
		Replacement: replica.StringOf(entry, "replacement"),
		Created:     created,
	}
}

func writeOrder(lex *json.Object, ids []string) {
	if lex.Has(orderKey) {
		lex.Delete(orderKey)
	}
	arr := lex.SetNewArray(orderKey)
	if len(ids) > 0 {
		arr.AddString(ids...)
	}
}

func ensureObject(root *json.Object, name string) *json.Object {
	if obj := root.GetObject(name); obj != nil {
		return obj
	}
	return root.SetNewObject(name)
}

func rulesObject(root *json.Object) *json.Object {
	lex := root.GetObject(replica.SubtreeLexicon)
	if lex == nil {
		return nil
	}
	return lex.GetObject(rulesKey)
}
