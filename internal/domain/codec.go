/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package domain

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	gojsonschema "github.com/xeipuuv/gojsonschema"

	"cardsmith/internal/tree"
)

// ErrInvalidCard marks card data that does not fit the card schema.
var ErrInvalidCard = errors.New("invalid card")

//go:embed card.schema.json
var cardSchema []byte

var (
	schemaOnce sync.Once
	schema     *gojsonschema.Schema
	schemaErr  error
)

func compiledSchema() (*gojsonschema.Schema, error) {
	schemaOnce.Do(func() {
		schema, schemaErr = gojsonschema.NewSchema(gojsonschema.NewBytesLoader(cardSchema))
	})
	return schema, schemaErr
}

// cardDoc is the persisted shape of one card: the ID plus each field's node
// tree keyed by field name.
type cardDoc struct {
	ID     int64          `json:"id"`
	Fields map[string]any `json:"fields"`
}

// MarshalCard encodes card as an indented JSON document.
func MarshalCard(card *tree.Card) ([]byte, error) {
	doc := cardDoc{ID: card.ID, Fields: make(map[string]any, len(card.Children))}
	for i, c := range card.Children {
		f, ok := c.(*tree.Field)
		if !ok {
			return nil, fmt.Errorf("%w: child %d of card %d is a %s", ErrInvalidCard, i, card.ID, c.Kind())
		}
		if _, dup := doc.Fields[f.Name]; dup {
			return nil, fmt.Errorf("%w: card %d has field %q twice", ErrInvalidCard, card.ID, f.Name)
		}
		doc.Fields[f.Name] = tree.ToData(f)
	}
	return json.MarshalIndent(doc, "", "  ")
}

// ValidateCard checks data against the card schema.
func ValidateCard(data []byte) error {
	s, err := compiledSchema()
	if err != nil {
		return fmt.Errorf("card schema: %w", err)
	}
	res, err := s.Validate(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidCard, err)
	}
	if !res.Valid() {
		msgs := make([]string, 0, len(res.Errors()))
		for _, e := range res.Errors() {
			msgs = append(msgs, e.String())
		}
		return fmt.Errorf("%w: %s", ErrInvalidCard, strings.Join(msgs, "; "))
	}
	return nil
}

// UnmarshalCard validates and decodes a card document. Known fields come first
// in layout order, unknown ones follow by name. ids, when given, observes the
// card's ID. Nothing is returned unless the whole card is valid.
func UnmarshalCard(data []byte, ids *IDAllocator) (*tree.Card, error) {
	if err := ValidateCard(data); err != nil {
		return nil, err
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var doc cardDoc
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCard, err)
	}

	names := make([]string, 0, len(doc.Fields))
	for _, n := range FieldNames {
		if _, ok := doc.Fields[n]; ok {
			names = append(names, n)
		}
	}
	var extra []string
	for n := range doc.Fields {
		if !IsKnownField(n) {
			extra = append(extra, n)
		}
	}
	sort.Strings(extra)
	names = append(names, extra...)

	card := &tree.Card{ID: doc.ID}
	for _, name := range names {
		n, err := tree.FromData(doc.Fields[name])
		if err != nil {
			return nil, fmt.Errorf("%w: field %q: %v", ErrInvalidCard, name, err)
		}
		f, ok := n.(*tree.Field)
		if !ok || f.Name != name {
			return nil, fmt.Errorf("%w: entry %q does not hold field %q", ErrInvalidCard, name, name)
		}
		card.Children = append(card.Children, f)
	}
	if ids != nil {
		ids.Observe(card.ID)
	}
	return card, nil
}
