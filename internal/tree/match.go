/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package tree

// Pattern is a partial node description. Only the listed keys are compared:
// "type" against the node kind, "text" against text content, anything else
// against the node's properties.
type Pattern map[string]any

// Matches reports whether n has every field listed in pt.
func (pt Pattern) Matches(n Node) bool {
	props := n.Props()
	for k, want := range pt {
		switch k {
		case "type":
			if !sameValue(string(n.Kind()), want) {
				return false
			}
		case "text":
			t, ok := n.(*Text)
			if !ok || !sameValue(t.Content, want) {
				return false
			}
		default:
			got, ok := props[k]
			if !ok || !sameValue(got, want) {
				return false
			}
		}
	}
	return true
}

func sameValue(got, want any) bool {
	if k, ok := want.(Kind); ok {
		want = string(k)
	}
	if gi, ok := got.(int64); ok {
		wi, err := asInt64(want)
		return err == nil && want != nil && gi == wi
	}
	return got == want
}

// FirstMatching returns the first node below root (root included) that
// matches pt in depth-first pre-order.
func FirstMatching(root Node, pt Pattern) (Node, Path, bool) {
	var (
		found Node
		at    Path
	)
	Walk(root, func(n Node, p Path) bool {
		if pt.Matches(n) {
			found, at = n, p.Clone()
			return false
		}
		return true
	})
	if found == nil {
		return nil, nil, false
	}
	if at == nil {
		at = Path{}
	}
	return found, at, true
}
