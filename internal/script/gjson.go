package script

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/kimalale/tactical-workflow-manager/pkg/api"
)

// GJSONEnv evaluates gjson path expressions over a node's input. It has no
// access to capabilities and ignores loop state
type GJSONEnv struct{}

const gjsonRootPrefix = "$."

var ErrGJSONPath = errors.New("invalid gjson path")

var _ Environment = (*GJSONEnv)(nil)

// NewGJSONEnv creates a gjson expression environment
func NewGJSONEnv() *GJSONEnv {
	return &GJSONEnv{}
}

// Validate rejects paths with unbalanced brackets or braces, which gjson
// would otherwise silently treat as non-matching
func (e *GJSONEnv) Validate(script string) error {
	depth := map[rune]int{}
	pairs := map[rune]rune{']': '[', '}': '{', ')': '('}
	for _, r := range script {
		switch r {
		case '[', '{', '(':
			depth[r]++
		case ']', '}', ')':
			open := pairs[r]
			depth[open]--
			if depth[open] < 0 {
				return fmt.Errorf("%w: %q", ErrGJSONPath, script)
			}
		}
	}
	for _, d := range depth {
		if d != 0 {
			return fmt.Errorf("%w: %q", ErrGJSONPath, script)
		}
	}
	return nil
}

// Execute returns the value matched by the path, or nil if nothing matches
func (e *GJSONEnv) Execute(
	_ context.Context, node *api.Node, input, loop any, _ *Capabilities,
) (any, any, error) {
	path := normalizePath(node.Script)
	if err := e.Validate(path); err != nil {
		return nil, loop, err
	}

	data, err := json.Marshal(input)
	if err != nil {
		return nil, loop, err
	}

	if path == "" || path == "$" {
		return gjson.ParseBytes(data).Value(), loop, nil
	}
	res := gjson.GetBytes(data, path)
	if !res.Exists() {
		return nil, loop, nil
	}
	return res.Value(), loop, nil
}

// normalizePath accepts an optional JSONPath-style "$." root prefix
func normalizePath(script string) string {
	path := strings.TrimSpace(script)
	return strings.TrimPrefix(path, gjsonRootPrefix)
}
