// Package schema implements the YAML-to-Composition loader described in
// spec.md §4.B (component B, "Schema loader").
//
// Grounded on original_source/yakut/cmd/orchestrate/_schema.py
// (load_composition, load_script, load_statement, load_external) and
// on spec.md §3/§4.B for the exact directive grammar. Decoding goes
// through gopkg.in/yaml.v3's yaml.Node tree rather than a plain
// map[string]any so that mapping keys are walked in DOCUMENT ORDER —
// required because Script statement order and env-entry merge order
// are both observable (spec.md §3 invariants, §8 property 2).
package schema

import (
	"fmt"

	"github.com/cyphal-tools/orchestrate/internal/envtable"
	"github.com/cyphal-tools/orchestrate/internal/orcherr"
	"github.com/cyphal-tools/orchestrate/internal/value"
	"gopkg.in/yaml.v3"
)

// StatementKind discriminates the Statement tagged union (spec.md §3).
type StatementKind int

const (
	KindShell StatementKind = iota
	KindNested
	KindJoin
)

// Statement is one element of a Script (spec.md §3).
type Statement struct {
	Kind   StatementKind
	Shell  string       // valid when Kind == KindShell
	Nested *Composition // valid when Kind == KindNested
}

// Script is an ordered sequence of Statements. A nil/empty Script is a no-op.
type Script []Statement

// External references another composition file by path (spec.md §3).
type External struct {
	File string
}

// Composition is the parsed unit described in spec.md §3.
type Composition struct {
	Env         *envtable.Table
	Ext         []External
	Predicate   Script
	Main        Script
	Fin         Script
	KillTimeout float64
}

// DefaultKillTimeout is used when the reserved "(kill_timeout)" entry is
// absent or unparsable (spec.md §3).
const DefaultKillTimeout = 20.0

// reservedKillTimeoutKey cannot collide with a real environment variable
// name because of its parentheses. It is stored in the env table like any
// other entry, so launched processes also receive it in their environment.
// Grounded on original_source/yakut/cmd/orchestrate/_schema.py's
// Composition.kill_timeout property, which reads the literal key
// "(kill_timeout)".
const reservedKillTimeoutKey = "(kill_timeout)"

// Load parses a YAML composition document against a caller-supplied
// environment snapshot (spec.md §4.B).
func Load(source []byte, callerEnv *envtable.Table) (*Composition, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(source, &doc); err != nil {
		return nil, orcherr.Schema("syntax error", err)
	}
	if len(doc.Content) == 0 {
		// Empty document: treat as an empty mapping (no env, no scripts).
		return loadComposition(&yaml.Node{Kind: yaml.MappingNode}, callerEnv)
	}
	return loadComposition(doc.Content[0], callerEnv)
}

func loadComposition(node *yaml.Node, callerEnv *envtable.Table) (*Composition, error) {
	if node.Kind != yaml.MappingNode {
		return nil, orcherr.Schemaf("", "the composition shall be a mapping, not %s", kindName(node))
	}

	localEnv := callerEnv.Copy()

	var extNode, predNode, mainNode, finNode *yaml.Node
	var unknown []string

	for i := 0; i+1 < len(node.Content); i += 2 {
		keyNode, valNode := node.Content[i], node.Content[i+1]
		key := keyNode.Value

		if !containsEquals(key) {
			if err := applyConfigEntry(localEnv, key, valNode); err != nil {
				return nil, err
			}
			continue
		}

		switch key {
		case "external=":
			extNode = valNode
		case "?=":
			predNode = valNode
		case "$=":
			mainNode = valNode
		case ".=":
			finNode = valNode
		default:
			unknown = append(unknown, key)
		}
	}

	if len(unknown) > 0 {
		return nil, orcherr.Schema("", unknownDirectiveError(unknown[0]))
	}

	ext, err := loadExternal(extNode)
	if err != nil {
		return nil, err
	}
	predicate, err := loadScript(predNode, localEnv)
	if err != nil {
		return nil, err
	}
	main, err := loadScript(mainNode, localEnv)
	if err != nil {
		return nil, err
	}
	fin, err := loadScript(finNode, localEnv)
	if err != nil {
		return nil, err
	}

	return &Composition{
		Env:         localEnv,
		Ext:         ext,
		Predicate:   predicate,
		Main:        main,
		Fin:         fin,
		KillTimeout: killTimeout(localEnv),
	}, nil
}

func killTimeout(env *envtable.Table) float64 {
	raw, ok := env.Get(reservedKillTimeoutKey)
	if !ok {
		return DefaultKillTimeout
	}
	var f float64
	if _, err := fmt.Sscanf(string(raw), "%g", &f); err != nil {
		return DefaultKillTimeout
	}
	if f <= 0 {
		return DefaultKillTimeout
	}
	return f
}

func loadScript(node *yaml.Node, env *envtable.Table) (Script, error) {
	if node == nil {
		return nil, nil
	}
	if node.Kind == yaml.SequenceNode {
		out := make(Script, 0, len(node.Content))
		for _, item := range node.Content {
			stmt, err := loadStatement(item, env)
			if err != nil {
				return nil, err
			}
			out = append(out, stmt)
		}
		return out, nil
	}
	stmt, err := loadStatement(node, env)
	if err != nil {
		return nil, err
	}
	return Script{stmt}, nil
}

func loadStatement(node *yaml.Node, env *envtable.Table) (Statement, error) {
	switch node.Kind {
	case yaml.ScalarNode:
		if node.Tag == "!!null" {
			return Statement{Kind: KindJoin}, nil
		}
		if node.Tag != "!!str" {
			return Statement{}, orcherr.Schemaf("", "statement shall be a string (shell command), "+
				"mapping (nested composition), or null (join), not %s", node.Tag)
		}
		var s string
		if err := node.Decode(&s); err != nil {
			return Statement{}, orcherr.Schema("", err)
		}
		return Statement{Kind: KindShell, Shell: s}, nil
	case yaml.MappingNode:
		comp, err := loadComposition(node, env)
		if err != nil {
			return Statement{}, err
		}
		return Statement{Kind: KindNested, Nested: comp}, nil
	default:
		return Statement{}, orcherr.Schemaf("", "statement shall be a string (shell command), "+
			"mapping (nested composition), or null (join), not %s", kindName(node))
	}
}

func loadExternal(node *yaml.Node) ([]External, error) {
	if node == nil {
		return nil, nil
	}
	toItem := func(n *yaml.Node) (External, error) {
		if n.Kind != yaml.ScalarNode {
			return External{}, orcherr.Schemaf("external=", "entries shall be strings, not %s", kindName(n))
		}
		var s string
		if err := n.Decode(&s); err != nil {
			return External{}, orcherr.Schema("external=", err)
		}
		return External{File: s}, nil
	}
	if node.Kind == yaml.SequenceNode {
		out := make([]External, 0, len(node.Content))
		for _, item := range node.Content {
			ext, err := toItem(item)
			if err != nil {
				return nil, err
			}
			out = append(out, ext)
		}
		return out, nil
	}
	ext, err := toItem(node)
	if err != nil {
		return nil, err
	}
	return []External{ext}, nil
}

// applyConfigEntry flattens one top-level configuration key in document
// order (a nested mapping recurses depth-first, joining keys with
// value.NameSep, before the next sibling key in the enclosing mapping
// is processed) and applies each resulting leaf to env directly off the
// yaml.Node tree (spec.md §3 Flatten, §4.A). This walks node.Content
// pairs rather than collecting into a map[string]any precisely because
// Go map iteration order is unspecified and env-entry merge order is
// observable (spec.md §8 property 2) — the same reason Load decodes
// into yaml.Node instead of a plain map in the first place.
func applyConfigEntry(env *envtable.Table, name string, node *yaml.Node) error {
	if node.Kind == yaml.MappingNode {
		for i := 0; i+1 < len(node.Content); i += 2 {
			childKey, childVal := node.Content[i], node.Content[i+1]
			if err := applyConfigEntry(env, name+value.NameSep+childKey.Value, childVal); err != nil {
				return err
			}
		}
		return nil
	}
	raw, err := decodeAny(node)
	if err != nil {
		return orcherr.Schema(name, err)
	}
	if err := envtable.ApplyEntry(env, name, raw); err != nil {
		return orcherr.Schemaf(name, "environment variable error: %v", err)
	}
	return nil
}

// decodeAny decodes a scalar/sequence/mapping YAML node into its native
// Go representation (string, bool, int, float64, []any, map[string]any,
// or nil), for use as configuration-entry values (spec.md §3 Value, §4.A).
func decodeAny(node *yaml.Node) (any, error) {
	switch node.Kind {
	case yaml.ScalarNode:
		if node.Tag == "!!null" {
			return nil, nil
		}
		var v any
		if err := node.Decode(&v); err != nil {
			return nil, err
		}
		return v, nil
	case yaml.SequenceNode:
		out := make([]any, len(node.Content))
		for i, item := range node.Content {
			v, err := decodeAny(item)
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
		return out, nil
	case yaml.MappingNode:
		out := make(map[string]any, len(node.Content)/2)
		for i := 0; i+1 < len(node.Content); i += 2 {
			v, err := decodeAny(node.Content[i+1])
			if err != nil {
				return nil, err
			}
			out[node.Content[i].Value] = v
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported YAML node kind %v", node.Kind)
	}
}

func containsEquals(s string) bool {
	for _, r := range s {
		if r == '=' {
			return true
		}
	}
	return false
}

func kindName(n *yaml.Node) string {
	switch n.Kind {
	case yaml.ScalarNode:
		return "a scalar"
	case yaml.SequenceNode:
		return "a sequence"
	case yaml.MappingNode:
		return "a mapping"
	default:
		return "an unknown node"
	}
}
