// Package parser implements the YAML graph surface: a document rooted
// at a "dagrs:" mapping whose children are task ids,
// each carrying a display name, an optional predecessor list, and
// either an inline shell command or a reference to a caller-supplied
// Action. It is grounded on the original engine's
// src/parser/yaml_parser.rs, adapted from yaml_rust's untyped Yaml
// value tree to gopkg.in/yaml.v3's Node tree so parse errors can carry
// real line numbers instead of being reported against the whole file.
package parser

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/dagrs-go/dagrs/pkg/dagrs"
	"github.com/dagrs-go/dagrs/pkg/dagrs/registry"
)

// rootKey is the single mapping key a document must carry at its root,
// matching the original's yaml_tasks[0]["dagrs"] lookup.
const rootKey = "dagrs"

// runSpec is the "run: {type, script}" variant of a task body. type "sh"
// (or "shell"/"command") builds a dagrs.CommandAction from script; any
// other type must be resolved through specificActions instead, exactly
// like a task with no run/cmd field at all.
type runSpec struct {
	Type   string `yaml:"type"`
	Script string `yaml:"script"`
}

type taskSpec struct {
	Name  string   `yaml:"name"`
	After []string `yaml:"after"`
	Cmd   string   `yaml:"cmd"`
	Run   *runSpec `yaml:"run"`
}

// Parse reads the YAML document at filePath and builds a *dagrs.Graph
// and a fresh *dagrs.Env from it. specificActions resolves concrete
// Action values by task id for tasks whose behavior is not encoded
// inline as "cmd" or "run" — the same contract original_source's
// Parser::parse_tasks exposes via its specific_actions parameter. A nil
// registry is treated as empty.
func Parse(filePath string, specificActions *registry.Registry[string, dagrs.Action]) (*dagrs.Graph, *dagrs.Env, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, nil, fmt.Errorf("parser: read %s: %w", filePath, err)
	}

	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, nil, &dagrs.ParseError{Reason: fmt.Sprintf("invalid yaml: %s", err)}
	}
	if len(doc.Content) == 0 {
		return nil, nil, &dagrs.ParseError{Reason: fmt.Sprintf("empty document: %s", filePath)}
	}

	root := doc.Content[0]
	tasksNode, err := findKey(root, rootKey)
	if err != nil {
		return nil, nil, err
	}
	if tasksNode.Kind != yaml.MappingNode {
		return nil, nil, &dagrs.ParseError{Line: tasksNode.Line, Reason: "\"dagrs\" must be a mapping of task id to task body"}
	}

	ids, specs, err := decodeTasks(tasksNode)
	if err != nil {
		return nil, nil, err
	}

	nodes := make(map[string]*dagrs.Node, len(ids))
	for _, id := range ids {
		spec := specs[id]
		action, actionErr := resolveAction(id, spec, specificActions)
		if actionErr != nil {
			return nil, nil, actionErr
		}
		nodes[id] = dagrs.NewNode(spec.Name, action)
	}

	for _, id := range ids {
		spec := specs[id]
		preds := make([]*dagrs.Node, 0, len(spec.After))
		for _, predID := range spec.After {
			predNode, ok := nodes[predID]
			if !ok {
				return nil, nil, &dagrs.ParseError{Reason: fmt.Sprintf("task %q declares unknown predecessor %q", id, predID)}
			}
			preds = append(preds, predNode)
		}
		if len(preds) > 0 {
			nodes[id].SetPredecessors(preds...)
		}
	}

	ordered := make([]*dagrs.Node, 0, len(ids))
	for _, id := range ids {
		ordered = append(ordered, nodes[id])
	}
	graph, err := dagrs.WithTasks(ordered...)
	if err != nil {
		return nil, nil, err
	}

	return graph, dagrs.NewEnv(), nil
}

func resolveAction(id string, spec taskSpec, specificActions *registry.Registry[string, dagrs.Action]) (dagrs.Action, error) {
	if specificActions != nil {
		if action, ok := specificActions.Get(id); ok {
			return action, nil
		}
	}
	if spec.Cmd != "" {
		return dagrs.NewCommandAction(spec.Cmd), nil
	}
	if spec.Run != nil {
		switch spec.Run.Type {
		case "sh", "shell", "command":
			return dagrs.NewCommandAction(spec.Run.Script), nil
		default:
			return nil, &dagrs.ParseError{Reason: fmt.Sprintf("task %q: no specific action registered for run type %q", id, spec.Run.Type)}
		}
	}
	return nil, &dagrs.ParseError{Reason: fmt.Sprintf("task %q: requires a \"cmd\", a \"run\", or an entry in specificActions", id)}
}

// decodeTasks walks the dagrs: mapping's key/value pairs in document
// order, which yaml.v3's Content slice preserves (alternating key node,
// value node), so "after" references to tasks declared later in the
// document still resolve correctly once every task has been decoded.
func decodeTasks(tasksNode *yaml.Node) ([]string, map[string]taskSpec, error) {
	ids := make([]string, 0, len(tasksNode.Content)/2)
	specs := make(map[string]taskSpec, len(tasksNode.Content)/2)

	for i := 0; i+1 < len(tasksNode.Content); i += 2 {
		keyNode := tasksNode.Content[i]
		valNode := tasksNode.Content[i+1]

		id := keyNode.Value
		if id == "" {
			return nil, nil, &dagrs.ParseError{Line: keyNode.Line, Reason: "task id must not be empty"}
		}
		if _, dup := specs[id]; dup {
			return nil, nil, &dagrs.ParseError{Line: keyNode.Line, Reason: fmt.Sprintf("duplicate task id %q", id)}
		}

		var spec taskSpec
		if err := valNode.Decode(&spec); err != nil {
			return nil, nil, &dagrs.ParseError{Line: valNode.Line, Reason: err.Error()}
		}
		if spec.Name == "" {
			return nil, nil, &dagrs.ParseError{Line: valNode.Line, Reason: fmt.Sprintf("task %q missing required \"name\"", id)}
		}

		ids = append(ids, id)
		specs[id] = spec
	}

	return ids, specs, nil
}

func findKey(mapping *yaml.Node, key string) (*yaml.Node, error) {
	if mapping.Kind != yaml.MappingNode {
		return nil, &dagrs.ParseError{Line: mapping.Line, Reason: "document root must be a mapping"}
	}
	for i := 0; i+1 < len(mapping.Content); i += 2 {
		if mapping.Content[i].Value == key {
			return mapping.Content[i+1], nil
		}
	}
	return nil, &dagrs.ParseError{Line: mapping.Line, Reason: fmt.Sprintf("document must start with a %q key", key)}
}
