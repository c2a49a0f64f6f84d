// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package access

import "github.com/holomush/dimensiongate/internal/dimension"

// Permission nodes. Nodes are dot-separated so grant patterns can use
// segment wildcards ("dimensiongate.access.*").
const (
	NodePrefix = "dimensiongate"
	NodeAdmin  = NodePrefix + ".admin"
	NodeBypass = NodePrefix + ".bypass"
)

// DimensionNode returns the access node for d, e.g. "dimensiongate.access.nether".
func DimensionNode(d dimension.Dimension) string {
	return NodePrefix + ".access." + d.String()
}

// CommandNode returns the node for a command, e.g. "dimensiongate.command.open".
func CommandNode(kind CommandKind) string {
	return NodePrefix + ".command." + kind.String()
}

// Permission groups define reusable sets of nodes.
// Roles compose these groups rather than inheriting.

var explorerNodes = []string{
	NodePrefix + ".access.*",
}

var moderatorNodes = []string{
	NodePrefix + ".command.status",
	NodePrefix + ".command.gui",
	NodePrefix + ".command.schedule",
}

var keeperNodes = []string{
	NodePrefix + ".command.open",
	NodePrefix + ".command.close",
}

var adminNodes = []string{
	NodeAdmin,
	NodeBypass,
}

// DefaultRoles returns the default role definitions.
// Roles compose permission groups explicitly (no inheritance).
func DefaultRoles() map[string][]string {
	return map[string][]string{
		"player":    {},
		"explorer":  compose(explorerNodes),
		"moderator": compose(explorerNodes, moderatorNodes),
		"keeper":    compose(explorerNodes, moderatorNodes, keeperNodes),
		"admin":     compose(explorerNodes, moderatorNodes, keeperNodes, adminNodes),
	}
}

// compose merges multiple node slices into one.
func compose(groups ...[]string) []string {
	total := 0
	for _, g := range groups {
		total += len(g)
	}
	result := make([]string, 0, total)
	for _, g := range groups {
		result = append(result, g...)
	}
	return result
}
