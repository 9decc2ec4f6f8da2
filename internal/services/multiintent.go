package services

import (
	"strings"
	"unicode"
)

type ResourceKind string

const (
	KindApplications ResourceKind = "applications"
	KindProjects     ResourceKind = "projects"
)

// Keyword vocabularies, matched as whole words.
var kindVocabulary = map[ResourceKind][]string{
	KindApplications: {"application", "applications", "app", "apps"},
	KindProjects:     {"project", "projects"},
}

var kindListTool = map[ResourceKind]string{
	KindApplications: "list_applications",
	KindProjects:     "list_projects",
}

// ResourceKinds is the set of kinds a query mentions.
type ResourceKinds map[ResourceKind]bool

// ClassifyResourceKinds is the single keyword heuristic deciding which
// resource kinds a query talks about.
func ClassifyResourceKinds(query string) ResourceKinds {
	words := strings.FieldsFunc(strings.ToLower(query), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	seen := make(map[string]bool, len(words))
	for _, w := range words {
		seen[w] = true
	}

	kinds := ResourceKinds{}
	for kind, vocab := range kindVocabulary {
		for _, term := range vocab {
			if seen[term] {
				kinds[kind] = true
				break
			}
		}
	}
	return kinds
}

// Augmentation describes the secondary list call for a compound query.
type Augmentation struct {
	PrimaryKind   ResourceKind
	SecondaryKind ResourceKind
	SecondaryTool string
}

// AugmentationFor reports the secondary list tool to call when the query
// mentions both kinds and the resolved tool lists one of them.
func AugmentationFor(tool string, kinds ResourceKinds) (Augmentation, bool) {
	if !kinds[KindApplications] || !kinds[KindProjects] {
		return Augmentation{}, false
	}
	switch tool {
	case kindListTool[KindApplications]:
		return Augmentation{PrimaryKind: KindApplications, SecondaryKind: KindProjects, SecondaryTool: kindListTool[KindProjects]}, true
	case kindListTool[KindProjects]:
		return Augmentation{PrimaryKind: KindProjects, SecondaryKind: KindApplications, SecondaryTool: kindListTool[KindApplications]}, true
	}
	return Augmentation{}, false
}

// MergeResults combines both list results under their canonical kind keys.
func MergeResults(aug Augmentation, primary, secondary any) map[string]any {
	return map[string]any{
		string(aug.PrimaryKind):   extractItems(primary, aug.PrimaryKind),
		string(aug.SecondaryKind): extractItems(secondary, aug.SecondaryKind),
	}
}

// extractItems finds the item list in a tool result, accepting the kind
// name, "results", or a bare array.
func extractItems(result any, kind ResourceKind) []any {
	switch v := result.(type) {
	case []any:
		return v
	case map[string]any:
		for _, key := range []string{string(kind), "results"} {
			if items, ok := v[key].([]any); ok {
				return items
			}
		}
		return []any{}
	case nil:
		return []any{}
	default:
		return []any{v}
	}
}
