package services

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

const fallbackListLimit = 10

// fallbackStrategy renders a tool result without a completion call.
// Strategies are pure so the same input always yields the same text.
type fallbackStrategy func(result any) string

var fallbackStrategies = map[string]fallbackStrategy{
	"create_project":      formatCreated("project"),
	"list_projects":       formatList("project", "projects", true),
	"get_project":         formatProjectDetails,
	"update_project":      formatProjectUpdate,
	"create_application":  formatCreated("application"),
	"list_applications":   formatList("application", "applications", false),
	"get_application":     formatDetails("application", "Application"),
	"create_profile":      formatCreated("profile"),
	"list_profiles":       formatList("profile", "profiles", false),
	"get_profile":         formatDetails("profile", "Profile"),
	"list_business_units": formatList("business unit", "business_units", false),
	"get_business_unit":   formatDetails("business_unit", "Business unit"),
}

// FallbackFormat is the deterministic formatter used when the completion
// path fails. Unknown tools get the generic key/value rendering.
func FallbackFormat(tool string, result any) string {
	if strategy, ok := fallbackStrategies[tool]; ok {
		return strategy(result)
	}
	return formatGeneric(result)
}

func formatCreated(kind string) fallbackStrategy {
	return func(result any) string {
		r := asObject(result)
		if !truthy(r["success"]) {
			return fmt.Sprintf("Failed to create %s: %s", kind, errorText(r))
		}
		item := asObject(r[kind])
		out := fmt.Sprintf("Successfully created %s '%s' (ID: %s)", kind, fieldOr(item, "name"), fieldOr(item, "id"))
		if url := field(item, "url"); url != "" {
			out += ". You can view it at: " + url
		}
		return out
	}
}

// formatList renders "Found N x(s):" with the first ten items.
func formatList(singular, key string, withStatus bool) fallbackStrategy {
	plural := strings.ReplaceAll(key, "_", " ")
	return func(result any) string {
		items := extractItems(result, ResourceKind(key))
		if len(items) == 0 {
			return fmt.Sprintf("No %s found.", plural)
		}

		var b strings.Builder
		fmt.Fprintf(&b, "Found %d %s(s):\n", len(items), singular)
		for i, it := range items {
			if i == fallbackListLimit {
				break
			}
			item := asObject(it)
			status := ""
			if withStatus {
				if s := field(item, "status"); s != "" {
					status = " - " + s
				}
			}
			fmt.Fprintf(&b, "%d. %s (ID: %s)%s\n", i+1, fieldOr(item, "name"), fieldOr(item, "id"), status)
		}
		if len(items) > fallbackListLimit {
			fmt.Fprintf(&b, "\n... and %d more %s.", len(items)-fallbackListLimit, plural)
		}
		return strings.TrimSpace(b.String())
	}
}

func formatProjectDetails(result any) string {
	r := asObject(result)
	project := r
	if _, hasID := r["id"]; !hasID || r["name"] == nil {
		project = asObject(r["project"])
	}
	if field(project, "id") == "" {
		return "Project not found."
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Project: %s (ID: %s)", fieldOr(project, "name"), field(project, "id"))
	if url := field(project, "url"); url != "" {
		b.WriteString("\nURL: " + url)
	}
	if desc := field(project, "description"); desc != "" {
		b.WriteString("\nDescription: " + desc)
	}
	if created := firstField(project, "created", "created_date"); created != "" {
		b.WriteString("\nCreated: " + created)
	}
	if updated := firstField(project, "updated", "modified_date"); updated != "" {
		b.WriteString("\nUpdated: " + updated)
	}
	switch p := project["profile"].(type) {
	case map[string]any:
		if name := field(p, "name"); name != "" {
			b.WriteString("\nProfile: " + name)
		}
	case nil:
	default:
		b.WriteString("\nProfile: " + formatScalar(p))
	}
	return b.String()
}

func formatProjectUpdate(result any) string {
	r := asObject(result)
	if !truthy(r["success"]) {
		return "Failed to update project: " + errorText(r)
	}
	return fmt.Sprintf("Successfully updated project '%s'", fieldOr(asObject(r["project"]), "name"))
}

func formatDetails(key, label string) fallbackStrategy {
	return func(result any) string {
		r := asObject(result)
		item := asObject(r[key])
		if len(item) == 0 && r["id"] != nil {
			item = r
		}
		if len(item) == 0 {
			return fmt.Sprintf("%s not found.", label)
		}
		return fmt.Sprintf("%s: %s (ID: %s)", label, fieldOr(item, "name"), fieldOr(item, "id"))
	}
}

// FallbackFormatMerged renders an augmented result as one section per
// resource kind.
func FallbackFormatMerged(result any) string {
	r := asObject(result)
	apps := extractItems(r, KindApplications)
	projects := extractItems(r, KindProjects)

	sections := []string{
		"Applications:\n" + formatList("application", "applications", false)(map[string]any{"applications": apps}),
		"Projects:\n" + formatList("project", "projects", true)(map[string]any{"projects": projects}),
	}
	return strings.Join(sections, "\n\n")
}

// formatGeneric special-cases a success/error envelope and otherwise
// prints sorted key/value pairs, indenting nested values as JSON.
func formatGeneric(result any) string {
	r, ok := result.(map[string]any)
	if !ok {
		if s, isString := result.(string); isString {
			return s
		}
		return prettyJSON(result)
	}

	if success, has := r["success"]; has {
		if !truthy(success) {
			return "Operation failed: " + errorText(r)
		}
		message := field(r, "message")
		if message == "" {
			message = "Operation completed successfully"
		}
		for _, key := range []string{"project", "application", "profile", "result"} {
			v, present := r[key]
			if !present || !truthy(v) {
				continue
			}
			switch v.(type) {
			case map[string]any, []any:
				message += fmt.Sprintf("\n\n%s: %s", titleCase(key), prettyJSON(v))
			default:
				message += fmt.Sprintf("\n\n%s: %s", titleCase(key), formatScalar(v))
			}
		}
		return message
	}

	if raw, only := r["raw"].(string); only && len(r) == 1 {
		return raw
	}

	keys := make([]string, 0, len(r))
	for k := range r {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		switch v := r[k].(type) {
		case map[string]any, []any:
			parts = append(parts, fmt.Sprintf("%s:\n%s", k, prettyJSON(v)))
		default:
			parts = append(parts, fmt.Sprintf("%s: %s", k, formatScalar(v)))
		}
	}
	if len(parts) == 0 {
		return prettyJSON(r)
	}
	return strings.Join(parts, "\n")
}

func asObject(v any) map[string]any {
	if m, ok := v.(map[string]any); ok {
		return m
	}
	return map[string]any{}
}

func field(m map[string]any, key string) string {
	v, ok := m[key]
	if !ok || v == nil {
		return ""
	}
	return formatScalar(v)
}

func fieldOr(m map[string]any, key string) string {
	if s := field(m, key); s != "" {
		return s
	}
	return "Unknown"
}

func firstField(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if s := field(m, k); s != "" {
			return s
		}
	}
	return ""
}

func errorText(m map[string]any) string {
	if s := field(m, "error"); s != "" {
		return s
	}
	return "Unknown error"
}

func formatScalar(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	case nil:
		return "null"
	case map[string]any, []any:
		return prettyJSON(t)
	default:
		return fmt.Sprint(t)
	}
}

func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != ""
	case float64:
		return t != 0
	case map[string]any:
		return len(t) > 0
	case []any:
		return len(t) > 0
	default:
		return true
	}
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func prettyJSON(v any) string {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(out)
}
