package services

import (
	"encoding/json"
	"reflect"
	"testing"
)

func TestExtractJSONObjectWrappingsAgree(t *testing.T) {
	plain := `{"tool_name": "list_projects", "arguments": {"page_size": 5}}`
	inputs := map[string]string{
		"plain":          plain,
		"json fence":     "```json\n" + plain + "\n```",
		"bare fence":     "```\n" + plain + "\n```",
		"trailing prose": plain + "\n\nI picked list_projects because you asked for projects.",
		"leading prose":  "Here is the selection:\n" + plain,
		"fence and text": "Sure!\n```json\n" + plain + "\n```\nLet me know if you need more.",
		"brace in prose": "Using the {list} rule:\n```json\n" + plain + "\n```",
		"brace after":    "```json\n" + plain + "\n```\nThe {page_size} is optional.",
	}

	var want map[string]any
	if err := json.Unmarshal([]byte(plain), &want); err != nil {
		t.Fatalf("bad fixture: %v", err)
	}

	for name, input := range inputs {
		t.Run(name, func(t *testing.T) {
			obj, _, err := ExtractJSONObject(input)
			if err != nil {
				t.Fatalf("ExtractJSONObject error: %v", err)
			}
			var got map[string]any
			if err := json.Unmarshal([]byte(obj), &got); err != nil {
				t.Fatalf("extracted text is not JSON: %q: %v", obj, err)
			}
			if !reflect.DeepEqual(got, want) {
				t.Fatalf("object mismatch: got %v want %v", got, want)
			}
		})
	}
}

func TestExtractJSONObjectReturnsTrailing(t *testing.T) {
	_, trailing, err := ExtractJSONObject(`{"a": 1} and some commentary`)
	if err != nil {
		t.Fatalf("ExtractJSONObject error: %v", err)
	}
	if trailing != "and some commentary" {
		t.Fatalf("trailing mismatch: %q", trailing)
	}
}

func TestExtractJSONObjectIgnoresBracesInStrings(t *testing.T) {
	input := `{"tool_name": "create_project", "arguments": {"name": "weird } name {", "note": "say \"}\" twice"}} trailing }`
	obj, _, err := ExtractJSONObject(input)
	if err != nil {
		t.Fatalf("ExtractJSONObject error: %v", err)
	}
	var got struct {
		ToolName  string            `json:"tool_name"`
		Arguments map[string]string `json:"arguments"`
	}
	if err := json.Unmarshal([]byte(obj), &got); err != nil {
		t.Fatalf("extracted text is not JSON: %q: %v", obj, err)
	}
	if got.Arguments["name"] != "weird } name {" {
		t.Fatalf("name mismatch: %q", got.Arguments["name"])
	}
	if got.Arguments["note"] != `say "}" twice` {
		t.Fatalf("note mismatch: %q", got.Arguments["note"])
	}
}

func TestExtractJSONObjectNestedObjects(t *testing.T) {
	obj, _, err := ExtractJSONObject(`{"a": {"b": {"c": {}}}, "d": [1, {"e": 2}]}`)
	if err != nil {
		t.Fatalf("ExtractJSONObject error: %v", err)
	}
	if !json.Valid([]byte(obj)) {
		t.Fatalf("invalid object: %q", obj)
	}
}

func TestExtractJSONObjectFailures(t *testing.T) {
	for _, input := range []string{
		"",
		"I could not find a tool for that.",
		`{"tool_name": "list_projects"`,
		"```json\n```",
	} {
		if _, _, err := ExtractJSONObject(input); err == nil {
			t.Fatalf("expected error for %q", input)
		}
	}
}

func TestExtractJSONObjectFallsBackWhenFenceHasNoObject(t *testing.T) {
	obj, _, err := ExtractJSONObject("Run `list_projects` with ```json``` args {\"page_size\": 5}")
	if err != nil {
		t.Fatalf("ExtractJSONObject error: %v", err)
	}
	if obj != `{"page_size": 5}` {
		t.Fatalf("object mismatch: %q", obj)
	}
}
