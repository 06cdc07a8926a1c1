package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fatih/color"

	"github.com/ameotech/triage/internal/dialogue"
	"github.com/ameotech/triage/internal/domain"
)

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	color.NoColor = true

	root := newRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestRunCommand_FromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "answers.json")
	answers := `{"project_types":["mvp"],"urgency":"asap","company_stage":"seed","team":"none","budget":"50k_150k"}`
	if err := os.WriteFile(path, []byte(answers), 0o600); err != nil {
		t.Fatalf("write answers: %v", err)
	}

	out, err := execute(t, "", "run", "build-estimator", "-f", path)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	var res map[string]any
	if err := json.Unmarshal([]byte(out), &res); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, out)
	}
	for _, key := range []string{"model", "budget", "timeline", "scores", "plan"} {
		if _, ok := res[key]; !ok {
			t.Errorf("result missing %q", key)
		}
	}
}

func TestRunCommand_Summary(t *testing.T) {
	out, err := execute(t, `{}`, "run", "audit", "--summary")
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if !strings.HasPrefix(out, "Readiness Audit\n") {
		t.Errorf("summary should start with the tool title, got:\n%s", out)
	}
	for _, dim := range []string{"product", "engineering", "data_ai"} {
		if !strings.Contains(out, dim) {
			t.Errorf("summary missing dimension %q:\n%s", dim, out)
		}
	}
}

func TestRunCommand_Errors(t *testing.T) {
	tests := []struct {
		name  string
		stdin string
		args  []string
		want  string
	}{
		{"unknown tool", `{}`, []string{"run", "horoscope"}, "unknown lab tool"},
		{"not an object", `[1,2]`, []string{"run", "audit"}, "JSON object"},
		{"missing file", "", []string{"run", "audit", "-f", "/nonexistent/answers.json"}, "read answers"},
		{"no tool", "", []string{"run"}, "accepts 1 arg"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(t, tt.stdin, tt.args...)
			if err == nil {
				t.Fatal("expected an error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %q, want it to contain %q", err, tt.want)
			}
		})
	}
}

func TestNextCommand(t *testing.T) {
	result := `{"scores":{"product":10,"engineering":20,"data_ai":15}}`

	out, err := execute(t, result, "next", "audit", "--contact", "sales@example.com")
	if err != nil {
		t.Fatalf("next failed: %v", err)
	}

	var res dialogue.LabNextResult
	if err := json.Unmarshal([]byte(out), &res); err != nil {
		t.Fatalf("output is not a LabNextResult: %v\n%s", err, out)
	}
	if len(res.NextActions) != 2 {
		t.Fatalf("expected 2 next actions, got %d", len(res.NextActions))
	}
	if res.NextActions[0].Action != domain.ActionEscalateHuman {
		t.Errorf("first action = %s, want %s", res.NextActions[0].Action, domain.ActionEscalateHuman)
	}
	esc, ok := res.NextActions[0].Payload.(domain.EscalationPayload)
	if !ok {
		t.Fatalf("payload = %T, want EscalationPayload", res.NextActions[0].Payload)
	}
	if esc.Link != "mailto:sales@example.com" {
		t.Errorf("link = %q", esc.Link)
	}
	if res.NextActions[1].Action != domain.ActionOpenLabTool {
		t.Errorf("second action = %s, want %s", res.NextActions[1].Action, domain.ActionOpenLabTool)
	}
}

func TestNextCommand_SkipsToolsAlreadyRun(t *testing.T) {
	result := `{"scores":{"product":80,"engineering":85,"data_ai":90}}`

	out, err := execute(t, result, "next", "audit", "--done", "build-estimator")
	if err != nil {
		t.Fatalf("next failed: %v", err)
	}

	var res dialogue.LabNextResult
	if err := json.Unmarshal([]byte(out), &res); err != nil {
		t.Fatalf("output is not a LabNextResult: %v", err)
	}
	if len(res.NextActions) != 0 {
		t.Errorf("expected no next actions, got %d", len(res.NextActions))
	}
	if res.BotReply == "" {
		t.Error("expected a closing reply")
	}
}

func TestNextCommand_BadDoneTool(t *testing.T) {
	_, err := execute(t, `{}`, "next", "audit", "--done", "tarot")
	if err == nil || !strings.Contains(err.Error(), "unknown lab tool") {
		t.Fatalf("expected unknown lab tool error, got %v", err)
	}
}

func TestClassifyCommand(t *testing.T) {
	out, err := execute(t, "", "classify", "Can", "I", "talk", "to", "a", "human", "please?")
	if err != nil {
		t.Fatalf("classify failed: %v", err)
	}
	if !strings.HasPrefix(out, string(domain.IntentRequestHuman)) {
		t.Errorf("expected %s, got:\n%s", domain.IntentRequestHuman, out)
	}
	if !strings.Contains(out, "confidence:") {
		t.Errorf("missing confidence line:\n%s", out)
	}
}

func TestClassifyCommand_BadCatalog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	if err := os.WriteFile(path, []byte("intents: [not, valid"), 0o600); err != nil {
		t.Fatalf("write rules: %v", err)
	}
	if _, err := execute(t, "", "classify", "--rules", path, "hello"); err == nil {
		t.Fatal("expected an error for a broken catalog")
	}
}
