package pipeline

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadQueueInterviewerFixture_SeedsAnswersInFileOrder(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "fixture.yaml")
	contents := `
name: human-gate-happy-path
answers:
  - value: "Y"
    selected_option: "Y"
  - value: "N"
  - value: TIMEOUT
`
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	q, err := LoadQueueInterviewerFixture(path)
	if err != nil {
		t.Fatalf("LoadQueueInterviewerFixture: %v", err)
	}

	first := q.Ask(&Question{})
	if first.Value != "Y" || first.SelectedOption == nil || first.SelectedOption.Key != "Y" {
		t.Errorf("first answer = %+v, want Y with selected option", first)
	}

	second := q.Ask(&Question{})
	if second.Value != "N" {
		t.Errorf("second answer = %+v, want N", second)
	}

	third := q.Ask(&Question{})
	if !third.IsTimeout() {
		t.Errorf("third answer = %+v, want TIMEOUT sentinel", third)
	}
}

func TestLoadQueueInterviewerFixture_MissingFileErrors(t *testing.T) {
	if _, err := LoadQueueInterviewerFixture(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected an error for a missing fixture file")
	}
}
