package pipeline

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// fixtureAnswer is the on-disk shape of one recorded answer in an interview
// fixture file.
type fixtureAnswer struct {
	Value          string `yaml:"value"`
	Text           string `yaml:"text,omitempty"`
	SelectedOption string `yaml:"selected_option,omitempty"`
}

// InterviewFixture is the YAML document shape loaded by
// LoadQueueInterviewerFixture: a named, ordered list of answers for a
// scripted or replayed interview.
type InterviewFixture struct {
	Name    string          `yaml:"name"`
	Answers []fixtureAnswer `yaml:"answers"`
}

// LoadQueueInterviewerFixture reads a YAML fixture file and builds a
// QueueInterviewer pre-seeded with its answers in file order, for
// scripted or replayed human-gate interactions in tests and demos.
func LoadQueueInterviewerFixture(path string) (*QueueInterviewer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load interview fixture: %w", err)
	}

	var fx InterviewFixture
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&fx); err != nil {
		return nil, fmt.Errorf("parse interview fixture %s: %w", path, err)
	}

	answers := make([]*Answer, len(fx.Answers))
	for i, a := range fx.Answers {
		answer := &Answer{Value: fixtureValue(a.Value), Text: a.Text}
		if a.SelectedOption != "" {
			answer.SelectedOption = &Option{Key: a.SelectedOption, Label: a.SelectedOption}
		}
		answers[i] = answer
	}
	return NewQueueInterviewer(answers...), nil
}

// fixtureValue recognizes the reserved sentinel spellings so a fixture's
// "TIMEOUT"/"SKIPPED" entries round-trip as AnswerValue, not plain strings,
// and compare equal through Answer.IsTimeout/IsSkipped.
func fixtureValue(raw string) interface{} {
	switch AnswerValue(raw) {
	case AnswerTimeout:
		return AnswerTimeout
	case AnswerSkipped:
		return AnswerSkipped
	default:
		return raw
	}
}
