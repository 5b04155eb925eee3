package pipeline

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
)

// QuestionType identifies the shape of a Question's expected answer.
type QuestionType int

const (
	MultipleChoice QuestionType = iota
	YesNo
	Confirmation
	Freeform
)

// Option is a single selectable choice in a MultipleChoice Question.
type Option struct {
	Key   string
	Label string
}

// Question is posed to a human (or automated stand-in) by a suspended
// stage.
type Question struct {
	Text           string
	Type           QuestionType
	Options        []Option
	Stage          string
	DefaultAnswer  *Answer
	TimeoutSeconds float64
}

// AnswerValue is a reserved sentinel an Answer.Value may carry instead of a
// concrete selection.
type AnswerValue string

const (
	AnswerTimeout AnswerValue = "TIMEOUT"
	AnswerSkipped AnswerValue = "SKIPPED"
)

// Answer is a response to a Question.
type Answer struct {
	Value          interface{}
	Text           string
	SelectedOption *Option
}

// IsTimeout reports whether this Answer is the reserved TIMEOUT sentinel.
func (a *Answer) IsTimeout() bool {
	return a != nil && a.Value == AnswerTimeout
}

// IsSkipped reports whether this Answer is the reserved SKIPPED sentinel.
func (a *Answer) IsSkipped() bool {
	return a != nil && a.Value == AnswerSkipped
}

// Interviewer is the abstraction a human-gate stage suspends on. ask may
// suspend arbitrarily but must eventually resolve or produce TIMEOUT.
// askMultiple is sequential, never parallelized. inform is a side channel
// with no response expected.
type Interviewer interface {
	Ask(q *Question) *Answer
	AskMultiple(qs []*Question) []*Answer
	Inform(message, stage string)
}

// askMultipleSequential is the default, correct implementation of
// AskMultiple shared by every built-in Interviewer: answer each question in
// order via Ask.
func askMultipleSequential(i Interviewer, qs []*Question) []*Answer {
	out := make([]*Answer, len(qs))
	for idx, q := range qs {
		out[idx] = i.Ask(q)
	}
	return out
}

// applyTimeoutDefault resolves a question's default-answer policy: on
// timeout, return the question's DefaultAnswer if present, else the
// TIMEOUT sentinel.
func applyTimeoutDefault(q *Question) *Answer {
	if q.DefaultAnswer != nil {
		return q.DefaultAnswer
	}
	return &Answer{Value: AnswerTimeout}
}

// AutoApproveInterviewer never blocks: it returns DefaultAnswer if present,
// else the first option for MultipleChoice, YES for YesNo/Confirmation, or
// "" for Freeform.
type AutoApproveInterviewer struct{}

func (a *AutoApproveInterviewer) Ask(q *Question) *Answer {
	if q.DefaultAnswer != nil {
		return q.DefaultAnswer
	}
	switch q.Type {
	case MultipleChoice:
		if len(q.Options) > 0 {
			opt := q.Options[0]
			return &Answer{Value: opt.Key, SelectedOption: &opt}
		}
		return &Answer{Value: ""}
	case YesNo, Confirmation:
		return &Answer{Value: "yes"}
	default:
		return &Answer{Text: ""}
	}
}

func (a *AutoApproveInterviewer) AskMultiple(qs []*Question) []*Answer {
	return askMultipleSequential(a, qs)
}

func (a *AutoApproveInterviewer) Inform(message, stage string) {}

// ConsoleInterviewer reads answers from an input stream with ANSI-styled
// prompts written to an output stream. MultipleChoice retries up to 3
// invalid selections before falling back to the first option.
// Input-stream-closed is distinct from timeout and also causes fallback,
// never a panic.
type ConsoleInterviewer struct {
	In  io.Reader
	Out io.Writer

	once    sync.Once
	scanner *bufio.Scanner
}

const ansiBold = "\x1b[1m"
const ansiReset = "\x1b[0m"

func (c *ConsoleInterviewer) init() {
	c.once.Do(func() {
		c.scanner = bufio.NewScanner(c.In)
	})
}

func (c *ConsoleInterviewer) readLine() (string, bool) {
	c.init()
	if !c.scanner.Scan() {
		return "", false
	}
	return strings.TrimSpace(c.scanner.Text()), true
}

func (c *ConsoleInterviewer) Ask(q *Question) *Answer {
	fmt.Fprintf(c.Out, "%s[?] %s%s\n", ansiBold, q.Text, ansiReset)
	switch q.Type {
	case MultipleChoice:
		for _, opt := range q.Options {
			fmt.Fprintf(c.Out, "  [%s] %s\n", opt.Key, opt.Label)
		}
		for attempt := 0; attempt < 3; attempt++ {
			fmt.Fprint(c.Out, "select: ")
			line, ok := c.readLine()
			if !ok {
				return c.fallbackOption(q)
			}
			for _, opt := range q.Options {
				if strings.EqualFold(opt.Key, line) {
					o := opt
					return &Answer{Value: o.Key, SelectedOption: &o}
				}
			}
		}
		return c.fallbackOption(q)
	case YesNo, Confirmation:
		fmt.Fprint(c.Out, "[y/n]: ")
		line, ok := c.readLine()
		if !ok || strings.EqualFold(line, "y") || strings.EqualFold(line, "yes") {
			return &Answer{Value: "yes"}
		}
		return &Answer{Value: "no"}
	default:
		fmt.Fprint(c.Out, "> ")
		line, _ := c.readLine()
		return &Answer{Text: line}
	}
}

func (c *ConsoleInterviewer) fallbackOption(q *Question) *Answer {
	if len(q.Options) == 0 {
		return &Answer{Value: ""}
	}
	opt := q.Options[0]
	return &Answer{Value: opt.Key, SelectedOption: &opt}
}

func (c *ConsoleInterviewer) AskMultiple(qs []*Question) []*Answer {
	return askMultipleSequential(c, qs)
}

func (c *ConsoleInterviewer) Inform(message, stage string) {
	fmt.Fprintf(c.Out, "[%s] %s\n", stage, message)
}

// CallbackInterviewer delegates Ask to an injected function, useful for
// programmatic or test-driven interaction.
type CallbackInterviewer struct {
	Fn func(*Question) *Answer
}

func (cb *CallbackInterviewer) Ask(q *Question) *Answer { return cb.Fn(q) }
func (cb *CallbackInterviewer) AskMultiple(qs []*Question) []*Answer {
	return askMultipleSequential(cb, qs)
}
func (cb *CallbackInterviewer) Inform(message, stage string) {}

// QueueInterviewer dequeues from a pre-seeded FIFO of answers. On
// exhaustion Ask panics with ErrQueueEmpty rather than return a soft
// sentinel. Inside a run, Runner.invoke recovers that panic like any other
// handler panic: the stage gets a FAIL Outcome with reason "queue empty"
// and the run continues with normal routing; the panic does not by itself
// end the run.
type QueueInterviewer struct {
	mu      sync.Mutex
	answers []*Answer
}

// NewQueueInterviewer seeds a QueueInterviewer with an ordered list of
// answers to hand back, one per Ask call.
func NewQueueInterviewer(answers ...*Answer) *QueueInterviewer {
	return &QueueInterviewer{answers: answers}
}

// ErrQueueEmpty is the panic value raised when a QueueInterviewer is asked
// beyond its seeded answers.
var ErrQueueEmpty = fmt.Errorf("queue empty")

func (q *QueueInterviewer) Ask(question *Question) *Answer {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.answers) == 0 {
		panic(ErrQueueEmpty)
	}
	a := q.answers[0]
	q.answers = q.answers[1:]
	return a
}

func (q *QueueInterviewer) AskMultiple(qs []*Question) []*Answer {
	return askMultipleSequential(q, qs)
}

func (q *QueueInterviewer) Inform(message, stage string) {}

// WebInterviewer stores a single pending question at a time for an HTTP
// layer to poll and answer. A second Ask before the first is answered is a
// contract violation and panics.
type WebInterviewer struct {
	mu      sync.Mutex
	pending *Question
	resolve chan *Answer
}

// NewWebInterviewer creates an empty WebInterviewer.
func NewWebInterviewer() *WebInterviewer {
	return &WebInterviewer{}
}

func (w *WebInterviewer) Ask(q *Question) *Answer {
	w.mu.Lock()
	if w.pending != nil {
		w.mu.Unlock()
		panic(fmt.Errorf("web interviewer: question already pending"))
	}
	w.pending = q
	w.resolve = make(chan *Answer, 1)
	ch := w.resolve
	w.mu.Unlock()

	if q.TimeoutSeconds > 0 {
		select {
		case a := <-ch:
			w.clear()
			return a
		case <-time.After(time.Duration(q.TimeoutSeconds * float64(time.Second))):
			w.clear()
			return applyTimeoutDefault(q)
		}
	}
	a := <-ch
	w.clear()
	return a
}

func (w *WebInterviewer) clear() {
	w.mu.Lock()
	w.pending = nil
	w.resolve = nil
	w.mu.Unlock()
}

// GetPendingQuestion returns the currently outstanding question, or nil if
// none is pending.
func (w *WebInterviewer) GetPendingQuestion() *Question {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.pending
}

// SubmitAnswer resolves the single pending question. It is a no-op if no
// question is pending.
func (w *WebInterviewer) SubmitAnswer(a *Answer) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.pending == nil || w.resolve == nil {
		return
	}
	select {
	case w.resolve <- a:
	default:
	}
}

func (w *WebInterviewer) AskMultiple(qs []*Question) []*Answer {
	return askMultipleSequential(w, qs)
}

func (w *WebInterviewer) Inform(message, stage string) {}

// Recording pairs a question with the answer it received, in ask order.
type Recording struct {
	Question *Question
	Answer   *Answer
}

// RecordingInterviewer wraps another Interviewer and records every
// (question, answer) pair in order, supporting later replay via
// NewQueueInterviewer(recorded answers...).
type RecordingInterviewer struct {
	Inner Interviewer

	mu         sync.Mutex
	recordings []Recording
}

func (r *RecordingInterviewer) Ask(q *Question) *Answer {
	a := r.Inner.Ask(q)
	r.mu.Lock()
	r.recordings = append(r.recordings, Recording{Question: q, Answer: a})
	r.mu.Unlock()
	return a
}

func (r *RecordingInterviewer) AskMultiple(qs []*Question) []*Answer {
	return askMultipleSequential(r, qs)
}

func (r *RecordingInterviewer) Inform(message, stage string) {
	r.Inner.Inform(message, stage)
}

// Recordings returns a copy of every (question, answer) pair recorded so
// far, in ask order.
func (r *RecordingInterviewer) Recordings() []Recording {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Recording, len(r.recordings))
	copy(out, r.recordings)
	return out
}
