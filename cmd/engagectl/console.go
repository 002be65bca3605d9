package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/engageworks/engage-go/internal/backend"
	"github.com/engageworks/engage-go/internal/confirm"
)

// consoleWindow renders the engagement surface as console lines.
type consoleWindow struct {
	out io.Writer
}

func (w *consoleWindow) Present(bool) { fmt.Fprintln(w.out, "[window] maximized") }
func (w *consoleWindow) Dismiss(bool) { fmt.Fprintln(w.out, "[window] minimized") }

// consolePrompts answers prompts from stdin, or automatically when auto is
// set (the demo command).
type consolePrompts struct {
	in   *bufio.Reader
	out  io.Writer
	auto *confirm.Outcome
}

func (p *consolePrompts) Present(pending *confirm.Pending) {
	fmt.Fprintf(p.out, "[prompt] %s: %s\n", pending.Payload().Title, pending.Payload().Text)

	if p.auto != nil {
		outcome := *p.auto
		fmt.Fprintf(p.out, "[prompt] auto answer: %v\n", outcome == confirm.Accepted)
		go pending.Resolve(outcome)
		return
	}

	go func() {
		fmt.Fprint(p.out, "  accept? [y/N] ")
		line, err := p.in.ReadString('\n')
		if err != nil {
			pending.Resolve(confirm.Declined)
			return
		}
		if strings.HasPrefix(strings.ToLower(strings.TrimSpace(line)), "y") {
			pending.Resolve(confirm.Accepted)
			return
		}
		pending.Resolve(confirm.Declined)
	}()
}

func (p *consolePrompts) Dismiss(promptID string) {
	fmt.Fprintf(p.out, "[prompt] dismissed %s\n", promptID)
}

// consoleSurveys prints the survey and submits a fixed answer set.
type consoleSurveys struct {
	out io.Writer
}

func (s *consoleSurveys) PresentSurvey(_ context.Context, survey *backend.Survey) ([]backend.SurveyAnswer, bool, error) {
	fmt.Fprintf(s.out, "[survey] %s\n", survey.Title)
	answers := make([]backend.SurveyAnswer, 0, len(survey.Questions))
	for _, q := range survey.Questions {
		fmt.Fprintf(s.out, "  - %s (%s)\n", q.Text, q.Kind)
		answers = append(answers, backend.SurveyAnswer{QuestionID: q.ID, Value: "5"})
	}
	return answers, true, nil
}

func (s *consoleSurveys) PresentError(_ context.Context, err error) {
	fmt.Fprintf(s.out, "[error] %v\n", err)
}
