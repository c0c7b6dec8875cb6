package prompt

import (
	"context"
	"fmt"
)

// Answer is one scripted reply. Exactly one field is used, matching the
// prompt kind; Cancel backs out of any prompt.
type Answer struct {
	Confirm bool
	Select  int
	Text    string
	Cancel  bool
}

// Scripted replays answers in order and records the questions asked.
// It is meant for tests.
type Scripted struct {
	Answers []Answer
	Asked   []string
}

func (s *Scripted) next(message string) (Answer, error) {
	s.Asked = append(s.Asked, message)
	if len(s.Answers) == 0 {
		return Answer{}, fmt.Errorf("unexpected prompt: %s", message)
	}
	a := s.Answers[0]
	s.Answers = s.Answers[1:]
	if a.Cancel {
		return a, canceled(message)
	}
	return a, nil
}

func (s *Scripted) Confirm(_ context.Context, message string, _ bool) (bool, error) {
	a, err := s.next(message)
	return a.Confirm, err
}

func (s *Scripted) Select(_ context.Context, message string, choices []Choice) (int, error) {
	a, err := s.next(message)
	if err != nil {
		return 0, err
	}
	if a.Select < 0 || a.Select >= len(choices) {
		return 0, fmt.Errorf("scripted choice %d out of range for %q", a.Select, message)
	}
	return a.Select, nil
}

func (s *Scripted) Input(_ context.Context, message, def string) (string, error) {
	a, err := s.next(message)
	if err != nil {
		return "", err
	}
	if a.Text == "" {
		return def, nil
	}
	return a.Text, nil
}

func (s *Scripted) Secret(ctx context.Context, message string) (string, error) {
	return s.Input(ctx, message, "")
}
