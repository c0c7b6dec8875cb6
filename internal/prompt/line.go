package prompt

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"golang.org/x/term"
)

// Line prompts by reading whole lines; it is used when stdin is piped.
type Line struct {
	in     io.Reader
	out    io.Writer
	reader *bufio.Reader
}

// NewLine reads answers from in and writes questions to out.
func NewLine(in io.Reader, out io.Writer) *Line {
	return &Line{in: in, out: out, reader: bufio.NewReader(in)}
}

func (l *Line) readLine() (string, error) {
	line, err := l.reader.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		if errors.Is(err, io.EOF) {
			return "", io.ErrUnexpectedEOF
		}
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func (l *Line) Confirm(_ context.Context, message string, def bool) (bool, error) {
	hint := "y/N"
	if def {
		hint = "Y/n"
	}
	for {
		_, _ = fmt.Fprintf(l.out, "%s [%s]: ", message, hint)
		answer, err := l.readLine()
		if err != nil {
			return false, canceled(message)
		}
		switch strings.ToLower(answer) {
		case "":
			return def, nil
		case "y", "yes":
			return true, nil
		case "n", "no":
			return false, nil
		}
		_, _ = fmt.Fprintln(l.out, "Please answer y or n.")
	}
}

func (l *Line) Select(_ context.Context, message string, choices []Choice) (int, error) {
	if len(choices) == 0 {
		return 0, errors.New("nothing to choose from")
	}
	_, _ = fmt.Fprintln(l.out, message)
	for i, c := range choices {
		if c.Hint != "" {
			_, _ = fmt.Fprintf(l.out, "  %d) %s  %s\n", i+1, c.Label, c.Hint)
		} else {
			_, _ = fmt.Fprintf(l.out, "  %d) %s\n", i+1, c.Label)
		}
	}
	for {
		_, _ = fmt.Fprintf(l.out, "Choose 1-%d (empty to cancel): ", len(choices))
		answer, err := l.readLine()
		if err != nil || answer == "" {
			return 0, canceled(message)
		}
		n, err := strconv.Atoi(answer)
		if err == nil && n >= 1 && n <= len(choices) {
			return n - 1, nil
		}
		_, _ = fmt.Fprintf(l.out, "%q is not a valid choice.\n", answer)
	}
}

func (l *Line) Input(_ context.Context, message, def string) (string, error) {
	if def != "" {
		_, _ = fmt.Fprintf(l.out, "%s [%s]: ", message, def)
	} else {
		_, _ = fmt.Fprintf(l.out, "%s: ", message)
	}
	answer, err := l.readLine()
	if err != nil {
		return "", canceled(message)
	}
	if answer == "" {
		return def, nil
	}
	return answer, nil
}

// Secret reads without echo when in is a terminal.
func (l *Line) Secret(ctx context.Context, message string) (string, error) {
	if !isTerminal(l.in) {
		return l.Input(ctx, message, "")
	}
	_, _ = fmt.Fprintf(l.out, "%s: ", message)
	b, err := term.ReadPassword(int(l.in.(interface{ Fd() uintptr }).Fd()))
	_, _ = fmt.Fprintln(l.out)
	if err != nil {
		return "", canceled(message)
	}
	return strings.TrimSpace(string(b)), nil
}
