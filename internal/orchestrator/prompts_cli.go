package orchestrator

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/tis24dev/mediasave/internal/input"
)

// CLIProvider reads answers line by line from a terminal.
type CLIProvider struct {
	reader *bufio.Reader
	out    io.Writer
}

// NewCLIProvider reads from in and writes prompts to out. nil values mean stdin/stdout.
func NewCLIProvider(in io.Reader, out io.Writer) *CLIProvider {
	if in == nil {
		in = os.Stdin
	}
	if out == nil {
		out = os.Stdout
	}
	return &CLIProvider{reader: bufio.NewReader(in), out: out}
}

func (c *CLIProvider) AskYesNo(ctx context.Context, question string, def bool) (bool, error) {
	suffix := "[y/N]"
	if def {
		suffix = "[Y/n]"
	}
	for {
		fmt.Fprintf(c.out, "%s %s ", question, suffix)
		line, err := input.ReadLineWithContext(ctx, c.reader)
		if err != nil {
			return false, err
		}
		if answer, ok := input.ParseYesNo(line, def); ok {
			return answer, nil
		}
		fmt.Fprintln(c.out, "Please type yes or no.")
	}
}

func (c *CLIProvider) AskIndex(ctx context.Context, title string, options []string) (int, error) {
	fmt.Fprintf(c.out, "%s:\n", title)
	for i, opt := range options {
		fmt.Fprintf(c.out, "  %d) %s\n", i+1, opt)
	}
	fmt.Fprint(c.out, "Select destination number: ")
	line, err := input.ReadLineWithContext(ctx, c.reader)
	if err != nil {
		return -1, err
	}
	return input.ParseIndex(line, len(options))
}

func (c *CLIProvider) AskText(ctx context.Context, prompt string) (string, error) {
	fmt.Fprintf(c.out, "%s ", prompt)
	line, err := input.ReadLineWithContext(ctx, c.reader)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func (c *CLIProvider) WaitConfirm(ctx context.Context, message string) error {
	fmt.Fprint(c.out, message)
	_, err := input.ReadLineWithContext(ctx, c.reader)
	return err
}
