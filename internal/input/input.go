package input

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// ErrInputAborted signals that interactive input was interrupted (typically via Ctrl+C
// causing context cancellation and/or stdin closure).
var ErrInputAborted = errors.New("input aborted")

// ErrNoInput means stdin reached end of file before an answer was given.
var ErrNoInput = errors.New("no input")

// ErrNotANumber is returned by ParseIndex for non-numeric input.
var ErrNotANumber = errors.New("not a number")

// ErrOutOfRange is returned by ParseIndex for indexes outside 1..n.
var ErrOutOfRange = errors.New("index out of range")

// IsAborted reports whether an operation was aborted by the user (typically via Ctrl+C),
// by checking for ErrInputAborted and context cancellation.
func IsAborted(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, ErrInputAborted) || errors.Is(err, context.Canceled)
}

// MapInputError normalizes common stdin errors. End of file becomes ErrNoInput;
// a closed descriptor (stdin closed by the signal handler) becomes ErrInputAborted.
func MapInputError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, io.EOF) {
		return ErrNoInput
	}
	if errors.Is(err, os.ErrClosed) {
		return ErrInputAborted
	}
	errStr := strings.ToLower(err.Error())
	if strings.Contains(errStr, "use of closed file") ||
		strings.Contains(errStr, "bad file descriptor") ||
		strings.Contains(errStr, "file already closed") {
		return ErrInputAborted
	}
	return err
}

// ReadLineWithContext reads a single line and supports cancellation. On ctx cancellation
// or stdin closure it returns ErrInputAborted. On ctx deadline it returns context.DeadlineExceeded.
// A final line without a newline is returned as the answer; a bare EOF yields ErrNoInput.
func ReadLineWithContext(ctx context.Context, reader *bufio.Reader) (string, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	type result struct {
		line string
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		line, err := reader.ReadString('\n')
		if errors.Is(err, io.EOF) && line != "" {
			err = nil
		}
		ch <- result{line: line, err: MapInputError(err)}
	}()
	select {
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", context.DeadlineExceeded
		}
		return "", ErrInputAborted
	case res := <-ch:
		return res.line, res.err
	}
}

// ParseYesNo interprets a y/n answer. Empty input yields def. ok is false for
// anything that is neither yes nor no.
func ParseYesNo(line string, def bool) (answer bool, ok bool) {
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "":
		return def, true
	case "y", "yes":
		return true, true
	case "n", "no":
		return false, true
	default:
		return false, false
	}
}

// ParseIndex converts a 1-based menu answer into a 0-based index for a list of n items.
func ParseIndex(line string, n int) (int, error) {
	trimmed := strings.TrimSpace(line)
	v, err := strconv.Atoi(trimmed)
	if err != nil || trimmed == "" || strings.HasPrefix(trimmed, "+") {
		return -1, fmt.Errorf("%q: %w", trimmed, ErrNotANumber)
	}
	if v < 1 || v > n {
		return -1, fmt.Errorf("%d not in 1..%d: %w", v, n, ErrOutOfRange)
	}
	return v - 1, nil
}
