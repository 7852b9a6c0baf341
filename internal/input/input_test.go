package input

import (
	"bufio"
	"context"
	"errors"
	"io"
	"os"
	"strings"
	"testing"
	"time"
)

func TestMapInputError(t *testing.T) {
	if MapInputError(nil) != nil {
		t.Fatalf("expected nil")
	}
	if !errors.Is(MapInputError(io.EOF), ErrNoInput) {
		t.Fatalf("expected ErrNoInput for EOF")
	}
	if IsAborted(MapInputError(io.EOF)) {
		t.Fatalf("EOF must not count as an abort")
	}
	if !errors.Is(MapInputError(os.ErrClosed), ErrInputAborted) {
		t.Fatalf("expected ErrInputAborted for ErrClosed")
	}

	for _, msg := range []string{
		"use of closed file",
		"bad file descriptor",
		"file already closed",
		"Use Of Closed File", // case-insensitive
	} {
		if !errors.Is(MapInputError(errors.New(msg)), ErrInputAborted) {
			t.Fatalf("expected ErrInputAborted for %q", msg)
		}
	}

	sentinel := errors.New("some other error")
	if MapInputError(sentinel) != sentinel {
		t.Fatalf("expected passthrough for non-mapped errors")
	}
}

func TestIsAborted(t *testing.T) {
	if IsAborted(nil) {
		t.Fatalf("expected false for nil")
	}
	if !IsAborted(ErrInputAborted) {
		t.Fatalf("expected true for ErrInputAborted")
	}
	if !IsAborted(context.Canceled) {
		t.Fatalf("expected true for context.Canceled")
	}
	if IsAborted(errors.New("other")) {
		t.Fatalf("expected false for non-abort errors")
	}
}

func TestReadLineWithContext_ReturnsLine(t *testing.T) {
	reader := bufio.NewReader(strings.NewReader("hello\n"))
	got, err := ReadLineWithContext(context.Background(), reader)
	if err != nil {
		t.Fatalf("ReadLineWithContext error: %v", err)
	}
	if got != "hello\n" {
		t.Fatalf("got=%q; want %q", got, "hello\n")
	}
}

func TestReadLineWithContext_LastLineWithoutNewline(t *testing.T) {
	reader := bufio.NewReader(strings.NewReader("2"))
	got, err := ReadLineWithContext(context.Background(), reader)
	if err != nil {
		t.Fatalf("ReadLineWithContext error: %v", err)
	}
	if got != "2" {
		t.Fatalf("got=%q; want %q", got, "2")
	}

	_, err = ReadLineWithContext(context.Background(), reader)
	if !errors.Is(err, ErrNoInput) {
		t.Fatalf("second read err=%v; want %v", err, ErrNoInput)
	}
}

func TestReadLineWithContext_EmptyInput(t *testing.T) {
	reader := bufio.NewReader(strings.NewReader(""))
	_, err := ReadLineWithContext(context.Background(), reader)
	if !errors.Is(err, ErrNoInput) {
		t.Fatalf("err=%v; want %v", err, ErrNoInput)
	}
}

func TestReadLineWithContext_NilContextWorks(t *testing.T) {
	reader := bufio.NewReader(strings.NewReader("hello\n"))
	got, err := ReadLineWithContext(nil, reader)
	if err != nil {
		t.Fatalf("ReadLineWithContext error: %v", err)
	}
	if got != "hello\n" {
		t.Fatalf("got=%q; want %q", got, "hello\n")
	}
}

func TestReadLineWithContext_CancelledReturnsAborted(t *testing.T) {
	pr, pw := io.Pipe()
	defer pr.Close()
	defer pw.Close()

	reader := bufio.NewReader(pr)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	var err error
	go func() {
		defer close(done)
		_, err = ReadLineWithContext(ctx, reader)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(500 * time.Millisecond):
		t.Fatalf("ReadLineWithContext did not return after cancellation")
	}
	if !errors.Is(err, ErrInputAborted) {
		t.Fatalf("err=%v; want %v", err, ErrInputAborted)
	}

	// Ensure the read goroutine unblocks and exits.
	_ = pw.Close()
}

func TestReadLineWithContext_DeadlineReturnsDeadlineExceeded(t *testing.T) {
	pr, pw := io.Pipe()
	defer pr.Close()
	defer pw.Close()

	reader := bufio.NewReader(pr)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	done := make(chan struct{})
	var err error
	go func() {
		defer close(done)
		_, err = ReadLineWithContext(ctx, reader)
	}()

	select {
	case <-done:
	case <-time.After(500 * time.Millisecond):
		t.Fatalf("ReadLineWithContext did not return after deadline")
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err=%v; want %v", err, context.DeadlineExceeded)
	}

	_ = pw.Close()
}


func TestParseYesNo(t *testing.T) {
	cases := []struct {
		in     string
		def    bool
		want   bool
		wantOK bool
	}{
		{"", true, true, true},
		{"\n", false, false, true},
		{"y\n", false, true, true},
		{"YES", false, true, true},
		{"n", true, false, true},
		{"No\n", true, false, true},
		{"maybe", true, false, false},
	}
	for _, tc := range cases {
		got, ok := ParseYesNo(tc.in, tc.def)
		if got != tc.want || ok != tc.wantOK {
			t.Errorf("ParseYesNo(%q, %v) = (%v, %v), want (%v, %v)", tc.in, tc.def, got, ok, tc.want, tc.wantOK)
		}
	}
}

func TestParseIndex(t *testing.T) {
	if idx, err := ParseIndex(" 2\n", 3); err != nil || idx != 1 {
		t.Fatalf("ParseIndex(2) = %d, %v", idx, err)
	}
	for _, in := range []string{"", "abc", "1.5", "+1"} {
		if _, err := ParseIndex(in, 3); !errors.Is(err, ErrNotANumber) {
			t.Errorf("ParseIndex(%q) err = %v, want ErrNotANumber", in, err)
		}
	}
	for _, in := range []string{"0", "4", "-1"} {
		if _, err := ParseIndex(in, 3); !errors.Is(err, ErrOutOfRange) {
			t.Errorf("ParseIndex(%q) err = %v, want ErrOutOfRange", in, err)
		}
	}
}
