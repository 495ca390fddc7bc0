package ipc

import (
	"bufio"
	"errors"
	"io"
	"net"
	"os"
	"strings"
	"testing"
)

func TestReadDelimitedFrameWithinLimit(t *testing.T) {
	payload := `{"ok":true,"message":"reloaded"}` + "\n"
	reader := bufio.NewReaderSize(strings.NewReader(payload), maxResponseBytes+1)

	raw, err := readDelimitedFrame(reader, maxResponseBytes)
	if err != nil {
		t.Fatalf("readDelimitedFrame() error = %v", err)
	}
	if string(raw) != payload {
		t.Fatalf("readDelimitedFrame() = %q, want %q", string(raw), payload)
	}
}

func TestReadDelimitedFrameRejectsOversizedFrame(t *testing.T) {
	oversized := strings.Repeat("b", maxRequestBytes+1) + "\n"
	reader := bufio.NewReaderSize(strings.NewReader(oversized), maxRequestBytes+1)

	_, err := readDelimitedFrame(reader, maxRequestBytes)
	if err == nil || !strings.Contains(err.Error(), "exceeds") {
		t.Fatalf("readDelimitedFrame() error = %v, want 'exceeds' message", err)
	}
}

func TestReadDelimitedFrameReturnsEOFOnEmptyInput(t *testing.T) {
	reader := bufio.NewReaderSize(strings.NewReader(""), maxResponseBytes+1)

	if _, err := readDelimitedFrame(reader, maxResponseBytes); err != io.EOF {
		t.Fatalf("readDelimitedFrame() error = %v, want io.EOF", err)
	}
}

func TestReadDelimitedFrameAcceptsEOFWithPartialData(t *testing.T) {
	payload := `{"command":"stop"}`
	reader := bufio.NewReaderSize(strings.NewReader(payload), maxResponseBytes+1)

	raw, err := readDelimitedFrame(reader, maxResponseBytes)
	if err != nil {
		t.Fatalf("readDelimitedFrame() error = %v, want nil", err)
	}
	if string(raw) != payload {
		t.Fatalf("readDelimitedFrame() = %q, want %q", string(raw), payload)
	}
}

func TestIsConnectionError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "dial", err: &net.OpError{Op: "dial", Err: errors.New("refused")}, want: true},
		{name: "open", err: &net.OpError{Op: "open", Err: errors.New("no such pipe")}, want: true},
		{name: "read", err: &net.OpError{Op: "read", Err: errors.New("reset")}, want: false},
		{name: "plain", err: errors.New("boom"), want: false},
		{name: "missing endpoint", err: &os.PathError{Op: "connect", Path: "x", Err: os.ErrNotExist}, want: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsConnectionError(tt.err); got != tt.want {
				t.Fatalf("IsConnectionError(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}
