package rdp

import (
	"bufio"
	"bytes"
	"errors"
	"strings"
	"testing"
)

func TestWritePacket(t *testing.T) {
	var buf bytes.Buffer
	body := []byte(`{"to":"root","type":"listTabs"}`)

	if err := writePacket(&buf, body); err != nil {
		t.Fatalf("writePacket: %v", err)
	}

	want := `31:{"to":"root","type":"listTabs"}`
	if buf.String() != want {
		t.Errorf("writePacket = %q, want %q", buf.String(), want)
	}
}

func TestReadPacket(t *testing.T) {
	input := `21:{"from":"root","x":1}7:{"a":2}`
	r := bufio.NewReader(strings.NewReader(input))

	first, err := readPacket(r)
	if err != nil {
		t.Fatalf("readPacket first: %v", err)
	}
	if string(first) != `{"from":"root","x":1}` {
		t.Errorf("first packet = %q", first)
	}

	second, err := readPacket(r)
	if err != nil {
		t.Fatalf("readPacket second: %v", err)
	}
	if string(second) != `{"a":2}` {
		t.Errorf("second packet = %q", second)
	}
}

func TestReadPacketRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	body := []byte(`{"from":"thread1","type":"paused","why":{"type":"breakpoint"}}`)

	if err := writePacket(&buf, body); err != nil {
		t.Fatalf("writePacket: %v", err)
	}

	got, err := readPacket(bufio.NewReader(&buf))
	if err != nil {
		t.Fatalf("readPacket: %v", err)
	}
	if string(got) != string(body) {
		t.Errorf("round trip = %q, want %q", got, body)
	}
}

func TestReadPacketErrors(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		wantInvalid bool
	}{
		{"empty", "", false},
		{"no separator", "123", false},
		{"bad length", "abc:{}", true},
		{"negative length", "-5:{}", true},
		{"zero length", "0:", true},
		{"truncated body", "50:{}", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := bufio.NewReader(strings.NewReader(tt.input))
			_, err := readPacket(r)
			if err == nil {
				t.Fatalf("readPacket(%q) succeeded, want error", tt.input)
			}
			if tt.wantInvalid && !errors.Is(err, ErrInvalidPacket) {
				t.Errorf("readPacket(%q) = %v, want ErrInvalidPacket", tt.input, err)
			}
		})
	}
}
