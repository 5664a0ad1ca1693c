package console

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConfirm(t *testing.T) {
	tests := []struct {
		name   string
		answer string
		want   bool
	}{
		{name: "yes", answer: "y\n", want: true},
		{name: "yes spelled out", answer: "YES\n", want: true},
		{name: "no", answer: "n\n", want: false},
		{name: "default is no", answer: "\n", want: false},
		{name: "eof declines", answer: "", want: false},
		{name: "garbage declines", answer: "maybe\n", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := &strings.Builder{}
			con := NewPlain(out, out, strings.NewReader(tt.answer))
			got := con.Confirm("Proceed?")
			assert.Equal(t, tt.want, got)
			assert.Contains(t, out.String(), "Proceed? [y/N]")
		})
	}
}

func TestPlainConsoleHasNoColorCodes(t *testing.T) {
	out := &strings.Builder{}
	con := NewPlain(out, out, strings.NewReader(""))
	con.Printf("%s\n", con.Red("danger"))
	assert.Equal(t, "danger\n", out.String())
}
