package text

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalise(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "empty string",
			input: "",
			want:  "",
		},
		{
			name:  "collapses whitespace runs",
			input: "Section   302\t\tIPC\n\npunishment",
			want:  "Section 302 IPC punishment",
		},
		{
			name:  "trims leading and trailing whitespace",
			input: "  \t Indian Penal Code \n ",
			want:  "Indian Penal Code",
		},
		{
			name:  "typographic spaces become ascii",
			input: "Section 302 of　the Act",
			want:  "Section 302 of the Act",
		},
		{
			name:  "strips zero width characters",
			input: "Sec\u200btion\u200c 302\ufeff",
			want:  "Section 302",
		},
		{
			name:  "strips control characters",
			input: "dhara\x00 302\x07",
			want:  "dhara 302",
		},
		{
			name:  "devanagari preserved verbatim",
			input: "धारा ३०२ भारतीय दण्ड संहिता",
			want:  "धारा ३०२ भारतीय दण्ड संहिता",
		},
		{
			name:  "mixed script normalised in place",
			input: "धारा  302   IPC  के तहत",
			want:  "धारा 302 IPC के तहत",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalise(tt.input))
		})
	}
}

func TestNormaliseNFC(t *testing.T) {
	// e + combining acute composes to the precomposed form.
	decomposed := "décret"
	composed := "décret"
	assert.Equal(t, composed, Normalise(decomposed))
}

func TestNormaliseIdempotent(t *testing.T) {
	input := "  धारा \u200b 302  IPC  "
	once := Normalise(input)
	assert.Equal(t, once, Normalise(once))
}

func TestTokenise(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{
			name:  "empty",
			input: "",
			want:  nil,
		},
		{
			name:  "ascii lowercased",
			input: "Section 302 IPC",
			want:  []string{"section", "302", "ipc"},
		},
		{
			name:  "punctuation splits tokens",
			input: "S.302, IPC (1860)",
			want:  []string{"s", "302", "ipc", "1860"},
		},
		{
			name:  "devanagari with matras kept whole",
			input: "धारा ३०२ संहिता",
			want:  []string{"धारा", "३०२", "संहिता"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Tokenise(tt.input))
		})
	}
}

func TestTokeniseSpansOffsets(t *testing.T) {
	input := "dhara 302"
	spans := TokeniseSpans(input)
	require.Len(t, spans, 2)

	assert.Equal(t, "dhara", spans[0].Token)
	assert.Equal(t, "dhara", input[spans[0].Start:spans[0].End])

	assert.Equal(t, "302", spans[1].Token)
	assert.Equal(t, "302", input[spans[1].Start:spans[1].End])
}

func TestTokeniseSpansMultibyteOffsets(t *testing.T) {
	input := "धारा 302"
	spans := TokeniseSpans(input)
	require.Len(t, spans, 2)

	// Byte offsets must slice the original text back out cleanly even
	// for multi-byte Devanagari runes.
	assert.Equal(t, "धारा", input[spans[0].Start:spans[0].End])
	assert.Equal(t, "302", input[spans[1].Start:spans[1].End])
}
