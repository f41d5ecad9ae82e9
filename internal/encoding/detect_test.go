package encoding_test

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/invoice-ledger/internal/encoding"
)

func TestNewUTF8Reader_UTF8Passthrough(t *testing.T) {
	input := "Rechnung Nr. 42\nGesamtbetrag: 119,00 €\nMwSt 19%\n"
	r, err := encoding.NewUTF8Reader(bytes.NewReader([]byte(input)))
	require.NoError(t, err)

	got, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, input, string(got))
}

func TestNewUTF8Reader_Latin1(t *testing.T) {
	// "Factura Nº: Café" in Windows-1252: º = 0xBA, é = 0xE9
	latin1 := []byte{'F', 'a', 'c', 't', 'u', 'r', 'a', ' ', 'N', 0xBA, ':', ' ', 'C', 'a', 'f', 0xE9, '\n'}

	got, err := encoding.DecodeUTF8(latin1)
	require.NoError(t, err)
	assert.Equal(t, "Factura Nº: Café\n", string(got))
}

func TestNewUTF8Reader_UTF8BOM(t *testing.T) {
	input := append([]byte{0xEF, 0xBB, 0xBF}, []byte("Timestamp,Invoice Date\n")...)

	got, err := encoding.DecodeUTF8(input)
	require.NoError(t, err)
	assert.Equal(t, "Timestamp,Invoice Date\n", string(got))
}

func TestNewUTF8Reader_UTF16LE(t *testing.T) {
	input := []byte{0xFF, 0xFE, 'T', 0, 'o', 0, 't', 0, 'a', 0, 'l', 0}

	got, err := encoding.DecodeUTF8(input)
	require.NoError(t, err)
	assert.Equal(t, "Total", string(got))
}

func TestNewUTF8Reader_LongUTF8(t *testing.T) {
	// Multi-byte characters straddling the sniff window must not trigger re-decoding.
	input := strings.Repeat("€", 3000)

	got, err := encoding.DecodeUTF8([]byte(input))
	require.NoError(t, err)
	assert.Equal(t, input, string(got))
}
