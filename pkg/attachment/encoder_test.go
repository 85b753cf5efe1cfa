package attachment

import (
	"encoding/base64"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("disk on fire") }

func TestEncodeBase64(t *testing.T) {
	enc := NewEncoder(0, nil)
	att, err := enc.Encode("bill.txt", "text/plain", strings.NewReader("hello bill"))
	require.NoError(t, err)
	assert.Equal(t, "bill.txt", att.Name)
	assert.Equal(t, "text/plain", att.MimeType)
	assert.Equal(t, base64.StdEncoding.EncodeToString([]byte("hello bill")), att.Data)
	assert.Equal(t, len("hello bill"), att.Size())
}

func TestEncodeSniffsGenericType(t *testing.T) {
	enc := NewEncoder(0, []string{"application/pdf"})
	att, err := enc.Encode("scan", "application/octet-stream", strings.NewReader("%PDF-1.4\n%âãÏÓ\n1 0 obj\n"))
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", att.MimeType)
}

func TestEncodeDropsTypeParameters(t *testing.T) {
	enc := NewEncoder(0, []string{"text/plain"})
	att, err := enc.Encode("a.txt", "text/plain; charset=utf-8", strings.NewReader("x"))
	require.NoError(t, err)
	assert.Equal(t, "text/plain", att.MimeType)
}

func TestEncodeWildcardAllowList(t *testing.T) {
	enc := NewEncoder(0, []string{"image/*"})
	_, err := enc.Encode("photo.png", "image/png", strings.NewReader("\x89PNG"))
	require.NoError(t, err)

	_, err = enc.Encode("run.sh", "application/x-sh", strings.NewReader("#!/bin/sh"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnsupportedType)
}

func TestEncodeTooLarge(t *testing.T) {
	enc := NewEncoder(4, nil)
	_, err := enc.Encode("big.txt", "text/plain", strings.NewReader("12345"))
	var re *ReadError
	require.ErrorAs(t, err, &re)
	assert.ErrorIs(t, err, ErrTooLarge)
	assert.Equal(t, "big.txt", re.Name)
}

func TestEncodeReadFailureYieldsNothing(t *testing.T) {
	enc := NewEncoder(0, nil)
	att, err := enc.Encode("x.pdf", "application/pdf", failingReader{})
	assert.Nil(t, att)
	var re *ReadError
	assert.ErrorAs(t, err, &re)
}

func TestEncodeEmpty(t *testing.T) {
	_, err := NewEncoder(0, nil).Encode("empty.txt", "text/plain", strings.NewReader(""))
	assert.ErrorIs(t, err, ErrEmpty)
}

func TestEncodeDataURLStripsPrefix(t *testing.T) {
	payload := base64.StdEncoding.EncodeToString([]byte("statement"))
	att, err := NewEncoder(0, nil).EncodeDataURL("s.txt", "data:text/plain;base64,"+payload)
	require.NoError(t, err)
	assert.Equal(t, payload, att.Data)
	assert.Equal(t, "text/plain", att.MimeType)
	assert.False(t, strings.HasPrefix(att.Data, "data:"))
}

func TestEncodeDataURLMalformed(t *testing.T) {
	enc := NewEncoder(0, nil)
	for _, in := range []string{"", "text/plain;base64,AAAA", "data:text/plain,plain", "data:text/plain;base64,***"} {
		_, err := enc.EncodeDataURL("f", in)
		assert.ErrorIs(t, err, ErrBadDataURL, "input %q", in)
	}
}

func TestEncodeFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.txt")
	require.NoError(t, os.WriteFile(path, []byte("fibre ticket 42"), 0o644))

	att, err := NewEncoder(0, []string{"text/plain"}).EncodeFile(path)
	require.NoError(t, err)
	assert.Equal(t, "notes.txt", att.Name)
	assert.Equal(t, "text/plain", att.MimeType)

	_, err = NewEncoder(0, nil).EncodeFile(filepath.Join(t.TempDir(), "missing.pdf"))
	var re *ReadError
	assert.ErrorAs(t, err, &re)
}
