// Package attachment turns a user-selected file into a transport-safe
// Attachment. A failed read never yields a partial Attachment.
package attachment

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"KBAssist/models"

	"github.com/gabriel-vasile/mimetype"
)

var (
	ErrEmpty           = errors.New("file is empty")
	ErrTooLarge        = errors.New("file too large")
	ErrUnsupportedType = errors.New("unsupported file type")
	ErrBadDataURL      = errors.New("malformed data URL")
)

// ReadError reports that a file could not be turned into an Attachment.
type ReadError struct {
	Name string
	Err  error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("attachment %q: %v", e.Name, e.Err)
}

func (e *ReadError) Unwrap() error { return e.Err }

// Encoder encodes one file at a time. The zero value accepts any type and size.
type Encoder struct {
	MaxBytes     int64    // 0 = unlimited
	AllowedTypes []string // "application/pdf", "image/*"; empty = any
}

func NewEncoder(maxBytes int64, allowed []string) *Encoder {
	return &Encoder{MaxBytes: maxBytes, AllowedTypes: allowed}
}

// Encode reads r completely and returns the base64 Attachment. When the
// declared type is missing or generic the type is sniffed from the content.
func (e *Encoder) Encode(name, declaredType string, r io.Reader) (*models.Attachment, error) {
	name = filepath.Base(strings.TrimSpace(name))
	if name == "." || name == string(filepath.Separator) {
		name = "attachment"
	}

	var buf bytes.Buffer
	src := r
	if e.MaxBytes > 0 {
		src = io.LimitReader(r, e.MaxBytes+1)
	}
	if _, err := io.Copy(&buf, src); err != nil {
		return nil, &ReadError{Name: name, Err: err}
	}
	if buf.Len() == 0 {
		return nil, &ReadError{Name: name, Err: ErrEmpty}
	}
	if e.MaxBytes > 0 && int64(buf.Len()) > e.MaxBytes {
		return nil, &ReadError{Name: name, Err: fmt.Errorf("%w: more than %d bytes", ErrTooLarge, e.MaxBytes)}
	}

	mt := e.resolveType(declaredType, buf.Bytes())
	if !e.allowed(mt) {
		return nil, &ReadError{Name: name, Err: fmt.Errorf("%w: %s", ErrUnsupportedType, mt)}
	}

	return &models.Attachment{
		Name:     name,
		MimeType: mt,
		Data:     base64.StdEncoding.EncodeToString(buf.Bytes()),
	}, nil
}

// EncodeFile is Encode for a path on disk.
func (e *Encoder) EncodeFile(path string) (*models.Attachment, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &ReadError{Name: filepath.Base(path), Err: err}
	}
	defer f.Close()
	return e.Encode(filepath.Base(path), mime.TypeByExtension(filepath.Ext(path)), f)
}

// EncodeDataURL accepts what a browser FileReader produces
// ("data:application/pdf;base64,JVBERi0...") and strips the prefix.
func (e *Encoder) EncodeDataURL(name, dataURL string) (*models.Attachment, error) {
	meta, payload, ok := strings.Cut(strings.TrimSpace(dataURL), ",")
	if !ok || !strings.HasPrefix(meta, "data:") || !strings.HasSuffix(meta, ";base64") {
		return nil, &ReadError{Name: name, Err: ErrBadDataURL}
	}
	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, &ReadError{Name: name, Err: fmt.Errorf("%w: %v", ErrBadDataURL, err)}
	}
	declared := strings.TrimSuffix(strings.TrimPrefix(meta, "data:"), ";base64")
	return e.Encode(name, declared, bytes.NewReader(raw))
}

func (e *Encoder) resolveType(declared string, data []byte) string {
	if mt, _, err := mime.ParseMediaType(declared); err == nil && mt != "" && mt != "application/octet-stream" {
		return mt
	}
	mt, _, err := mime.ParseMediaType(mimetype.Detect(data).String())
	if err != nil || mt == "" {
		return "application/octet-stream"
	}
	return mt
}

func (e *Encoder) allowed(mt string) bool {
	if len(e.AllowedTypes) == 0 {
		return true
	}
	for _, a := range e.AllowedTypes {
		a = strings.ToLower(strings.TrimSpace(a))
		if a == mt || a == "*/*" {
			return true
		}
		if prefix, ok := strings.CutSuffix(a, "/*"); ok && strings.HasPrefix(mt, prefix+"/") {
			return true
		}
	}
	return false
}
