package fsutil

import (
	"bytes"
	"encoding/gob"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	yaml "go.yaml.in/yaml/v3"
)

// Codec encodes and decodes values for one file extension.
type Codec interface {
	Encode(w io.Writer, v any, indent int) error
	Decode(r io.Reader, v any) error
}

var codecs = map[string]Codec{
	".json": jsonCodec{},
	".yaml": yamlCodec{},
	".yml":  yamlCodec{},
	".txt":  textCodec{},
	".gob":  gobCodec{},
}

// CodecFor returns the codec registered for ext, with or without the dot.
func CodecFor(ext string) (Codec, error) {
	if ext == "" {
		return nil, ErrInvalidExtension
	}
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	c, ok := codecs[strings.ToLower(ext)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, ext)
	}
	return c, nil
}

// Load decodes dir/name into v with the codec for ext, or for name's own
// extension when ext is empty.
func Load(mode ErrorMode, dir, name, ext string, v any) error {
	if ext == "" {
		ext = filepath.Ext(name)
	}
	if ext == "" {
		return fmt.Errorf("%w: name %q, ext %q", ErrInvalidExtension, name, ext)
	}
	codec, err := CodecFor(ext)
	if err != nil {
		return err
	}

	path, exist, err := CheckPath(mode, ext, dir, name)
	if err != nil {
		return err
	}
	if !exist {
		return nil
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	if err := codec.Decode(f, v); err != nil {
		return fmt.Errorf("failed to decode %s: %w", path, err)
	}
	slog.Debug("File data was loaded", "name", name)
	return nil
}

// Save encodes data to dir/name with the codec for name's extension. dir
// must already exist; a missing dir is reported according to mode and
// nothing is written.
func Save(mode ErrorMode, dir, name string, data any, indent int) (bool, error) {
	ext := filepath.Ext(name)
	if ext == "" {
		return false, fmt.Errorf("%w: %q", ErrInvalidExtension, name)
	}
	codec, err := CodecFor(ext)
	if err != nil {
		return false, err
	}

	_, exist, err := CheckPath(mode, "", dir)
	if err != nil || !exist {
		return false, err
	}

	var buf bytes.Buffer
	if err := codec.Encode(&buf, data, indent); err != nil {
		return false, fmt.Errorf("failed to encode %s: %w", name, err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return false, fmt.Errorf("failed to write %s: %w", path, err)
	}
	slog.Debug("File was saved", "name", name)
	return true, nil
}

type jsonCodec struct{}

func (jsonCodec) Encode(w io.Writer, v any, indent int) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if indent > 0 {
		enc.SetIndent("", strings.Repeat(" ", indent))
	}
	return enc.Encode(v)
}

func (jsonCodec) Decode(r io.Reader, v any) error {
	return json.NewDecoder(r).Decode(v)
}

type yamlCodec struct{}

func (yamlCodec) Encode(w io.Writer, v any, indent int) error {
	enc := yaml.NewEncoder(w)
	if indent > 0 {
		enc.SetIndent(indent)
	}
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}

func (yamlCodec) Decode(r io.Reader, v any) error {
	return yaml.NewDecoder(r).Decode(v)
}

// textCodec writes fmt's %v of the value and reads into a *string.
type textCodec struct{}

func (textCodec) Encode(w io.Writer, v any, _ int) error {
	_, err := fmt.Fprint(w, v)
	return err
}

func (textCodec) Decode(r io.Reader, v any) error {
	s, ok := v.(*string)
	if !ok {
		return fmt.Errorf("text files decode into *string, got %T", v)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	*s = string(data)
	return nil
}

type gobCodec struct{}

func (gobCodec) Encode(w io.Writer, v any, _ int) error {
	return gob.NewEncoder(w).Encode(v)
}

func (gobCodec) Decode(r io.Reader, v any) error {
	return gob.NewDecoder(r).Decode(v)
}
