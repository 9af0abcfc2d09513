package review

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/matzehuels/reviewcraft/pkg/errors"
)

// Format is a review file encoding.
type Format string

const (
	JSON Format = "json"
	YAML Format = "yaml"
	TOML Format = "toml"
)

// FormatOf picks the format from a file extension.
func FormatOf(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return JSON, nil
	case ".yaml", ".yml":
		return YAML, nil
	case ".toml":
		return TOML, nil
	default:
		return "", errors.New(errors.ErrCodeInvalidInput,
			"unsupported review file %q (use .json, .yaml or .toml)", filepath.Base(path))
	}
}

// Read decodes a review from r. Unknown fields are rejected so typos do not
// silently drop data. Read does not close r.
func Read(r io.Reader, f Format) (*Review, error) {
	var rv Review
	switch f {
	case JSON:
		dec := json.NewDecoder(r)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&rv); err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "decode json")
		}
	case YAML:
		dec := yaml.NewDecoder(r)
		dec.KnownFields(true)
		if err := dec.Decode(&rv); err != nil && err != io.EOF {
			return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "decode yaml")
		}
	case TOML:
		md, err := toml.NewDecoder(r).Decode(&rv)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "decode toml")
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			return nil, errors.New(errors.ErrCodeInvalidInput, "decode toml: unknown field %q", undecoded[0].String())
		}
	default:
		return nil, errors.New(errors.ErrCodeInvalidInput, "unsupported review format %q", f)
	}
	return &rv, nil
}

// Load reads, defaults and validates the review file at path.
func Load(path string) (*Review, error) {
	f, err := FormatOf(path)
	if err != nil {
		return nil, err
	}
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrap(errors.ErrCodeFileNotFound, err, "open %s", path)
		}
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "open %s", path)
	}
	defer file.Close()

	rv, err := Read(file, f)
	if err != nil {
		return nil, errors.Wrap(errors.GetCode(err), err, "%s", path)
	}
	rv.SetDefaults(time.Now())
	if err := rv.Validate(); err != nil {
		return nil, errors.Wrap(errors.GetCode(err), err, "%s", path)
	}
	return rv, nil
}

// Write encodes rv to w.
func Write(w io.Writer, rv *Review, f Format) error {
	switch f {
	case JSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(rv)
	case YAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(rv); err != nil {
			return err
		}
		return enc.Close()
	case TOML:
		return toml.NewEncoder(w).Encode(rv)
	default:
		return errors.New(errors.ErrCodeInvalidInput, "unsupported review format %q", f)
	}
}

// Save writes rv to path in the format implied by its extension. The file
// is replaced atomically.
func Save(path string, rv *Review) error {
	f, err := FormatOf(path)
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := Write(&buf, rv, f); err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "encode %s", path)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".review-*")
	if err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "create %s", path)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		return errors.Wrap(errors.ErrCodeInternal, err, "write %s", path)
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "write %s", path)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "rename %s", path)
	}
	return nil
}
