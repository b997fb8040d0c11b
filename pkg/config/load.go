package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"github.com/plusconf/plusconf/pkg/loader"
)

// Load reads the settings file of dir. It returns the defaults and an empty
// file name when dir has no settings file.
func Load(fs afero.Fs, dir string) (*Settings, string, error) {
	for _, name := range FileNames {
		file := filepath.Join(dir, name)
		src, err := afero.ReadFile(fs, file)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, "", fmt.Errorf("failed to read %s: %w", file, err)
		}

		settings, err := Parse(file, src)
		if err != nil {
			return nil, "", err
		}
		return settings, file, nil
	}

	return Default(), "", nil
}

// LoadFile reads an explicit settings file.
func LoadFile(fs afero.Fs, file string) (*Settings, error) {
	src, err := afero.ReadFile(fs, file)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", file, err)
	}
	return Parse(file, src)
}

// Parse decodes and validates settings. The format is taken from the
// extension of filename.
func Parse(filename string, src []byte) (*Settings, error) {
	if strings.HasSuffix(filename, ".cue") {
		doc, _, err := loader.NewCUEParser().Parse(filename, src)
		if err != nil {
			return nil, fmt.Errorf("failed to evaluate %s: %w", filename, err)
		}
		if src, err = yaml.Marshal(doc); err != nil {
			return nil, fmt.Errorf("failed to convert %s: %w", filename, err)
		}
	}

	settings := Default()
	dec := yaml.NewDecoder(bytes.NewReader(src))
	dec.KnownFields(true)
	if err := dec.Decode(settings); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse %s: %w", filename, err)
	}

	if err := Validate(settings); err != nil {
		return nil, fmt.Errorf("invalid settings in %s: %w", filename, err)
	}
	return settings, nil
}

var validate = validator.New()

// Validate checks the struct tags of s and the telemetry configuration.
func Validate(s *Settings) error {
	if err := validate.Struct(s); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, len(verrs))
			for i, fe := range verrs {
				msgs[i] = fmt.Sprintf("%s failed on the '%s' rule", fe.Namespace(), fe.Tag())
			}
			return errors.New(strings.Join(msgs, "; "))
		}
		return err
	}
	return s.Telemetry.Validate()
}
