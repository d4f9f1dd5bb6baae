package utils

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"
)

// ConfigurationParser decodes a YAML file into T. Keys that do not map
// to a field of T are rejected so a misspelt setting cannot silently
// fall back to its default.
func ConfigurationParser[T any](filepathName string) (T, error) {
	var configEntity T
	fileContent, err := os.ReadFile(filepath.Clean(filepathName))
	if err != nil {
		return configEntity, errors.Wrapf(err, "read %s", filepathName)
	}
	if err = yaml.UnmarshalStrict(fileContent, &configEntity); err != nil {
		return configEntity, errors.Wrapf(err, "decode %s", filepathName)
	}
	return configEntity, nil
}
