package stack

import (
	"fmt"
	"os"

	"github.com/architect-io/stackctl/pkg/errors"
)

// Load parses and transforms a stack file from the given path.
func Load(path string) (*Stack, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeParse, fmt.Sprintf("failed to read %s", path), err)
	}

	st, err := LoadFromBytes(data, path)
	if err != nil {
		return nil, err
	}

	st.SourcePath = path
	return st, nil
}

// LoadFromBytes parses and transforms a stack file from raw bytes.
func LoadFromBytes(data []byte, sourcePath string) (*Stack, error) {
	schema, diags, err := NewParser().ParseBytes(data, sourcePath)
	if err != nil {
		return nil, errors.ParseError(sourcePath, err)
	}
	if diags.HasErrors() {
		return nil, errors.ParseError(sourcePath, fmt.Errorf("%s", diags.Error()))
	}

	if schema.Version != "" && schema.Version != "v1" {
		return nil, errors.New(errors.ErrCodeParse, fmt.Sprintf("unsupported schema version: %s", schema.Version))
	}

	return NewTransformer().Transform(schema)
}
