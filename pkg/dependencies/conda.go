package dependencies

import (
	"fmt"

	"github.com/pipeship/pipeship/pkg/errors"
	"github.com/spf13/afero"
	yaml "gopkg.in/yaml.v2"
)

// ErrCondaExtract indicates pip dependencies could not be extracted
// from a conda environment file
var ErrCondaExtract = errors.New("cannot extract pip dependencies from environment file")

type condaEnv struct {
	Dependencies []interface{} `yaml:"dependencies"`
}

// PipFromCondaEnv returns the pip dependency list embedded in a conda
// environment file:
//
//	dependencies:
//	  - python=3.9
//	  - pip:
//	    - pandas
//	    - scikit-learn
func PipFromCondaEnv(fs afero.Fs, envPath string) ([]string, error) {
	b, err := afero.ReadFile(fs, envPath)
	if err != nil {
		return nil, ErrCondaExtract.Wrap(err)
	}
	var env condaEnv
	if err := yaml.Unmarshal(b, &env); err != nil {
		return nil, ErrCondaExtract.WrapMessage("parsing %q: %w", envPath, err)
	}
	if env.Dependencies == nil {
		return nil, ErrCondaExtract.WrapMessage("%s: missing dependencies section", envPath)
	}
	for _, dep := range env.Dependencies {
		section, ok := dep.(map[interface{}]interface{})
		if !ok {
			continue
		}
		pip, ok := section["pip"]
		if !ok {
			continue
		}
		list, ok := pip.([]interface{})
		if !ok {
			return nil, ErrCondaExtract.WrapMessage(
				"%s: unexpected dependencies.pip value, expected a list of dependencies, got: %v",
				envPath, pip)
		}
		deps := make([]string, 0, len(list))
		for _, item := range list {
			deps = append(deps, fmt.Sprintf("%v", item))
		}
		return deps, nil
	}
	return nil, ErrCondaExtract.WrapMessage("%s: missing dependencies.pip section", envPath)
}
