// Copyright (c) 2016-2019 Uber Technologies, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package configutil loads a YAML configuration file into a struct,
// supporting an "extends" directive that layers a base config file beneath
// the requested one, and validates the merged result against
// gopkg.in/validator.v2 struct tags.
package configutil

import (
	"errors"
	"fmt"
	"io/ioutil"
	"path/filepath"

	"gopkg.in/validator.v2"
	"gopkg.in/yaml.v2"
)

// ErrCycleRef is returned when a chain of "extends" directives refers back
// to a file already in the chain.
var ErrCycleRef = errors.New("cyclic reference in configuration extends detected")

// ValidationError wraps a field-level validation failure from
// gopkg.in/validator.v2.
type ValidationError struct {
	errs validator.ErrorMap
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("invalid config: %v", map[string]validator.ErrorArray(e.errs))
}

// ErrForField returns the validation errors for the given Go struct field
// name, or nil if that field passed validation.
func (e ValidationError) ErrForField(field string) validator.ErrorArray {
	return e.errs[field]
}

type extendsStub struct {
	Extends string `yaml:"extends"`
}

// Load reads fname and any files it (transitively) extends, merging them
// base-first into dst, then validates the merged result.
func Load(fname string, dst interface{}) error {
	filenames, err := resolveExtends(fname, readExtends)
	if err != nil {
		return err
	}
	return loadFiles(dst, filenames)
}

func readExtends(fname string) (string, error) {
	data, err := ioutil.ReadFile(fname)
	if err != nil {
		return "", fmt.Errorf("read %s: %s", fname, err)
	}
	var stub extendsStub
	if err := yaml.Unmarshal(data, &stub); err != nil {
		return "", fmt.Errorf("parse %s: %s", fname, err)
	}
	return stub.Extends, nil
}

// resolveExtends walks the "extends" chain starting from fpath, following
// readExtends(file) to find each file's parent. Relative extends paths are
// resolved relative to the directory of the file that names them. Returns
// the chain ordered from the furthest ancestor (load first) to fpath
// itself (load last, so it wins on conflicting keys).
func resolveExtends(fpath string, readExtends func(string) (string, error)) ([]string, error) {
	visited := make(map[string]bool)
	var chain []string

	cur := fpath
	for {
		if visited[cur] {
			return nil, ErrCycleRef
		}
		visited[cur] = true
		chain = append(chain, cur)

		ext, err := readExtends(cur)
		if err != nil {
			return nil, err
		}
		if ext == "" {
			break
		}
		if !filepath.IsAbs(ext) {
			ext = filepath.Join(filepath.Dir(cur), ext)
		}
		cur = ext
	}

	result := make([]string, len(chain))
	for i, f := range chain {
		result[len(chain)-1-i] = f
	}
	return result, nil
}

// loadFiles unmarshals each file in filenames onto dst in order, so later
// files only override the keys they explicitly set, then validates the
// merged result once.
func loadFiles(dst interface{}, filenames []string) error {
	for _, fn := range filenames {
		data, err := ioutil.ReadFile(fn)
		if err != nil {
			return fmt.Errorf("read %s: %s", fn, err)
		}
		if err := yaml.Unmarshal(data, dst); err != nil {
			return fmt.Errorf("parse %s: %s", fn, err)
		}
	}
	if err := validator.Validate(dst); err != nil {
		if verr, ok := err.(validator.ErrorMap); ok {
			return ValidationError{verr}
		}
		return err
	}
	return nil
}
