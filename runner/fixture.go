package runner

import (
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/boyter/gocodewalker"
	"gopkg.in/yaml.v3"

	"github.com/rlch/convexgen"
)

// Expectation is the expected outcome of inserting a case's document.
type Expectation string

// Expectations.
const (
	ExpectValid   Expectation = "valid"
	ExpectInvalid Expectation = "invalid"
)

// idRefPrefix marks a string value that refers to the ID saved by an earlier
// case: "$id:ada".
const idRefPrefix = "$id:"

// Fixture is a parsed fixture file.
//
//	cases:
//	  - name: ada
//	    table: users
//	    doc: { name: Ada, email: ada@example.com }
//	    save: ada
//	  - name: post by ada
//	    table: posts
//	    doc: { title: Hello, author: "$id:ada", tags: [] }
//	  - name: rejects missing email
//	    table: users
//	    doc: { name: Bob }
//	    expect: invalid
//	    path: email
type Fixture struct {
	// Path is the file the fixture was read from.
	Path  string  `yaml:"-"`
	Cases []*Case `yaml:"cases"`
}

// Case is a single document insertion with an expected outcome.
type Case struct {
	Name  string         `yaml:"name"`
	Table string         `yaml:"table"`
	Doc   map[string]any `yaml:"doc"`

	// Expect defaults to valid.
	Expect Expectation `yaml:"expect"`

	// Path, for invalid cases, is a document path that must be among the
	// reported issues.
	Path string `yaml:"path"`

	// Save names the inserted ID for "$id:<name>" references in later cases.
	Save string `yaml:"save"`

	Skip bool `yaml:"skip"`

	// Line is the 1-based line of the case in its file.
	Line int `yaml:"-"`
}

// LoadFixture reads and parses a fixture file.
func LoadFixture(path string) (*Fixture, error) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: fixture paths come from the command line
	if err != nil {
		return nil, fmt.Errorf("reading fixture: %w", err)
	}

	f, err := ReadFixture(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	f.Path = path

	return f, nil
}

// ReadFixture parses fixture YAML and checks its cases.
func ReadFixture(data []byte) (*Fixture, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidFixture, err)
	}

	f := &Fixture{}

	if len(doc.Content) == 0 {
		return f, nil
	}

	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("%w: line %d: expected a mapping", ErrInvalidFixture, root.Line)
	}

	for i := 0; i+1 < len(root.Content); i += 2 {
		key, value := root.Content[i], root.Content[i+1]
		if key.Value != "cases" {
			return nil, fmt.Errorf("%w: line %d: unknown key %q", ErrInvalidFixture, key.Line, key.Value)
		}

		if value.Kind != yaml.SequenceNode {
			return nil, fmt.Errorf("%w: line %d: cases must be a list", ErrInvalidFixture, value.Line)
		}

		for _, node := range value.Content {
			c := &Case{}
			if err := node.Decode(c); err != nil {
				return nil, fmt.Errorf("%w: line %d: %w", ErrInvalidFixture, node.Line, err)
			}

			c.Line = node.Line
			f.Cases = append(f.Cases, c)
		}
	}

	if err := f.check(); err != nil {
		return nil, err
	}

	return f, nil
}

func (f *Fixture) check() error {
	saved := make(map[string]int)

	for i, c := range f.Cases {
		if c.Name == "" {
			c.Name = fmt.Sprintf("case %d", i+1)
		}

		if c.Expect == "" {
			c.Expect = ExpectValid
		}

		switch {
		case c.Table == "":
			return fmt.Errorf("%w: line %d: %q has no table", ErrInvalidFixture, c.Line, c.Name)
		case c.Expect != ExpectValid && c.Expect != ExpectInvalid:
			return fmt.Errorf("%w: line %d: expect must be %q or %q, got %q",
				ErrInvalidFixture, c.Line, ExpectValid, ExpectInvalid, c.Expect)
		case c.Path != "" && c.Expect != ExpectInvalid:
			return fmt.Errorf("%w: line %d: path is only allowed on invalid cases", ErrInvalidFixture, c.Line)
		case c.Save != "" && c.Expect != ExpectValid:
			return fmt.Errorf("%w: line %d: only valid cases can be saved", ErrInvalidFixture, c.Line)
		}

		if c.Save != "" {
			if line, ok := saved[c.Save]; ok {
				return fmt.Errorf("%w: line %d: %q is already saved on line %d", ErrInvalidFixture, c.Line, c.Save, line)
			}

			saved[c.Save] = c.Line
		}
	}

	return nil
}

// resolve returns the case document with "$id:<name>" strings replaced by
// saved IDs and {"$bytes": "<base64>"} maps replaced by bytes.
func resolve(doc map[string]any, ids map[string]convexgen.ID) (convexgen.Document, error) {
	out, err := resolveValue(doc, ids)
	if err != nil {
		return nil, err
	}

	m, _ := out.(map[string]any)

	return convexgen.Normalize(m), nil
}

func resolveValue(value any, ids map[string]convexgen.ID) (any, error) {
	switch v := value.(type) {
	case string:
		name, ok := strings.CutPrefix(v, idRefPrefix)
		if !ok {
			return v, nil
		}

		id, ok := ids[name]
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownRef, name)
		}

		return string(id), nil
	case []any:
		out := make([]any, len(v))
		for i, elem := range v {
			r, err := resolveValue(elem, ids)
			if err != nil {
				return nil, err
			}

			out[i] = r
		}

		return out, nil
	case map[string]any:
		if enc, ok := v["$bytes"].(string); ok && len(v) == 1 {
			b, err := base64.StdEncoding.DecodeString(enc)
			if err != nil {
				return nil, fmt.Errorf("$bytes: %w", err)
			}

			return b, nil
		}

		out := make(map[string]any, len(v))
		for k, elem := range v {
			r, err := resolveValue(elem, ids)
			if err != nil {
				return nil, err
			}

			out[k] = r
		}

		return out, nil
	default:
		return v, nil
	}
}

// FindFixtures walks root for .yaml and .yml files, respecting .gitignore.
// Paths are returned sorted.
func FindFixtures(root string) ([]string, error) {
	if info, err := os.Stat(root); err == nil && !info.IsDir() {
		return []string{root}, nil
	}

	fileListQueue := make(chan *gocodewalker.File, 100)

	fileWalker := gocodewalker.NewFileWalker(root, fileListQueue)
	fileWalker.AllowListExtensions = []string{"yaml", "yml"}

	var walkErr error
	fileWalker.SetErrorHandler(func(e error) bool {
		walkErr = e
		return true
	})

	var (
		wg    sync.WaitGroup
		paths []string
	)

	wg.Add(1)
	go func() {
		defer wg.Done()
		for f := range fileListQueue {
			// Config files live next to fixtures in small projects.
			if !strings.Contains(filepath.Base(f.Location), "convexgen.") {
				paths = append(paths, f.Location)
			}
		}
	}()

	if err := fileWalker.Start(); err != nil {
		return nil, err
	}

	wg.Wait()

	if walkErr != nil {
		return nil, walkErr
	}

	slices.Sort(paths)

	return paths, nil
}
