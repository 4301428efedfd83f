package calibration

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"tablecast/internal/geometry"
)

// ErrMalformedTransform is returned when the persisted matrix cannot be used.
var ErrMalformedTransform = errors.New("calibration: malformed transform file")

const (
	DefaultFile = "perspective.yaml"
	DefaultKey  = "perspective"
)

// Store persists the active perspective transform.
type Store interface {
	Load() (geometry.Transform, error)
	Save(geometry.Transform) error
}

// matrixNode mirrors the opencv-matrix layout (rows, cols, dt, data).
type matrixNode struct {
	Rows int       `yaml:"rows"`
	Cols int       `yaml:"cols"`
	Type string    `yaml:"dt"`
	Data []float64 `yaml:"data,flow"`
}

// FileStore keeps one 3x3 matrix under Key in a YAML file.
type FileStore struct {
	Path string
	Key  string
}

func NewFileStore(path, key string) *FileStore {
	if path == "" {
		path = DefaultFile
	}
	if key == "" {
		key = DefaultKey
	}
	return &FileStore{Path: path, Key: key}
}

func (s *FileStore) Load() (geometry.Transform, error) {
	raw, err := os.ReadFile(s.Path)
	if err != nil {
		return geometry.Transform{}, err
	}

	doc := map[string]matrixNode{}
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return geometry.Transform{}, fmt.Errorf("%w: %v", ErrMalformedTransform, err)
	}
	node, ok := doc[s.Key]
	if !ok {
		return geometry.Transform{}, fmt.Errorf("%w: key %q not found", ErrMalformedTransform, s.Key)
	}
	if node.Rows != 3 || node.Cols != 3 {
		return geometry.Transform{}, fmt.Errorf("%w: want 3x3, got %dx%d", ErrMalformedTransform, node.Rows, node.Cols)
	}
	t, err := geometry.FromValues(node.Data)
	if err != nil {
		return geometry.Transform{}, fmt.Errorf("%w: %v", ErrMalformedTransform, err)
	}
	if !t.IsFinite() {
		return geometry.Transform{}, fmt.Errorf("%w: non-finite entries", ErrMalformedTransform)
	}
	if _, err := t.Inverse(); err != nil {
		return geometry.Transform{}, fmt.Errorf("%w: %v", ErrMalformedTransform, err)
	}
	return t, nil
}

// Save writes the transform to a temp file and renames it over Path.
func (s *FileStore) Save(t geometry.Transform) error {
	doc := map[string]matrixNode{
		s.Key: {Rows: 3, Cols: 3, Type: "d", Data: t.Values()},
	}
	raw, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode transform: %w", err)
	}

	dir := filepath.Dir(s.Path)
	tmp, err := os.CreateTemp(dir, ".perspective-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		return fmt.Errorf("write transform: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close transform: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.Path); err != nil {
		return fmt.Errorf("replace %s: %w", s.Path, err)
	}
	return nil
}
