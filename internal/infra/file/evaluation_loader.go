// Package file reads evaluation banks authored as YAML files.
package file

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"evaluation-service/internal/domain"
	"gopkg.in/yaml.v3"
)

var bankExtensions = []string{".yaml", ".yml"}

// EvaluationLoader serves banks from a directory, one file per evaluation
// named after its id.
type EvaluationLoader struct {
	dir string
}

func NewEvaluationLoader(dir string) *EvaluationLoader {
	return &EvaluationLoader{dir: dir}
}

func (l *EvaluationLoader) LoadEvaluation(_ context.Context, evaluationID string) (domain.Evaluation, error) {
	if evaluationID == "" || strings.ContainsAny(evaluationID, `/\`) || strings.Contains(evaluationID, "..") {
		return domain.Evaluation{}, domain.ErrEvaluationNotFound
	}
	for _, ext := range bankExtensions {
		e, err := ReadBank(filepath.Join(l.dir, evaluationID+ext))
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		return e, err
	}
	return domain.Evaluation{}, domain.ErrEvaluationNotFound
}

// ReadBank decodes one YAML bank. The id defaults to the file name.
func ReadBank(path string) (domain.Evaluation, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.Evaluation{}, err
	}
	var e domain.Evaluation
	if err := yaml.Unmarshal(data, &e); err != nil {
		return domain.Evaluation{}, fmt.Errorf("parse %s: %w", path, err)
	}
	if e.ID == "" {
		e.ID = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return e, nil
}

// ReadBanks reads a single bank file or every bank in a directory.
func ReadBanks(path string) ([]domain.Evaluation, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		e, err := ReadBank(path)
		if err != nil {
			return nil, err
		}
		return []domain.Evaluation{e}, nil
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, entry := range entries {
		if entry.IsDir() || !isBank(entry.Name()) {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)

	out := make([]domain.Evaluation, 0, len(names))
	for _, name := range names {
		e, err := ReadBank(filepath.Join(path, name))
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

func isBank(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, known := range bankExtensions {
		if ext == known {
			return true
		}
	}
	return false
}
