package main

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jonathan/bin-crew/internal/schemas"
	"github.com/jonathan/bin-crew/internal/store/memory"
	"github.com/jonathan/bin-crew/internal/types"
	"gopkg.in/yaml.v3"
)

//go:embed seed.schema.json
var seedSchemaSource string

var seedSchema = schemas.MustCompile("seed.schema.json", seedSchemaSource)

// seedFile is the fixture format accepted by --seed.
type seedFile struct {
	Employees []types.Employee       `json:"employees"`
	Jobs      []types.Job            `json:"jobs"`
	Training  []types.TrainingRecord `json:"training_records"`
}

type seedCounts struct {
	Employees int
	Jobs      int
	Training  int
}

// parseSeed decodes a JSON or YAML fixture. YAML is converted through JSON so
// both formats share the json field names.
func parseSeed(path string, data []byte) (*seedFile, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if ext == ".yaml" || ext == ".yml" {
		var raw any
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("failed to parse seed YAML: %w", err)
		}
		converted, err := json.Marshal(raw)
		if err != nil {
			return nil, fmt.Errorf("failed to convert seed YAML: %w", err)
		}
		data = converted
	}

	if err := seedSchema.ValidateJSON(data); err != nil {
		return nil, err
	}

	var seed seedFile
	if err := json.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("failed to parse seed file %s: %w", path, err)
	}
	return &seed, nil
}

// loadSeed fills the in-memory store from a fixture file.
func loadSeed(ctx context.Context, mem *memory.Store, path string) (seedCounts, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return seedCounts{}, fmt.Errorf("failed to read seed file: %w", err)
	}
	seed, err := parseSeed(path, data)
	if err != nil {
		return seedCounts{}, err
	}

	for _, emp := range seed.Employees {
		if emp.ID == "" {
			return seedCounts{}, fmt.Errorf("seed employee %q has no id", emp.Name)
		}
		mem.PutEmployee(emp)
	}
	for _, job := range seed.Jobs {
		if job.ID == "" {
			return seedCounts{}, fmt.Errorf("seed job for %q has no id", job.CustomerName)
		}
		if _, err := types.ParseJobStatus(string(job.Status)); err != nil {
			return seedCounts{}, fmt.Errorf("seed job %s: %w", job.ID, err)
		}
		mem.PutJob(job)
	}
	for i := range seed.Training {
		if err := mem.SaveTrainingRecord(ctx, &seed.Training[i]); err != nil {
			return seedCounts{}, fmt.Errorf("seed training record %d: %w", i, err)
		}
	}
	return seedCounts{Employees: len(seed.Employees), Jobs: len(seed.Jobs), Training: len(seed.Training)}, nil
}
