// Package documents is the boundary to the document generation collaborator.
// Closure documents (receipts, period reports) are produced elsewhere; the
// engine only requests them best-effort, so a generation failure is never
// fatal to the closure that triggered it.
package documents

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"pos-closing-service/internal/models"
)

// Result reports the outcome of one generation request.
type Result struct {
	Success  bool   `json:"success"`
	FilePath string `json:"filePath,omitempty"`
	Error    string `json:"error,omitempty"`
}

// Generator produces the closure document for a freshly closed period.
type Generator interface {
	GenerateClosureDocument(ctx context.Context, record *models.ClosureRecord, transactions []*models.SaleTransaction) (*Result, error)
}

// FileGenerator writes closure summaries as JSON files into a directory.
// It stands in for the real rendering collaborator in CLI and test wiring.
type FileGenerator struct {
	Dir string
}

// NewFileGenerator creates a generator writing into dir.
func NewFileGenerator(dir string) *FileGenerator {
	return &FileGenerator{Dir: dir}
}

// GenerateClosureDocument implements Generator.
func (g *FileGenerator) GenerateClosureDocument(ctx context.Context, record *models.ClosureRecord, transactions []*models.SaleTransaction) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if err := os.MkdirAll(g.Dir, 0o755); err != nil {
		return &Result{Success: false, Error: err.Error()}, fmt.Errorf("creating document directory: %w", err)
	}

	payload, err := json.MarshalIndent(struct {
		Record       *models.ClosureRecord     `json:"record"`
		Transactions []*models.SaleTransaction `json:"transactions"`
	}{record, transactions}, "", "  ")
	if err != nil {
		return &Result{Success: false, Error: err.Error()}, fmt.Errorf("encoding closure document: %w", err)
	}

	path := filepath.Join(g.Dir, fmt.Sprintf("closure_%s_%s.json", record.PeriodType, record.PeriodKey))
	if err := os.WriteFile(path, payload, 0o644); err != nil {
		return &Result{Success: false, Error: err.Error()}, fmt.Errorf("writing closure document: %w", err)
	}

	return &Result{Success: true, FilePath: path}, nil
}

// NopGenerator ignores every request. Used when document generation is
// disabled.
type NopGenerator struct{}

// GenerateClosureDocument implements Generator.
func (NopGenerator) GenerateClosureDocument(ctx context.Context, record *models.ClosureRecord, transactions []*models.SaleTransaction) (*Result, error) {
	return &Result{Success: true}, nil
}

// FailingGenerator fails every request. Used by tests to verify that
// document failures stay non-fatal.
type FailingGenerator struct {
	Err error
}

// GenerateClosureDocument implements Generator.
func (g *FailingGenerator) GenerateClosureDocument(ctx context.Context, record *models.ClosureRecord, transactions []*models.SaleTransaction) (*Result, error) {
	err := g.Err
	if err == nil {
		err = fmt.Errorf("document generation unavailable")
	}
	return &Result{Success: false, Error: err.Error()}, err
}
