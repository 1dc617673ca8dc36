// Package file provides a file-based persistence implementation storing one
// JSON document per process definition version.
package file

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/dukex/dataindex/pkg/persistence"
)

const definitionsDir = "process_definitions"

// Persistence implements the persistence.Persistence interface using the file system.
type Persistence struct {
	root           string
	mu             sync.RWMutex
	definitionRepo *ProcessDefinitionRepository
	nodeRepo       *NodeRepository
}

// NewPersistence creates a new instance of Persistence with the specified root directory.
func NewPersistence(root string) *Persistence {
	cleanRoot := strings.Replace(root, "file://", "", 1)

	p := &Persistence{root: cleanRoot}
	p.definitionRepo = &ProcessDefinitionRepository{persistence: p}
	p.nodeRepo = &NodeRepository{persistence: p}

	return p
}

var _ persistence.Persistence = (*Persistence)(nil)

// Close performs any necessary cleanup. For file-based persistence, there is nothing to clean up.
func (fp *Persistence) Close(_ context.Context) error {
	return nil
}

// HealthCheck checks if the file persistence layer is healthy by verifying the root directory exists.
func (fp *Persistence) HealthCheck(_ context.Context) error {
	info, err := os.Stat(fp.root)
	if err != nil {
		return fmt.Errorf("failed to stat persistence root: %w", err)
	}

	if !info.IsDir() {
		return fmt.Errorf("persistence root %s is not a directory", fp.root)
	}

	return nil
}

// ProcessDefinitionRepository returns the definition repository implementation for file persistence.
func (fp *Persistence) ProcessDefinitionRepository() persistence.ProcessDefinitionRepository {
	return fp.definitionRepo
}

// NodeRepository returns the node repository. Nodes live inside their
// definition document.
func (fp *Persistence) NodeRepository() persistence.NodeRepository {
	return fp.nodeRepo
}

func (fp *Persistence) processDir(processID string) string {
	return filepath.Join(fp.root, definitionsDir, pathSegment(processID))
}

func (fp *Persistence) definitionPath(processID, version string) string {
	return filepath.Join(fp.processDir(processID), pathSegment(version)+".json")
}

// pathSegment escapes s so it is always a single, non-special path element.
func pathSegment(s string) string {
	escaped := url.PathEscape(s)

	switch escaped {
	case ".":
		return "%2E"
	case "..":
		return "%2E%2E"
	}

	return escaped
}
