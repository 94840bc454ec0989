// Package deps resolves the external programs a cook may shell out to.
package deps

import (
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
)

// Requirement names an external program and what needs it.
type Requirement struct {
	Name        string
	Command     string
	Description string
}

// Status reports whether a requirement resolved on PATH. Path is the
// resolved executable with symlinks followed.
type Status struct {
	Requirement
	Available bool
	Path      string
	Detail    string
}

// CheckBinaries resolves each requirement in order.
func CheckBinaries(requirements []Requirement) []Status {
	results := make([]Status, 0, len(requirements))
	for _, req := range requirements {
		results = append(results, check(req))
	}
	return results
}

func check(req Requirement) Status {
	req.Command = strings.TrimSpace(req.Command)
	req.Description = strings.TrimSpace(req.Description)
	status := Status{Requirement: req}
	if req.Command == "" {
		status.Detail = "command not configured"
		return status
	}
	path, err := exec.LookPath(req.Command)
	if err != nil {
		status.Detail = fmt.Sprintf("binary %q not found", req.Command)
		return status
	}
	if resolved, err := filepath.EvalSymlinks(path); err == nil {
		path = resolved
	}
	status.Available = true
	status.Path = path
	return status
}
