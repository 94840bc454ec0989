package preflight

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"golang.org/x/sys/unix"

	"kiln/internal/config"
	"kiln/internal/deps"
	"kiln/internal/logging"
	"kiln/internal/platform"
	"kiln/internal/toolchain"
)

// CheckDirectoryAccess verifies that the directory exists and is readable,
// and writable when writable is set.
func CheckDirectoryAccess(name, path string, writable bool) Result {
	if strings.TrimSpace(path) == "" {
		return Result{Name: name, Detail: "not configured"}
	}
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	mode := uint32(unix.R_OK | unix.X_OK)
	access := "read ok"
	if writable {
		mode |= unix.W_OK
		access = "read/write ok"
	}
	if err := unix.Access(path, mode); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (%s)", path, access)}
}

// CheckOutputRoot verifies the output root is writable. A root that does not
// exist yet passes when its nearest existing parent is writable.
func CheckOutputRoot(name, path string) Result {
	if strings.TrimSpace(path) == "" {
		return Result{Name: name, Detail: "not configured"}
	}
	dir := nearestExisting(path)
	res := CheckDirectoryAccess(name, dir, true)
	if res.Passed && dir != filepath.Clean(path) {
		res.Detail = fmt.Sprintf("%s (will be created under %s)", path, dir)
	}
	return res
}

// CheckFreeSpace verifies the filesystem holding path has at least minMiB
// available to unprivileged users.
func CheckFreeSpace(name, path string, minMiB int) Result {
	dir := nearestExisting(path)
	var st unix.Statfs_t
	if err := unix.Statfs(dir, &st); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: statfs: %v)", dir, err)}
	}
	free := uint64(st.Bavail) * uint64(st.Bsize)
	need := uint64(minMiB) * humanize.MiByte
	if free < need {
		return Result{Name: name, Detail: fmt.Sprintf("%s free on %s, need %s",
			humanize.IBytes(free), dir, humanize.IBytes(need))}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s free on %s", humanize.IBytes(free), dir)}
}

// CheckToolchain reports one result per capability of the target: exec
// bindings must resolve on PATH and required capabilities must be bound.
// A final result confirms the whole binding resolves.
func CheckToolchain(ctx context.Context, id platform.ID, cfg config.Toolchain) []Result {
	bindings := []struct {
		capability string
		value      string
	}{
		{toolchain.CapabilityTexture, cfg.Texture},
		{toolchain.CapabilityMesh, cfg.Mesh},
		{toolchain.CapabilitySound, cfg.Sound},
	}
	required := make(map[string]bool)
	for _, c := range toolchain.Required(id) {
		required[c] = true
	}

	var results []Result
	var reqs []deps.Requirement
	for _, b := range bindings {
		name := fmt.Sprintf("%s %s toolchain", id, b.capability)
		value := strings.TrimSpace(b.value)
		switch {
		case value == "":
			if required[b.capability] {
				results = append(results, Result{Name: name, Detail: "required but not bound"})
			} else {
				results = append(results, Result{Name: name, Passed: true, Detail: "not bound"})
			}
		case strings.HasPrefix(value, "exec:"):
			program, ok := toolchain.ExecProgram(value)
			if !ok {
				results = append(results, Result{Name: name, Detail: fmt.Sprintf("malformed binding %q", value)})
				continue
			}
			reqs = append(reqs, deps.Requirement{
				Name:        name,
				Command:     program,
				Description: b.capability + " conversion",
			})
		default:
			results = append(results, Result{Name: name, Passed: true, Detail: value})
		}
	}
	for _, status := range deps.CheckBinaries(reqs) {
		if status.Available {
			results = append(results, Result{Name: status.Name, Passed: true, Detail: status.Path})
			continue
		}
		results = append(results, Result{Name: status.Name, Detail: status.Detail})
	}

	name := fmt.Sprintf("%s toolchain binding", id)
	if _, err := toolchain.Bind(ctx, id, cfg, logging.NewNop()); err != nil {
		results = append(results, Result{Name: name, Detail: err.Error()})
	} else {
		results = append(results, Result{Name: name, Passed: true, Detail: "resolves"})
	}
	return results
}

func nearestExisting(path string) string {
	dir := filepath.Clean(path)
	for {
		if _, err := os.Stat(dir); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return dir
		}
		dir = parent
	}
}
