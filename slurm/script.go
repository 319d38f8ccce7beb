package slurm

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/hpckit/batchq"
)

// shebang is the interpreter directive every generated script starts with.
const shebang = "#!/bin/bash"

// renderScript builds the batch script text: the interpreter line, one
// "#SBATCH --<key>=<value>" line per directive in sorted key order (Go
// maps are unordered and the output must be deterministic), one
// "#SBATCH --<flag>" line per flag in the order given, then the literal
// command text.
func renderScript(command string, opts *batchq.RunOptions) string {
	var b strings.Builder
	b.WriteString(shebang + "\n")

	keys := make([]string, 0, len(opts.Directives))
	for k := range opts.Directives {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, "#SBATCH --%s=%s\n", k, opts.Directives[k])
	}
	for _, flag := range opts.Flags {
		fmt.Fprintf(&b, "#SBATCH --%s\n", flag)
	}

	b.WriteString(command)
	if !strings.HasSuffix(command, "\n") {
		b.WriteString("\n")
	}
	return b.String()
}

// writeScript writes the rendered script to path unless a file already
// exists there. Existence is a cache: a stale script is not regenerated
// until the path is cleared externally. Returns whether a write happened.
func writeScript(path, command string, opts *batchq.RunOptions) (bool, error) {
	if _, err := os.Stat(path); err == nil {
		return false, nil
	} else if !os.IsNotExist(err) {
		return false, fmt.Errorf("stat script %s: %w", path, err)
	}
	if err := os.WriteFile(path, []byte(renderScript(command, opts)), 0o755); err != nil {
		return false, fmt.Errorf("write script %s: %w", path, err)
	}
	return true, nil
}
