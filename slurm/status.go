package slurm

import (
	"slices"
	"strings"
)

// Status codes recognized in the queue listing. Every other code,
// including ones not yet seen, lands in the unknown bucket.
const (
	codeRunning = "R"
	codePending = "PD"
)

// snapshot is one parsed queue listing. A nil *snapshot on the
// environment means "never populated", which is distinct from a
// populated snapshot with no jobs.
type snapshot struct {
	pending []string
	running []string
	unknown []string

	// skipped counts malformed lines dropped during parsing.
	skipped int
}

func (s *snapshot) inProgress(name string) bool {
	return slices.Contains(s.pending, name) || slices.Contains(s.running, name)
}

// parseQueue turns a raw queue listing into a snapshot. Each line is
// "<status-code>-<job-name>", split on the first dash because job names
// may themselves contain dashes. Blank lines produce no entry and no
// error. Malformed lines (no delimiter, empty name) are skipped and
// counted rather than aborting the whole refresh.
func parseQueue(out []byte) *snapshot {
	snap := &snapshot{}
	for _, line := range strings.Split(string(out), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		code, name, found := strings.Cut(line, "-")
		if !found || name == "" {
			snap.skipped++
			continue
		}
		switch code {
		case codeRunning:
			snap.running = append(snap.running, name)
		case codePending:
			snap.pending = append(snap.pending, name)
		default:
			snap.unknown = append(snap.unknown, name)
		}
	}
	return snap
}
