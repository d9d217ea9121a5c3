package infra

import (
	"runtime"
	"strings"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/process"

	"github.com/nullpane/reflexd/internal/domain"
)

// ProcessProbeImpl implements domain.ProcessProbe using gopsutil.
type ProcessProbeImpl struct{}

// NewProcessProbe creates a new process probe.
func NewProcessProbe() domain.ProcessProbe {
	return &ProcessProbeImpl{}
}

// FindByName returns PIDs of processes matching the pattern
// (case-insensitive substring).
func (pp *ProcessProbeImpl) FindByName(pattern string) ([]int, error) {
	procs, err := process.Processes()
	if err != nil {
		return nil, err
	}

	var found []int
	patternLower := strings.ToLower(pattern)

	for _, p := range procs {
		name, err := p.Name()
		if err != nil {
			continue // Process may have exited
		}
		if strings.EqualFold(name, pattern) || strings.Contains(strings.ToLower(name), patternLower) {
			found = append(found, int(p.Pid))
		}
	}

	return found, nil
}

// LogicalCPUs returns the logical core count, used to cap inference
// threads.
func (pp *ProcessProbeImpl) LogicalCPUs() int {
	if n, err := cpu.Counts(true); err == nil && n > 0 {
		return n
	}
	return runtime.NumCPU()
}

// Ensure ProcessProbeImpl implements domain.ProcessProbe.
var _ domain.ProcessProbe = (*ProcessProbeImpl)(nil)
