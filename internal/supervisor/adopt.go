package supervisor

import (
	"context"
	"path/filepath"
	"strconv"
	"strings"

	gopsprocess "github.com/shirou/gopsutil/v4/process"
)

// findPIDForPort scans the process table for a process whose command line
// names binaryPath (by base name, to tolerate relative-vs-absolute
// invocation) and a "--port <port>" flag matching port. This is the
// port→PID resolution base spec §4.4/§9 describes as deliberately
// avoiding PID files, so adoption tolerates stale files and control-plane
// restarts.
func findPIDForPort(ctx context.Context, binaryPath string, port int) (int32, bool) {
	procs, err := gopsprocess.ProcessesWithContext(ctx)
	if err != nil {
		return 0, false
	}
	binaryName := filepath.Base(binaryPath)
	portStr := strconv.Itoa(port)

	for _, p := range procs {
		cmdline, err := p.CmdlineSliceWithContext(ctx)
		if err != nil || len(cmdline) == 0 {
			continue
		}
		if !strings.Contains(filepath.Base(cmdline[0]), binaryName) {
			continue
		}
		if cmdlineHasPort(cmdline, portStr) {
			return p.Pid, true
		}
	}
	return 0, false
}

// cmdlineHasPort reports whether portStr appears as the value of a
// "--port"/"-port"/"--port=<n>" style flag anywhere in the argument list.
func cmdlineHasPort(args []string, portStr string) bool {
	for i, a := range args {
		switch {
		case a == "--port" || a == "-port":
			if i+1 < len(args) && args[i+1] == portStr {
				return true
			}
		case strings.HasPrefix(a, "--port=") && strings.TrimPrefix(a, "--port=") == portStr:
			return true
		}
	}
	return false
}
