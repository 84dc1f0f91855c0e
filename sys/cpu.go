// Package sys reads host system information - CPU count and load average -
// for populating metrics.System (§6). Grounded on the teacher's own
// sys/cpu.go and sys/cpu_linux.go, which read this module's scope but
// depend on cos.ReadLines/ReadOneInt64/ReadOneUint64/ReadOneLine helpers
// that never made it into the retrieved cmn/cos (see DESIGN.md); this
// rewrite keeps the teacher's NumCPU/Containerized/LoadAverage surface and
// container-cgroup-quota idiom but reads the /proc files directly with the
// standard library instead of those missing helpers.
/*
 * Copyright (c) 2018-2023, NVIDIA CORPORATION. All rights reserved.
 */
package sys

import (
	"os"
	"runtime"

	"github.com/nvstream/adk-core/cmn/nlog"
)

const maxProcsEnvVar = "GOMAXPROCS"

// LoadAvg mirrors /proc/loadavg's three averaging windows.
type LoadAvg struct {
	One, Five, Fifteen float64
}

var (
	contCPUs      int
	containerized bool
)

func init() {
	contCPUs = runtime.NumCPU()
	if containerized = isContainerized(); containerized {
		if c, err := containerNumCPU(); err == nil {
			contCPUs = c
		} else {
			nlog.Errorln(err)
		}
	}
}

// Containerized reports whether the process appears to be running inside
// a container (docker/lxc/kubernetes).
func Containerized() bool { return containerized }

// NumCPU returns the number of CPUs available to this process: the
// cgroup-quota-derived count when containerized, runtime.NumCPU()
// otherwise.
func NumCPU() int { return contCPUs }

// SetMaxProcs lowers GOMAXPROCS to NumCPU when it exceeds it, unless
// GOMAXPROCS is set in the environment. It never raises GOMAXPROCS.
func SetMaxProcs() {
	if val, exists := os.LookupEnv(maxProcsEnvVar); exists {
		nlog.Warningf("GOMAXPROCS is set via Go environment %q: %q", maxProcsEnvVar, val)
		return
	}
	maxprocs := runtime.GOMAXPROCS(0)
	ncpu := NumCPU()
	if maxprocs > ncpu {
		nlog.Warningf("reducing GOMAXPROCS (%d) to %d (num CPUs)", maxprocs, ncpu)
		runtime.GOMAXPROCS(ncpu)
	}
}
