// Package sys provides methods to read system information
/*
 * Copyright (c) 2018-2023, NVIDIA CORPORATION. All rights reserved.
 */
package sys

import (
	"bufio"
	"errors"
	"os"
	"runtime"
	"strconv"
	"strings"

	"github.com/nvstream/adk-core/cmn/nlog"
)

const (
	rootProcess     = "/proc/1/cgroup"
	contCPULimit    = "/sys/fs/cgroup/cpu/cpu.cfs_quota_us"
	contCPUPeriod   = "/sys/fs/cgroup/cpu/cpu.cfs_period_us"
	hostLoadAvgPath = "/proc/loadavg"
)

// isContainerized returns true if the application is running inside a
// container (docker/lxc/k8s).
//
// How to detect being inside a container:
// https://stackoverflow.com/questions/20010199/how-to-determine-if-a-process-runs-inside-lxc-docker
func isContainerized() (yes bool) {
	err := readLines(rootProcess, func(line string) bool {
		if strings.Contains(line, "docker") || strings.Contains(line, "lxc") || strings.Contains(line, "kube") {
			yes = true
			return false
		}
		return true
	})
	if err != nil {
		nlog.Errorf("failed to read system info: %v", err)
	}
	return
}

// containerNumCPU returns an approximate number of CPUs allocated to the
// container. By default a container runs without limits and its
// cfs_quota_us is negative (-1). When a container starts with limited CPU
// usage, its quota is between 0.01 CPU and the number of CPUs on the host
// machine. The result is rounded up.
func containerNumCPU() (int, error) {
	quotaInt, err := readOneInt64(contCPULimit)
	if err != nil {
		return 0, err
	}
	// negative quota means "unlimited" - all hardware CPUs are used.
	if quotaInt <= 0 {
		return runtime.NumCPU(), nil
	}
	period, err := readOneInt64(contCPUPeriod)
	if err != nil {
		return 0, err
	}
	if period <= 0 {
		return 0, errors.New("sys: failed to read container CPU period")
	}
	approx := (quotaInt + period - 1) / period
	if approx < 1 {
		approx = 1
	}
	return int(approx), nil
}

// LoadAverage returns the system load average.
func LoadAverage() (avg LoadAvg, err error) {
	line, err := readOneLine(hostLoadAvgPath)
	if err != nil {
		return avg, err
	}
	fields := strings.Fields(line)
	if len(fields) < 3 {
		return avg, errors.New("sys: malformed /proc/loadavg")
	}
	if avg.One, err = strconv.ParseFloat(fields[0], 64); err != nil {
		return avg, err
	}
	if avg.Five, err = strconv.ParseFloat(fields[1], 64); err != nil {
		return avg, err
	}
	avg.Fifteen, err = strconv.ParseFloat(fields[2], 64)
	return avg, err
}

// readLines scans path line by line, calling fn for each; fn returns false
// to stop early.
func readLines(path string, fn func(line string) bool) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if !fn(scanner.Text()) {
			break
		}
	}
	return scanner.Err()
}

func readOneLine(path string) (string, error) {
	var line string
	err := readLines(path, func(l string) bool {
		line = l
		return false
	})
	return line, err
}

func readOneInt64(path string) (int64, error) {
	line, err := readOneLine(path)
	if err != nil {
		return 0, err
	}
	return strconv.ParseInt(strings.TrimSpace(line), 10, 64)
}
