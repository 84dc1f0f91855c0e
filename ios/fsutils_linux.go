// Package ios reads local storage capacity for populating
// metrics.System.StorageAvailableBytes (§6). Grounded on the teacher's own
// ios/fsutils_linux.go (GetFSStats); its DirSizeOnDisk (shells out to `du`)
// and GetATime helpers aren't wired to anything in this module's scope and
// are dropped rather than kept unused (see DESIGN.md).
/*
 * Copyright (c) 2018-2023, NVIDIA CORPORATION. All rights reserved.
 */
package ios

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// FSStats is one path's filesystem capacity, in the units statfs(2)
// reports them.
type FSStats struct {
	Blocks     uint64 // total data blocks
	Available  uint64 // free blocks available to an unprivileged user
	BlockBytes int64  // bytes per block
}

// AvailableBytes is Available*BlockBytes - the number GetFSStats's callers
// actually want.
func (s FSStats) AvailableBytes() int64 { return int64(s.Available) * s.BlockBytes }

// GetFSStats statfs(2)s path and reports its block accounting.
func GetFSStats(path string) (FSStats, error) {
	var raw unix.Statfs_t
	if err := unix.Statfs(path, &raw); err != nil {
		return FSStats{}, fmt.Errorf("ios: statfs %s: %w", path, err)
	}
	return FSStats{Blocks: raw.Blocks, Available: raw.Bavail, BlockBytes: raw.Bsize}, nil
}
