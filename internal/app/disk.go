package app

import "syscall"

// diskUsage reports capacity of the filesystem holding the TLE cache, or
// nil when path cannot be inspected.
func diskUsage(path string) map[string]any {
	var stat syscall.Statfs_t
	if err := syscall.Statfs(path, &stat); err != nil {
		return nil
	}
	bsize := uint64(stat.Bsize)
	total := stat.Blocks * bsize
	free := stat.Bfree * bsize
	return map[string]any{
		"total_bytes":     total,
		"used_bytes":      total - free,
		"available_bytes": stat.Bavail * bsize,
	}
}
