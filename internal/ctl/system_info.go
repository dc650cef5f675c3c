package ctl

import (
	"fmt"
	"strings"
)

// SystemInfo shows runtime information from the daemon.
func SystemInfo(baseURL string, jsonOutput bool) error {
	baseURL = strings.TrimRight(baseURL, "/")

	var resp struct {
		GoVersion string `json:"go_version"`
		OS        string `json:"os"`
		Arch      string `json:"arch"`
		DataRoot  string `json:"data_root"`
		Disk      *struct {
			TotalBytes     uint64 `json:"total_bytes"`
			UsedBytes      uint64 `json:"used_bytes"`
			AvailableBytes uint64 `json:"available_bytes"`
		} `json:"disk,omitempty"`
	}
	if err := getJSON(baseURL, "/api/system", &resp); err != nil {
		return err
	}

	if jsonOutput {
		return printJSON(resp)
	}

	fmt.Fprintln(stdout)
	fmt.Fprintln(stdout, header("  SYSTEM INFO"))
	fmt.Fprintln(stdout, rule(50))
	fmt.Fprintf(stdout, "  Go version:  %s\n", resp.GoVersion)
	fmt.Fprintf(stdout, "  OS/Arch:     %s/%s\n", resp.OS, resp.Arch)
	fmt.Fprintf(stdout, "  Data root:   %s\n", resp.DataRoot)

	if resp.Disk != nil {
		fmt.Fprintf(stdout, "  Disk total:  %s\n", formatBytes(resp.Disk.TotalBytes))
		fmt.Fprintf(stdout, "  Disk used:   %s\n", formatBytes(resp.Disk.UsedBytes))
		fmt.Fprintf(stdout, "  Disk avail:  %s\n", formatBytes(resp.Disk.AvailableBytes))
	}

	fmt.Fprintln(stdout)
	return nil
}
