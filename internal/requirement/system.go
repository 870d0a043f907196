package requirement

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"
)

const bytesPerGB = 1 << 30

// SystemMetrics reads memory from /proc/meminfo (or sysinfo(2)) and disk space with statfs(2).
type SystemMetrics struct {
	// MeminfoPath defaults to /proc/meminfo.
	MeminfoPath string
	// DiskPath defaults to the user's home directory.
	DiskPath string
}

// AvailableRAMGB returns MemAvailable in GiB, falling back to free plus buffer RAM.
func (m SystemMetrics) AvailableRAMGB() (float64, error) {
	path := m.MeminfoPath
	if path == "" {
		path = "/proc/meminfo"
	}
	if data, err := os.ReadFile(path); err == nil {
		if kb, ok := parseMemAvailable(data); ok {
			return float64(kb) * 1024 / bytesPerGB, nil
		}
	}

	var info unix.Sysinfo_t
	if err := unix.Sysinfo(&info); err != nil {
		return 0, fmt.Errorf("sysinfo: %w", err)
	}
	unit := uint64(info.Unit)
	if unit == 0 {
		unit = 1
	}
	free := (uint64(info.Freeram) + uint64(info.Bufferram)) * unit
	return float64(free) / bytesPerGB, nil
}

// FreeDiskGB returns space available to unprivileged users on DiskPath's filesystem in GiB.
func (m SystemMetrics) FreeDiskGB() (float64, error) {
	path := m.DiskPath
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return 0, fmt.Errorf("resolve home directory: %w", err)
		}
		path = home
	}

	var stat unix.Statfs_t
	if err := unix.Statfs(path, &stat); err != nil {
		return 0, fmt.Errorf("statfs %s: %w", path, err)
	}
	return float64(stat.Bavail) * float64(stat.Bsize) / bytesPerGB, nil
}

func parseMemAvailable(data []byte) (uint64, bool) {
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := scanner.Text()
		rest, ok := strings.CutPrefix(line, "MemAvailable:")
		if !ok {
			continue
		}
		fields := strings.Fields(rest)
		if len(fields) == 0 {
			return 0, false
		}
		kb, err := strconv.ParseUint(fields[0], 10, 64)
		if err != nil {
			return 0, false
		}
		return kb, true
	}
	return 0, false
}
