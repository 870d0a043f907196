// Package health serves the agent's gRPC health status and carries system health samples.
package health

import "time"

// Sample is one reading taken by the agent health monitor.
type Sample struct {
	Time           time.Time `json:"ts"`
	AvailableRAMGB float64   `json:"available_ram_gb"`
	FreeDiskGB     float64   `json:"free_disk_gb"`
	Critical       bool      `json:"critical"`
}
