// Package requirement gates mode activation on live system metrics.
package requirement

import (
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"

	"github.com/rbright/modus/internal/logging"
)

// Requirement names accepted in mode definitions.
const (
	MinRAMGB      = "min_ram_gb"
	MinFreeDiskGB = "min_free_disk_gb"
)

// ErrRequirementNotMet is wrapped by every *NotMetError.
var ErrRequirementNotMet = errors.New("requirement: not met")

// Supported reports whether name is a known requirement.
func Supported(name string) bool {
	return name == MinRAMGB || name == MinFreeDiskGB
}

// NotMetError names the failing requirement with its threshold and the observed value.
// Err is set when the metric could not be read at all.
type NotMetError struct {
	Requirement string
	Threshold   float64
	Observed    float64
	Err         error
}

func (e *NotMetError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("requirement %s not met: cannot read metric: %v", e.Requirement, e.Err)
	}
	return fmt.Sprintf("requirement %s not met: need %.2f GB, have %.2f GB", e.Requirement, e.Threshold, e.Observed)
}

func (e *NotMetError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrRequirementNotMet, e.Err}
	}
	return []error{ErrRequirementNotMet}
}

// Metrics reads the live values requirements are compared against.
type Metrics interface {
	AvailableRAMGB() (float64, error)
	FreeDiskGB() (float64, error)
}

// Checker evaluates requirement maps against Metrics.
type Checker struct {
	metrics Metrics
	logger  *slog.Logger
}

// NewChecker builds a checker. Nil metrics reads the running system.
func NewChecker(metrics Metrics, logger *slog.Logger) *Checker {
	if metrics == nil {
		metrics = SystemMetrics{}
	}
	return &Checker{metrics: metrics, logger: logging.OrDiscard(logger)}
}

// Check evaluates requirements in name order and returns the first unmet one.
func (c *Checker) Check(requirements map[string]float64) error {
	for _, name := range slices.Sorted(maps.Keys(requirements)) {
		threshold := requirements[name]

		var read func() (float64, error)
		switch name {
		case MinRAMGB:
			read = c.metrics.AvailableRAMGB
		case MinFreeDiskGB:
			read = c.metrics.FreeDiskGB
		default:
			c.logger.Warn("unknown requirement skipped", "requirement", name)
			continue
		}

		observed, err := read()
		if err != nil {
			return &NotMetError{Requirement: name, Threshold: threshold, Err: err}
		}
		if observed < threshold {
			c.logger.Info("requirement not met",
				"requirement", name,
				"threshold", threshold,
				"observed", observed,
			)
			return &NotMetError{Requirement: name, Threshold: threshold, Observed: observed}
		}
		c.logger.Debug("requirement met", "requirement", name, "threshold", threshold, "observed", observed)
	}
	return nil
}
