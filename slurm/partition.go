package slurm

import (
	"fmt"
	"time"
)

// Partition upper bounds, exclusive.
const (
	shortMax  = 2 * time.Hour
	mediumMax = 24 * time.Hour
	defqMax   = 4 * 24 * time.Hour
)

// TimePartition returns the "partition" and "time" directives for an
// estimated runtime, padded by buffer (0.25 pads by 25%). The time is
// formatted as d-hh:mm:00. Jobs padded beyond the largest standard
// partition are rejected; queue those on a special partition by hand.
func TimePartition(estimate time.Duration, buffer float64) (map[string]string, error) {
	allocated := time.Duration(float64(estimate) * (1 + buffer))

	d := int(allocated / (24 * time.Hour))
	h := int(allocated/time.Hour) % 24
	m := int(allocated/time.Minute) % 60
	timeStr := fmt.Sprintf("%d-%02d:%02d:00", d, h, m)

	var partition string
	switch {
	case allocated < shortMax:
		partition = "short"
	case allocated < mediumMax:
		partition = "medium"
	case allocated < defqMax:
		partition = "defq"
	default:
		return nil, fmt.Errorf("slurm: %s exceeds the largest standard partition", allocated)
	}

	return map[string]string{
		"partition": partition,
		"time":      timeStr,
	}, nil
}
