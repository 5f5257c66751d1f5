// Package gc removes stopped containers bay left behind on a host.
package gc

import (
	"context"
	"errors"
	"fmt"

	"github.com/onkernel/bay/lib/docker"
	"github.com/onkernel/bay/lib/logger"
	"github.com/onkernel/bay/lib/tasks"
)

// collectable are the runtime states of containers that will never run again
var collectable = map[string]bool{
	"created": true,
	"exited":  true,
	"dead":    true,
}

// Collector removes orphaned containers.
type Collector struct{}

// NewCollector creates a collector.
func NewCollector() *Collector {
	return &Collector{}
}

// Containers removes every stopped bay container on host and returns how
// many were removed.
func (c *Collector) Containers(ctx context.Context, host *docker.Host, task *tasks.Task) (int, error) {
	log := logger.FromContext(ctx)
	child := task.NewChild("Removing stopped containers")

	all, err := host.Client.ListContainers(ctx, true)
	if err != nil {
		child.Finish("Failed", tasks.Bad)
		return 0, fmt.Errorf("gc containers: %w", err)
	}

	removed := 0
	for _, con := range all {
		if !collectable[con.State] {
			continue
		}
		if err := host.Client.RemoveContainer(ctx, con.ID); err != nil && !errors.Is(err, docker.ErrNotFound) {
			child.Finish("Failed", tasks.Bad)
			return removed, fmt.Errorf("gc container %s: %w", con.Name, err)
		}
		removed++
		log.DebugContext(ctx, "removed stopped container", "container", con.Name, "host", host.Name)
	}

	child.Finish(fmt.Sprintf("Removed %d", removed), tasks.Good)
	return removed, nil
}
