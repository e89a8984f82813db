package handler

import (
	"context"

	"github.com/testbedctl/actorcore/pkg/log"
	"github.com/testbedctl/actorcore/pkg/types"
)

// ContainerRuntime is the narrow substrate dependency a Container
// handler needs: create/start/stop/status/IP, shaped after the
// teacher's own containerd wrapper (CreateContainer/StartContainer/
// StopContainer/GetContainerStatus/GetContainerIP). This package does
// not itself talk to containerd — it is a pluggable illustration of how
// a resource-type handler wires a real runtime client behind the
// Handler interface; a deployment supplies its own ContainerRuntime.
type ContainerRuntime interface {
	CreateContainer(ctx context.Context, reservationID, image string, resources types.Capacities) (containerID string, err error)
	StartContainer(ctx context.Context, containerID string) error
	StopContainer(ctx context.Context, containerID string) error
	ContainerStatus(ctx context.Context, containerID string) (running bool, err error)
	ContainerIP(ctx context.Context, containerID string) (string, error)
}

// Container is a reference Handler for ResourceContainer slivers,
// grounded on the teacher's worker executor loop: pull/create, start,
// monitor, and on teardown stop (spec.md's handler map entry for
// "Container").
type Container struct {
	runtime ContainerRuntime

	// ids remembers the runtime container id assigned to a reservation,
	// so Teardown and Probe can find it again after a restart without
	// re-deriving it from reservation properties parsed ad hoc.
	ids map[string]string
}

// NewContainer builds a Container handler over rt.
func NewContainer(rt ContainerRuntime) *Container {
	return &Container{runtime: rt, ids: make(map[string]string)}
}

func (c *Container) Provision(ctx context.Context, r *types.Reservation) (bool, map[string]string, *types.Error) {
	image := r.Properties["image"]
	if image == "" {
		image = "default_centos_9"
	}

	containerID, err := c.runtime.CreateContainer(ctx, r.ID, image, r.ApprovedCapacities)
	if err != nil {
		return false, nil, types.NewError(types.ErrHandlerFailure, "create container: %v", err)
	}
	if err := c.runtime.StartContainer(ctx, containerID); err != nil {
		return false, nil, types.NewError(types.ErrHandlerFailure, "start container: %v", err)
	}
	c.ids[r.ID] = containerID

	ip, err := c.runtime.ContainerIP(ctx, containerID)
	if err != nil {
		log.WithReservation(r.ID).Warn().Err(err).Msg("container started but IP lookup failed")
	}

	return true, map[string]string{
		"container_id": containerID,
		"ip":           ip,
	}, nil
}

func (c *Container) Teardown(ctx context.Context, r *types.Reservation) *types.Error {
	containerID := c.ids[r.ID]
	if containerID == "" {
		containerID = r.Properties["container_id"]
	}
	if containerID == "" {
		return nil
	}
	if err := c.runtime.StopContainer(ctx, containerID); err != nil {
		return types.NewError(types.ErrHandlerFailure, "stop container: %v", err)
	}
	delete(c.ids, r.ID)
	return nil
}

func (c *Container) Probe(ctx context.Context, r *types.Reservation) (bool, *types.Error) {
	containerID := c.ids[r.ID]
	if containerID == "" {
		containerID = r.Properties["container_id"]
	}
	if containerID == "" {
		return false, nil
	}
	running, err := c.runtime.ContainerStatus(ctx, containerID)
	if err != nil {
		return false, types.NewError(types.ErrHandlerFailure, "probe container status: %v", err)
	}
	return running, nil
}
