/*
Package handler invokes substrate-specific provisioning from the
authority's kernel (spec.md §4.5 step 4, §6 "handler map").

Handler implementations are registered at compile time into a Registry
keyed by ResourceType — there is no dynamic plugin loading, matching the
teacher's own preference for a fixed, typed dispatch table over runtime
reflection. Pool bounds how many Provision/Teardown calls run
concurrently and is the only thing standing between the kernel's queue
and actual substrate I/O: the kernel enqueues a Priming reservation into
Pool.Provision and moves on to the next tick immediately, learning the
outcome only when Pool posts a CompletionEvent back through
kernel.Kernel.Enqueue.

Two reference Handlers ship here:

  - Simulated: always succeeds, for running the full stack with zero
    substrate dependencies.
  - Container: shaped after the teacher's own containerd wrapper
    (CreateContainer/StartContainer/StopContainer/ContainerStatus/
    ContainerIP) and its worker executor loop, but expressed against a
    ContainerRuntime interface rather than a concrete containerd client
    — a deployment supplies the real implementation.

ProbeRestartRecovery implements the safety-probe the teacher's own
health.Checker pattern grounds: a reservation found in PendingPriming at
startup may have actually finished provisioning (or actually failed)
before the process crashed, so it is probed rather than blindly
re-provisioned or blindly marked failed.
*/
package handler
