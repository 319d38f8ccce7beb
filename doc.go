// Package batchq manages the lifecycle of computational jobs submitted to
// a local execution context, a Slurm-style batch cluster, or a Docker
// daemon, through one Environment abstraction.
//
// batchq is designed as a library, not a service. The caller owns both the
// jobs and the environments: a Job supplies identity, lifecycle predicates,
// and a command; an Environment decides whether submission is legal,
// materializes backend artifacts, and launches the process.
//
// # Quick Start
//
//	env, err := slurm.New("alice")
//	if err != nil { ... }
//
//	err = env.Run(ctx, myJob,
//	    batchq.WithDirectives(map[string]string{"time": "0-02:00:00"}),
//	    batchq.WithScriptPath("/scratch/myjob.sh"),
//	)
//
// # Architecture
//
// Every backend runs the same submission state machine (Submit), which
// consults the job's predicates in a fixed order: blocked, ready, complete,
// in-progress, failed. When the caller passes WithForce it applies the
// least destructive corrective action that unblocks the submission.
// Backend differences (how to tell a job is in flight, how to cancel it,
// what artifacts to write) are supplied as Hooks.
//
// Cluster status is a cached, point-in-time snapshot refreshed only on
// demand; see the slurm package for the staleness contract.
//
// batchq issues single-shot, fire-and-forget submissions. It provides no
// cross-process mutual exclusion: two processes submitting the same job
// concurrently can double-submit, because the only guards are the job's
// own predicates and a possibly stale status snapshot. Environments are
// not safe for concurrent use from multiple goroutines without external
// synchronization.
package batchq
