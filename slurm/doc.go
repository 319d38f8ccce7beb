// Package slurm implements the batchq.Environment contract against a
// Slurm-style batch scheduler, shelling out to three external commands:
// sbatch to submit a generated batch script, squeue to list the user's
// queue, and scancel to cancel by job name. All three are behind the
// Commander port so the submission state machine is testable without a
// scheduler present.
//
// # Status staleness
//
// The environment keeps a cached snapshot of the queue listing. The
// cache is populated lazily on the first status query and after that is
// reused as-is: submission and cancellation never invalidate it. This
// avoids chatty polling of a shared scheduler, at a documented cost:
// in an interactive or long-lived session, call Refresh whenever a job
// may have changed status. Cancellation in particular leaves the cache
// untouched, so a freshly cancelled job still appears in progress until
// the next Refresh.
//
// # Batch scripts
//
// The generated script at RunOptions.ScriptPath is treated as a cache:
// if a file already exists there it is reused without regeneration,
// even if the job's command or directives have since changed. Delete
// the file to force regeneration.
package slurm
