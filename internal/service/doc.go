// Package service supervises generation jobs.
//
// Overview
// The Supervisor owns a registry of job controllers keyed by id.
// Submit allocates a controller, runs it on its own goroutine and
// returns immediately; clients then query snapshots or attach to the
// live channel. Each controller is the single writer of its channel.
//
// Data flow:
//
//   Supervisor            Controller{id}            Launcher{cmd}
//       |                      |                        |
//   Submit -> register ------->| Run() ---------------->| Start()
//       |                      | stdout/stderr loops -->| os.Pipe reads
//       | Subscribe(id) ------>| broadcaster            |
//       |                      |<---- ExitStatus -------| (process exits)
//       |                      | resolve + terminal frame
//       |<-- retire (later) ---|
//
// Invariants:
//   - Exactly one Controller per job id, never shared.
//   - A terminal job stays queryable for the retention window, late
//     subscribers receive the terminal frame.
//   - The optional sweeper only ever deletes workspace directories
//     older than the configured age under the configured root.
package service
