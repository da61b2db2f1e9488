// Package pipeline validates submitted jobs and dispatches their
// experiments to a circuit generator.
//
// A Spooler holds the declarative description of one backend: its
// instruction specs, wire count and shot limits. Process walks a job
// payload through validation and execution, folding every failure,
// including generator panics, into the job's status record so a worker
// loop never dies on user input.
package pipeline
