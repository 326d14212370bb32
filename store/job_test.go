// go-ippd - Reference IPP print server
//
// Copyright (C) 2024 and up by Alexander Pevzner (pzz@apevzner.com)
// See LICENSE for license terms and conditions
//
// Job lifecycle tests, covering properties 1 and 2.

package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestJobTransitionTerminalRemovesFromActive checks that once a job
// reaches a terminal state, the caller's RemoveFromActive call (the
// single post-transition hook) drops it from ActiveJobs and clears
// ProcessingJob if it was the one processing.
func TestJobTransitionTerminalRemovesFromActive(t *testing.T) {
	p := NewPrinter(1, "office")
	job := NewJob(1, p, "alice")
	p.ActiveJobs = append(p.ActiveJobs, job)
	p.ProcessingJob = job

	reached, err := job.Transition(context.Background(), "start")
	require.NoError(t, err)
	require.False(t, reached)
	require.Equal(t, JobProcessing, job.State())
	require.Contains(t, p.ActiveJobs, job)

	reached, err = job.Transition(context.Background(), "complete")
	require.NoError(t, err)
	require.True(t, reached)
	require.True(t, job.IsTerminal())

	p.RemoveFromActive(job)

	require.NotContains(t, p.ActiveJobs, job)
	require.Nil(t, p.ProcessingJob)
}

// TestJobTransitionRejectsInvalidEvent checks the FSM refuses an event
// that isn't valid from the job's current state, leaving the job
// exactly where it was: no observable mutation outside a valid
// transition.
func TestJobTransitionRejectsInvalidEvent(t *testing.T) {
	p := NewPrinter(1, "office")
	job := NewJob(1, p, "alice")

	_, err := job.Transition(context.Background(), "complete")
	require.Error(t, err)
	require.Equal(t, JobPending, job.State())
}

// TestJobCancelFromEveryNonTerminalState checks cancel is valid from
// pending, held, processing and stopped.
func TestJobCancelFromEveryNonTerminalState(t *testing.T) {
	p := NewPrinter(1, "office")

	transitions := map[string][]string{
		JobPending:    nil,
		JobHeld:       {"hold"},
		JobProcessing: {"start"},
		JobStopped:    {"start", "stop"},
	}

	for want, path := range transitions {
		job := NewJob(1, p, "alice")
		for _, ev := range path {
			_, err := job.Transition(context.Background(), ev)
			require.NoError(t, err, "setup event %q", ev)
		}
		require.Equal(t, want, job.State())

		reached, err := job.Transition(context.Background(), "cancel")
		require.NoError(t, err, "cancel from %q", want)
		require.True(t, reached)
		require.Equal(t, JobCanceled, job.State())
	}
}

// TestJobIsTerminalAfterAbort checks IsTerminal is false for a new job
// and true once the job has been aborted.
func TestJobIsTerminalAfterAbort(t *testing.T) {
	p := NewPrinter(1, "office")
	job := NewJob(1, p, "alice")

	require.False(t, job.IsTerminal())

	_, err := job.Transition(context.Background(), "abort")
	require.NoError(t, err)
	require.True(t, job.IsTerminal())
}
