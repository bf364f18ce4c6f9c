package model

import "errors"

// Error classes shared across layers. Callers wrap them with fmt.Errorf("...: %w")
// and classify with errors.Is.
var (
	ErrConfig             = errors.New("configuration error")
	ErrCredentialRead     = errors.New("credential read error")
	ErrAPI                = errors.New("cluster API error")
	ErrTimeout            = errors.New("workload was not ready in time")
	ErrWorkloadNotFound   = errors.New("workload not found")
	ErrWorkloadTerminated = errors.New("workload terminated before becoming ready")
	ErrSpawn              = errors.New("failed to spawn ssh process")
	ErrUnexpectedExit     = errors.New("ssh process exited with a non-zero status")
	ErrBind               = errors.New("failed to bind local listener")
	ErrIO                 = errors.New("stream I/O error")
	ErrAlreadyWatched     = errors.New("ssh process is already being watched")
)

var (
	ErrSessionNotFound = errors.New("session not found")
)
