//go:build !linux && !darwin && !freebsd

// This build falls back to the in-process backend on platforms without
// SCM_RIGHTS-style descriptor passing over Unix-domain sockets. The public
// API is identical; a channel created here only ever reaches peers in the
// same process.
package ipc

import (
	"github.com/LyrinoxTechnologies/ridged-ipc/ipc/platform"
	"github.com/LyrinoxTechnologies/ridged-ipc/ipc/platform/inmemory"
)

var defaultBackend platform.Backend = inmemory.New()
