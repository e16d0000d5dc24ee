//go:build linux || darwin || freebsd

package ipc

import (
	"github.com/LyrinoxTechnologies/ridged-ipc/ipc/platform"
	"github.com/LyrinoxTechnologies/ridged-ipc/ipc/platform/unix"
)

var defaultBackend platform.Backend = unix.New()
