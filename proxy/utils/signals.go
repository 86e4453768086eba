//go:build !plan9 && !windows
// +build !plan9,!windows

// Copyright (c) 2020 Shivaram Lingamneni
// released under the MIT license

package utils

import (
	"os"
	"syscall"
)

var (
	// ServerExitSignals are the signals the server will exit on.
	ServerExitSignals = []os.Signal{
		syscall.SIGINT,
		syscall.SIGTERM,
		syscall.SIGQUIT,
	}

	// ServerTracebackSignals dump a stack trace of all goroutines.
	ServerTracebackSignals = []os.Signal{
		syscall.SIGUSR1,
	}
)
