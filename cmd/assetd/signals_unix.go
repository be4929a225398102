//go:build !windows

package main

import "syscall"

// SIGTERM is what container runtimes send before killing the process.
func init() { shutdownSignals = append(shutdownSignals, syscall.SIGTERM) }
