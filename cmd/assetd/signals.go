package main

import "os"

// shutdownSignals cancel the serve context. os.Interrupt exists everywhere;
// signals_unix.go adds SIGTERM.
var shutdownSignals = []os.Signal{os.Interrupt}
