package server

import (
	"context"
	"errors"
	"fmt"
	"os"

	ps "github.com/mitchellh/go-ps"

	"github.com/oshokin/doorwatch/internal/logger"
)

// ErrAlreadyRunning is returned when another server process owns the door.
var ErrAlreadyRunning = errors.New("another doorwatch-server process is already running")

// processLister returns the running processes; replaced in tests.
type processLister func() ([]ps.Process, error)

// ensureSingleInstance refuses to start while another process runs the same
// executable. Two servers would each keep their own door state.
func ensureSingleInstance(ctx context.Context) error {
	return checkSingleInstance(ctx, os.Getpid(), ps.Processes)
}

func checkSingleInstance(ctx context.Context, pid int, list processLister) error {
	processList, err := list()
	if err != nil {
		// Not every platform exposes the process table; do not block startup.
		logger.WarnKV(ctx, "Unable to list processes, skipping single-instance check", "error", err)
		return nil
	}

	var executable string

	for _, process := range processList {
		if process.Pid() == pid {
			executable = process.Executable()
			break
		}
	}

	if executable == "" {
		return nil
	}

	for _, process := range processList {
		if process.Pid() == pid || process.Executable() != executable {
			continue
		}

		return fmt.Errorf("%w: pid %d (%s)", ErrAlreadyRunning, process.Pid(), executable)
	}

	return nil
}
