// Package coupling finds the process bound to the coupling port under a given user
package coupling

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"memguard/internal/constants"
	"memguard/internal/utils"

	"github.com/sirupsen/logrus"
)

// Resolver looks up the coupled process with lsof and ps
type Resolver struct {
	runner utils.CommandRunner
	port   int
	logger *logrus.Logger
}

// New creates a new coupling resolver for the given port
func New(runner utils.CommandRunner, port int, logger *logrus.Logger) *Resolver {
	return &Resolver{
		runner: runner,
		port:   port,
		logger: logger,
	}
}

// Port returns the port the resolver inspects
func (r *Resolver) Port() int {
	return r.port
}

// FindCoupled returns the first PID bound to the port whose owner uid equals ownerUID.
// Lookup failures are absorbed and reported as not found.
func (r *Resolver) FindCoupled(ctx context.Context, ownerUID string) (int32, bool) {
	pids := r.portPIDs(ctx)
	for _, pid := range pids {
		uid, err := r.processUID(ctx, pid)
		if err != nil {
			r.logger.WithError(err).WithField("pid", pid).Debug("User lookup failed, skipping pid")
			continue
		}
		if uid == ownerUID {
			return pid, true
		}
	}
	return 0, false
}

// portPIDs lists the pids bound to the port in the order lsof emits them
func (r *Resolver) portPIDs(ctx context.Context) []int32 {
	output, err := r.runner.Output(ctx, constants.PortLookupCommand, "-i", fmt.Sprintf(":%d", r.port), "-t")
	if err != nil {
		r.logger.WithError(err).WithField("port", r.port).Debug("Port lookup returned nothing")
		return nil
	}

	var pids []int32
	for _, line := range strings.Split(string(output), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		pid, err := strconv.ParseInt(line, 10, 32)
		if err != nil {
			continue
		}
		pids = append(pids, int32(pid))
	}
	return pids
}

func (r *Resolver) processUID(ctx context.Context, pid int32) (string, error) {
	output, err := r.runner.Output(ctx, constants.UserLookupCommand, "-o", "uid=", "-p", strconv.Itoa(int(pid)))
	if err != nil {
		return "", err
	}
	uid := strings.TrimSpace(string(output))
	if uid == "" {
		return "", fmt.Errorf("no uid reported for pid %d", pid)
	}
	return uid, nil
}
