package commands

import (
	"context"
	"os"

	"memguard/internal/coupling"
	"memguard/internal/guard"
	"memguard/internal/procs"
	"memguard/internal/terminate"
	"memguard/internal/units"
	"memguard/internal/utils"
)

// runGuard wires the snapshot provider, coupling resolver and terminator into
// the guard loop and runs it until ctx is cancelled
func runGuard(ctx context.Context) error {
	cfg := cfgManager.GetConfig()
	ceiling := cfgManager.MaxMemoryBytes()
	interval := cfgManager.IntervalDuration()

	logger.Info("Starting memguard...")
	logger.Infof("Maximum allowed memory per process: %s", units.FormatBytes(ceiling))
	logger.Infof("Check interval: %s", interval)
	logger.WithFields(map[string]interface{}{
		"coupling_port": cfg.CouplingPort,
		"grace_period":  cfg.GracePeriod.String(),
	}).Info("Coupled process settings")

	system := procs.New(logger)
	resolver := coupling.New(utils.NewExecRunner(), cfg.CouplingPort, logger)
	terminator := terminate.New(system, terminate.NewStderrNotifier(), ceiling, cfg.GracePeriod)

	g := guard.New(system, terminator, resolver, guard.Options{
		Ceiling:  ceiling,
		Interval: interval,
		SelfPID:  int32(os.Getpid()),
	}, logger)

	return g.Run(ctx)
}
