package infra

import (
	"context"
	"os"
	"time"

	log "github.com/sirupsen/logrus"
)

const checkExecInterval = 5 * time.Second

// MonitorExecutable closes the returned channel once the running binary is
// replaced on disk, so the process can exit and be restarted by its supervisor.
// The channel never closes if the executable cannot be resolved.
func MonitorExecutable(ctx context.Context) <-chan struct{} {
	return monitorFile(ctx, "", checkExecInterval)
}

func monitorFile(ctx context.Context, path string, interval time.Duration) <-chan struct{} {
	ch := make(chan struct{})
	entry := log.WithField("component", "exec_monitor")
	go func() {
		if path == "" {
			exe, err := os.Executable()
			if err != nil {
				entry.WithField("error", err.Error()).Warn("cant resolve executable path")
				return
			}
			path = exe
		}
		stat, err := os.Stat(path)
		if err != nil {
			entry.WithField("error", err.Error()).Warn("cant stat executable")
			return
		}
		original := stat.ModTime()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				stat, err := os.Stat(path)
				if err != nil {
					entry.WithField("error", err.Error()).Debug("cant stat executable")
					continue
				}
				if !original.Equal(stat.ModTime()) {
					entry.WithField("path", path).Info("executable changed")
					close(ch)
					return
				}
			}
		}
	}()
	return ch
}
