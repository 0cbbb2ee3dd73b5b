package progress

import "github.com/charmbracelet/log"

// Logger logs site lifecycle events.
func Logger(logger *log.Logger) Observer {
	return ObserverFunc(func(e Event) {
		switch e.Kind {
		case SiteStarted:
			logger.Info("session started", "site", e.Site, "worker", e.Worker)
		case SiteFinished:
			if e.Err != nil {
				logger.Error("session ended early", "site", e.Site, "records", e.Total, "err", e.Err)
				return
			}
			logger.Info("session finished", "site", e.Site, "records", e.Total)
		}
	})
}
