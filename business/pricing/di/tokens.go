// Package di contains dependency injection tokens for the pricing context.
package di

import (
	"github.com/fd1az/dexprice/business/pricing/app"
	"github.com/fd1az/dexprice/internal/di"
)

// Public service tokens - exposed to other modules
var (
	Pricer    = di.NewToken[*app.Pricer]("pricing.Pricer")
	Refresher = di.NewToken[*app.Refresher]("pricing.Refresher")
	Watcher   = di.NewToken[*app.Watcher]("pricing.Watcher")
)

// Private dependency tokens - internal to pricing module
var (
	StateStore  = di.NewToken[app.StateStore]("pricing:stateStore")
	StateSource = di.NewToken[app.PoolStateSource]("pricing:stateSource")
	Reporter    = di.NewToken[app.Reporter]("pricing:reporter")
)

func GetPricer(c di.ServiceRegistry) *app.Pricer {
	return di.GetToken(c, Pricer)
}

func GetRefresher(c di.ServiceRegistry) *app.Refresher {
	return di.GetToken(c, Refresher)
}

func GetWatcher(c di.ServiceRegistry) *app.Watcher {
	return di.GetToken(c, Watcher)
}

func GetStateStore(c di.ServiceRegistry) app.StateStore {
	return di.GetToken(c, StateStore)
}

func GetStateSource(c di.ServiceRegistry) app.PoolStateSource {
	return di.GetToken(c, StateSource)
}

func GetReporter(c di.ServiceRegistry) app.Reporter {
	return di.GetToken(c, Reporter)
}
