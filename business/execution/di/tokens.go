// Package di contains dependency injection tokens for the execution context.
package di

import (
	"github.com/dexarb/solarb/business/execution/app"
	"github.com/dexarb/solarb/internal/di"
)

// Public service tokens - exposed to other modules
var (
	Engine   = di.NewToken[*app.Engine]("execution.Engine")
	Runner   = di.NewToken[*app.Runner]("execution.Runner")
	Reporter = di.NewToken[app.Reporter]("execution.Reporter")
)

// Helper functions for type-safe access
func GetEngine(c di.ServiceRegistry) *app.Engine {
	return di.GetToken(c, Engine)
}

func GetRunner(c di.ServiceRegistry) *app.Runner {
	return di.GetToken(c, Runner)
}

func GetReporter(c di.ServiceRegistry) app.Reporter {
	return di.GetToken(c, Reporter)
}
