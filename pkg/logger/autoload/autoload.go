// Package autoload initializes the global logger from LOGGER_* env values
// as a side effect of being imported.
package autoload

import (
	configx "github.com/warin-t/salesforce-next-best-action/pkg/config"
	logx "github.com/warin-t/salesforce-next-best-action/pkg/logger"
)

func init() {
	cfg := configx.MustNew[logx.Config]("LOGGER")
	logx.Init(*cfg)
}
