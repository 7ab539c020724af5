package main

import (
	"github.com/grapat/backend/internal/server"
	"github.com/grapat/backend/internal/util"
	"github.com/grapat/backend/pkg/logger"
	"github.com/grapat/backend/pkg/logger/console"

	_ "github.com/lib/pq"
)

func main() {
	util.LoadEnv()

	consoleLogger := console.NewConsoleLogger(console.ConsoleLoggerParams{
		Debug: util.GetEnvBool("DEBUG", false),
		JSON:  util.GetEnv("LOG_FORMAT") == "json",
	})
	logger.Init(consoleLogger)

	server.Init()
}
