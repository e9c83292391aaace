// @title Pregnancy Food Checker API
// @version 1.0
// @description Checks meal photos for foods to avoid during pregnancy.
// @BasePath /api
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/arluqh/pregnancy-food-checker/internal/bootstrap"
)

func main() {
	configPath := flag.String("config", "", "path to config.yaml (defaults to $CONFIG_PATH or ./config.yaml)")
	flag.Parse()

	fmt.Printf("[%s] [INFO] [Bootstrap] starting pregnancy-food-checker...\n", time.Now().Format("2006-01-02 15:04:05.000"))
	if err := bootstrap.Run(context.Background(), bootstrap.Options{
		ConfigPath: *configPath,
		DotEnv:     true,
	}); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "pregnancy-food-checker failed: %v\n", err)
		os.Exit(1)
	}
}
