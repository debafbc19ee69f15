// @title Prediction Relay API
// @version 1.0
// @description Forwards raw image bytes to a hosted classifier and returns the top label.
// @BasePath /
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"prediction-relay/internal/bootstrap"
)

func main() {
	fmt.Printf("[%s] [INFO] [引导] 开始启动 prediction-relay...\n", time.Now().Format("2006-01-02 15:04:05.000"))
	if err := bootstrap.Run(context.Background()); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "prediction-relay failed: %v\n", err)
		os.Exit(1)
	}
}
