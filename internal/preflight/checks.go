package preflight

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"ytarchiver/internal/config"
	"ytarchiver/internal/events"
)

const eventStreamTimeout = 3 * time.Second

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckEventStream pings the configured Redis server.
func CheckEventStream(ctx context.Context, cfg *config.Config) Result {
	const name = "Event stream"

	addr := strings.TrimSpace(cfg.Events.RedisAddr)
	publisher, ok := events.NewPublisher(cfg).(*events.RedisPublisher)
	if !ok {
		return Result{Name: name, Detail: "redis_addr not set"}
	}
	defer publisher.Close()

	checkCtx, cancel := context.WithTimeout(ctx, eventStreamTimeout)
	defer cancel()
	if err := publisher.Ping(checkCtx); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: %v)", addr, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (ping ok)", addr)}
}
