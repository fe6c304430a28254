// Command ubus-notify demonstrates a Context fanning a NOTIFY out to a
// locally-registered subscriber object over an in-memory loopback
// transport, standing in for the real socket a daemon connection would
// use.
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mdlayher/ubus/internal/logging"
	"github.com/mdlayher/ubus/internal/transport"
	"github.com/mdlayher/ubus/internal/wire"

	ubus "github.com/mdlayher/ubus"
)

func main() {
	var (
		method  = flag.String("method", "refresh", "event method to notify subscribers with")
		verbose = flag.Bool("v", false, "verbose logging")
	)
	flag.Parse()

	logConfig := logging.DefaultConfig()
	if *verbose {
		logConfig.Level = logging.LevelDebug
	}
	logger := logging.NewLogger(logConfig)
	logging.SetDefault(logger)

	clientSide, daemonSide := transport.NewPair(8)

	client, err := ubus.New(clientSide, &ubus.Options{Logger: logger})
	if err != nil {
		logger.Error("failed to create client context", "error", err)
		os.Exit(1)
	}
	defer client.Close()

	subscriber, err := ubus.New(daemonSide, &ubus.Options{Logger: logger})
	if err != nil {
		logger.Error("failed to create subscriber context", "error", err)
		os.Exit(1)
	}
	defer subscriber.Close()

	var received int
	obj := &ubus.Object{
		Path: "demo.subscriber",
		Methods: []ubus.MethodSignature{
			{Name: *method, Handler: func(c *ubus.Context, peer uint32, args *wire.Node) (*wire.Node, ubus.StatusCode) {
				received++
				logger.Info("received notification", "method", *method, "count", received)
				return nil, ubus.StatusOK
			}},
		},
	}
	if err := subscriber.RegisterObject(obj); err != nil {
		logger.Error("failed to register subscriber object", "error", err)
		os.Exit(1)
	}
	obj.Subscribe(0)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	fmt.Printf("notifying demo.subscriber/%s every second, Ctrl+C to stop\n", *method)

	for {
		select {
		case <-ticker.C:
			if err := client.Notify(obj.ID, *method, nil, time.Second); err != nil {
				logger.Warn("notify failed", "error", err)
			}
		case <-sigCh:
			logger.Info("received shutdown signal", "notifications_received", received)
			return
		}
	}
}
