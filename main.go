package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/mahdipatriot/PacketTunnel/app"
	"github.com/mahdipatriot/PacketTunnel/cmd"
	"github.com/mahdipatriot/PacketTunnel/logger"
)

func runApp() {
	application := app.NewApp()
	err := application.Init()
	if err != nil {
		log.Fatal(err)
	}
	err = application.Start()
	if err != nil {
		log.Fatal(err)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGHUP, syscall.SIGTERM, syscall.SIGINT)
	for {
		sig := <-sigCh
		switch sig {
		case syscall.SIGHUP:
			logger.Info("received SIGHUP, restarting")
			application.RestartApp()
		default:
			application.Stop()
			return
		}
	}
}

func main() {
	if len(os.Args) < 2 {
		runApp()
		return
	}
	cmd.ParseCmd()
}
