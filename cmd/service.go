package cmd

import (
	"fmt"
	"os"

	"github.com/mahdipatriot/PacketTunnel/config"
	"github.com/mahdipatriot/PacketTunnel/database"
	"github.com/mahdipatriot/PacketTunnel/service"
)

func engineCmd(args []string) {
	if len(args) < 1 {
		showEngineUsage()
		return
	}
	err := database.InitDB(config.GetDBPath())
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	engineService := service.NewEngineService()

	switch args[0] {
	case "install":
		err = engineService.InstallService()
	case "uninstall":
		err = engineService.UninstallService()
	case "start":
		err = engineService.Start()
	case "stop":
		err = engineService.Stop()
	case "restart":
		err = engineService.Restart()
	case "download":
		err = engineService.Download()
	case "status":
		if engineService.IsRunning() {
			fmt.Println("engine is running, pid", engineService.PID())
		} else {
			fmt.Println("engine is not running")
		}
		return
	default:
		showEngineUsage()
		return
	}
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	fmt.Println("engine", args[0], "done")
}

func showEngineUsage() {
	fmt.Print(`Usage: PacketTunnel engine <command>

Commands:
    install     install the systemd unit for the engine
    uninstall   remove the systemd unit
    start       start the engine process
    stop        stop the engine process
    restart     restart the engine process
    download    download and unpack the engine binary
    status      report whether the engine is running
`)
}
