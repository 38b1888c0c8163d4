package cmd

import (
	"flag"
	"fmt"
	"os"

	"github.com/mahdipatriot/PacketTunnel/config"
)

// ParseCmd handles every invocation that names a subcommand; the bare binary
// runs the panel instead.
func ParseCmd() {
	adminFlags := flag.NewFlagSet("admin", flag.ExitOnError)
	adminReset := adminFlags.Bool("reset", false, "reset admin credentials to admin/admin")
	adminShow := adminFlags.Bool("show", false, "show current admin credentials")
	adminUsername := adminFlags.String("username", "", "set admin username")
	adminPassword := adminFlags.String("password", "", "set admin password")

	settingFlags := flag.NewFlagSet("setting", flag.ExitOnError)
	settingReset := settingFlags.Bool("reset", false, "reset all settings to defaults")
	settingShow := settingFlags.Bool("show", false, "show all settings")
	settingPort := settingFlags.Int("port", 0, "set panel port")
	settingPath := settingFlags.String("path", "", "set panel base path")
	settingListen := settingFlags.String("listen", "", "set panel listen address")
	settingOutputDir := settingFlags.String("outputDir", "", "set tunnel document output directory")
	settingEngineDir := settingFlags.String("engineDir", "", "set engine working directory")

	switch os.Args[1] {
	case "version", "-v", "--version":
		fmt.Println(config.GetVersion())
	case "admin":
		adminFlags.Parse(os.Args[2:])
		switch {
		case *adminReset:
			resetAdmin()
		case *adminShow:
			showAdmin()
		case *adminUsername != "" || *adminPassword != "":
			updateAdmin(*adminUsername, *adminPassword)
		default:
			adminFlags.PrintDefaults()
		}
	case "setting":
		settingFlags.Parse(os.Args[2:])
		switch {
		case *settingReset:
			resetSetting()
		case *settingShow:
			showSetting()
		default:
			updateSetting(*settingPort, *settingPath, *settingListen, *settingOutputDir, *settingEngineDir)
		}
	case "tunnel":
		tunnelCmd(os.Args[2:])
	case "engine", "service":
		engineCmd(os.Args[2:])
	case "help", "-h", "--help":
		ShowUsage()
	default:
		fmt.Println("unknown command:", os.Args[1])
		ShowUsage()
		os.Exit(1)
	}
}

// ShowUsage prints the top level command summary.
func ShowUsage() {
	fmt.Printf(`Usage: %s [command] [options]

Running without a command starts the web panel.

Commands:
    admin       manage panel admin credentials
    setting     show or change panel settings
    tunnel      compile, list and check tunnel documents
    engine      control the packet tunneling engine process
    version     print the version
    help        show this help
`, config.GetName())
}
