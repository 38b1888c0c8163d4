package cmd

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/mahdipatriot/PacketTunnel/config"
	"github.com/mahdipatriot/PacketTunnel/database"
	"github.com/mahdipatriot/PacketTunnel/service"
)

func resetSetting() {
	err := database.InitDB(config.GetDBPath())
	if err != nil {
		fmt.Println(err)
		return
	}
	settingService := service.SettingService{}
	err = settingService.ResetSettings()
	if err != nil {
		fmt.Println("reset settings failed:", err)
	} else {
		fmt.Println("reset settings success")
	}
}

func updateSetting(port int, path string, listen string, outputDir string, engineDir string) {
	err := database.InitDB(config.GetDBPath())
	if err != nil {
		fmt.Println(err)
		return
	}
	changes := map[string]string{}
	if port > 0 {
		changes["webPort"] = strconv.Itoa(port)
	}
	if path != "" {
		changes["webPath"] = path
	}
	if listen != "" {
		changes["webListen"] = listen
	}
	if outputDir != "" {
		changes["outputDir"] = outputDir
	}
	if engineDir != "" {
		changes["engineDir"] = engineDir
	}
	if len(changes) == 0 {
		fmt.Println("nothing to update")
		return
	}
	settingService := service.SettingService{}
	err = settingService.SaveSettings(changes)
	if err != nil {
		fmt.Println("update settings failed:", err)
	} else {
		fmt.Println("update settings success")
	}
}

func showSetting() {
	err := database.InitDB(config.GetDBPath())
	if err != nil {
		fmt.Println(err)
		return
	}
	settingService := service.SettingService{}
	all, err := settingService.GetAllSetting()
	if err != nil {
		fmt.Println("get settings failed:", err)
		return
	}
	keys := make([]string, 0, len(*all))
	for key := range *all {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		fmt.Printf("%-20s %s\n", key, (*all)[key])
	}
}
