package telegram

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/mahdipatriot/PacketTunnel/database/model"
	"github.com/mahdipatriot/PacketTunnel/logger"
	"github.com/mahdipatriot/PacketTunnel/pipeline"
	"github.com/mahdipatriot/PacketTunnel/service"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// AppServices defines the interface the bot needs to interact with the main app
type AppServices interface {
	RestartApp()
	GetTunnelService() *service.TunnelService
	GetEngineService() *service.EngineService
	GetChiselService() *service.ChiselService
	GetPreflightService() *service.PreflightService
	GetStatus() *service.Status
	GetLogs(limit string, level string) []string
	BackupDB() ([]byte, error)
}

var (
	adminIDs   = make(map[int64]bool)
	services   AppServices
	currentBot *bot.Bot
)

// Start initializes and starts the Telegram bot
func Start(ctx context.Context, config *Config, appServices AppServices) {
	if !config.Enabled || config.BotToken == "" {
		logger.Info("Telegram bot is disabled or token is not configured.")
		return
	}

	services = appServices

	for _, id := range config.AdminUserIDs {
		adminIDs[id] = true
	}

	opts := []bot.Option{
		bot.WithDefaultHandler(handler),
	}

	b, err := bot.New(config.BotToken, opts...)
	if err != nil {
		logger.Error("Error creating Telegram bot: ", err)
		return
	}
	currentBot = b

	logger.Info("Telegram bot started.")
	b.Start(ctx)
}

func Stop() {
	if currentBot != nil {
		currentBot.Close(context.Background())
		currentBot = nil
	}
}

// Notify pushes a message to every configured admin. No-op while the bot is
// down.
func Notify(text string) {
	b := currentBot
	if b == nil {
		return
	}
	for id := range adminIDs {
		b.SendMessage(context.Background(), &bot.SendMessageParams{ChatID: id, Text: text})
	}
}

func handler(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.Message == nil {
		return
	}

	userID := update.Message.From.ID
	if !isAdmin(userID) {
		b.SendMessage(ctx, &bot.SendMessageParams{
			ChatID: update.Message.Chat.ID,
			Text:   "You are not authorized to use this bot.",
		})
		return
	}

	if strings.HasPrefix(update.Message.Text, "/") {
		handleCommand(ctx, b, update.Message)
	}
}

func isAdmin(userID int64) bool {
	_, ok := adminIDs[userID]
	return ok
}

func handleCommand(ctx context.Context, b *bot.Bot, message *models.Message) {
	command, args := parseCommand(message.Text)

	switch command {
	case "/start":
		b.SendMessage(ctx, &bot.SendMessageParams{
			ChatID: message.Chat.ID,
			Text:   "Welcome to PacketTunnel Admin Bot. Send /help to see available commands.",
		})
	case "/help":
		b.SendMessage(ctx, &bot.SendMessageParams{
			ChatID: message.Chat.ID,
			Text: "Available commands:\n" +
				"/status\n" +
				"/tunnels\n" +
				"/generate <name>\n" +
				"/compile <role> <local> <remote> [ports]\n" +
				"/engine <start|stop|restart|download>\n" +
				"/preflight [remote] [port]\n" +
				"/logs [limit] [level]\n" +
				"/restart\n" +
				"/backup\n" +
				"/setup_service\n\n" +
				"Chisel Commands:\n" +
				"/add_chisel_server <name> <port> [extra_args]\n" +
				"/add_chisel_client <name> <server:port> <remotes> [extra_args]\n" +
				"/list_chisel\n" +
				"/remove_chisel <name>\n" +
				"/start_chisel <name>\n" +
				"/stop_chisel <name>",
		})
	case "/status":
		handleStatus(ctx, b, message)
	case "/tunnels":
		handleTunnels(ctx, b, message)
	case "/generate":
		handleGenerate(ctx, b, message, args)
	case "/compile":
		handleCompile(ctx, b, message, args)
	case "/engine":
		handleEngine(ctx, b, message, args)
	case "/preflight":
		handlePreflight(ctx, b, message, args)
	case "/logs":
		handleLogs(ctx, b, message, args)
	case "/restart":
		b.SendMessage(ctx, &bot.SendMessageParams{ChatID: message.Chat.ID, Text: "Restarting panel..."})
		services.RestartApp()
	case "/backup":
		handleBackup(ctx, b, message)
	case "/setup_service":
		handleSetupService(ctx, b, message)
	case "/add_chisel_server":
		handleAddChiselServer(ctx, b, message, args)
	case "/add_chisel_client":
		handleAddChiselClient(ctx, b, message, args)
	case "/list_chisel":
		handleListChisel(ctx, b, message)
	case "/remove_chisel":
		handleRemoveChisel(ctx, b, message, args)
	case "/start_chisel":
		handleStartChisel(ctx, b, message, args)
	case "/stop_chisel":
		handleStopChisel(ctx, b, message, args)
	default:
		b.SendMessage(ctx, &bot.SendMessageParams{
			ChatID: message.Chat.ID,
			Text:   "Unknown command. Send /help to see available commands.",
		})
	}
}

func handleStatus(ctx context.Context, b *bot.Bot, message *models.Message) {
	status := services.GetStatus()

	var response strings.Builder
	response.WriteString(fmt.Sprintf("Host CPU: %.1f%%\n", status.Cpu))
	response.WriteString(fmt.Sprintf("Host memory: %d / %d MB\n", status.Mem.Current/1024/1024, status.Mem.Total/1024/1024))
	response.WriteString(fmt.Sprintf("Host uptime: %s\n", (time.Duration(status.Uptime) * time.Second).String()))
	if status.Engine.Running {
		response.WriteString(fmt.Sprintf("Engine: running, PID %d, CPU %.1f%%, RSS %d MB\n",
			status.Engine.PID, status.Engine.Cpu, status.Engine.Mem/1024/1024))
	} else {
		response.WriteString("Engine: stopped\n")
	}

	b.SendMessage(ctx, &bot.SendMessageParams{ChatID: message.Chat.ID, Text: response.String()})
}

func handleTunnels(ctx context.Context, b *bot.Bot, message *models.Message) {
	tunnels, err := services.GetTunnelService().GetAll()
	if err != nil {
		logger.Error("Error getting tunnels: ", err)
		b.SendMessage(ctx, &bot.SendMessageParams{ChatID: message.Chat.ID, Text: "Error getting tunnels."})
		return
	}

	if len(tunnels) == 0 {
		b.SendMessage(ctx, &bot.SendMessageParams{ChatID: message.Chat.ID, Text: "No tunnels configured."})
		return
	}

	var response strings.Builder
	response.WriteString("Configured tunnels:\n")
	for _, tunnel := range tunnels {
		response.WriteString(fmt.Sprintf("\n- Name: *%s*\n", tunnel.Name))
		response.WriteString(fmt.Sprintf("  Role: %s\n", tunnel.Role))
		response.WriteString(fmt.Sprintf("  Path: %s -> %s\n", tunnel.LocalIP, tunnel.RemoteIP))
		if len(tunnel.Ports) > 0 {
			response.WriteString(fmt.Sprintf("  Ports: %v\n", tunnel.Ports))
		}
		if tunnel.GeneratedAt > 0 {
			response.WriteString(fmt.Sprintf("  Generated: %s\n", time.Unix(tunnel.GeneratedAt, 0).Format("2006-01-02 15:04:05")))
		} else {
			response.WriteString("  Generated: never\n")
		}
		if tunnel.LastError != "" {
			response.WriteString(fmt.Sprintf("  Last error: `%s`\n", tunnel.LastError))
		}
	}

	b.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:    message.Chat.ID,
		Text:      response.String(),
		ParseMode: models.ParseModeMarkdown,
	})
}

func handleGenerate(ctx context.Context, b *bot.Bot, message *models.Message, args []string) {
	if len(args) != 1 {
		b.SendMessage(ctx, &bot.SendMessageParams{ChatID: message.Chat.ID, Text: "Usage: /generate <name>"})
		return
	}

	tunnelService := services.GetTunnelService()
	tunnel, err := tunnelService.GetByName(args[0])
	if err != nil {
		b.SendMessage(ctx, &bot.SendMessageParams{ChatID: message.Chat.ID, Text: fmt.Sprintf("Tunnel '%s' not found.", args[0])})
		return
	}

	docPath, err := tunnelService.Generate(tunnel.Id)
	if err != nil {
		b.SendMessage(ctx, &bot.SendMessageParams{ChatID: message.Chat.ID, Text: fmt.Sprintf("Generate failed: %v", err)})
		return
	}
	b.SendMessage(ctx, &bot.SendMessageParams{ChatID: message.Chat.ID, Text: fmt.Sprintf("Document written to %s", docPath)})
}

func handleCompile(ctx context.Context, b *bot.Bot, message *models.Message, args []string) {
	if len(args) < 3 {
		b.SendMessage(ctx, &bot.SendMessageParams{ChatID: message.Chat.ID, Text: "Usage: /compile <role> <local> <remote> [ports]"})
		return
	}

	var ports []int
	if len(args) > 3 {
		for _, portStr := range strings.Split(args[3], ",") {
			port, err := strconv.Atoi(strings.TrimSpace(portStr))
			if err != nil {
				b.SendMessage(ctx, &bot.SendMessageParams{ChatID: message.Chat.ID, Text: fmt.Sprintf("Invalid port: %s", portStr)})
				return
			}
			ports = append(ports, port)
		}
	}

	doc, err := services.GetTunnelService().Compile(args[0], args[1], args[2], ports, pipeline.Options{})
	if err != nil {
		b.SendMessage(ctx, &bot.SendMessageParams{ChatID: message.Chat.ID, Text: fmt.Sprintf("Compile failed: %v", err)})
		return
	}

	fileName := fmt.Sprintf("%s-%s.json", args[0], time.Now().Format("2006-01-02-15-04-05"))
	b.SendDocument(ctx, &bot.SendDocumentParams{
		ChatID:   message.Chat.ID,
		Document: &models.InputFileUpload{Filename: fileName, Data: bytes.NewReader(doc)},
		Caption:  "Compiled tunnel document.",
	})
}

func handleEngine(ctx context.Context, b *bot.Bot, message *models.Message, args []string) {
	if len(args) != 1 {
		b.SendMessage(ctx, &bot.SendMessageParams{ChatID: message.Chat.ID, Text: "Usage: /engine <start|stop|restart|download>"})
		return
	}

	engineService := services.GetEngineService()
	var err error
	switch args[0] {
	case "start":
		err = engineService.Start()
	case "stop":
		err = engineService.Stop()
	case "restart":
		err = engineService.Restart()
	case "download":
		b.SendMessage(ctx, &bot.SendMessageParams{ChatID: message.Chat.ID, Text: "Downloading engine..."})
		err = engineService.Download()
	default:
		b.SendMessage(ctx, &bot.SendMessageParams{ChatID: message.Chat.ID, Text: "Usage: /engine <start|stop|restart|download>"})
		return
	}
	if err != nil {
		b.SendMessage(ctx, &bot.SendMessageParams{ChatID: message.Chat.ID, Text: fmt.Sprintf("Engine %s failed: %v", args[0], err)})
		return
	}
	b.SendMessage(ctx, &bot.SendMessageParams{ChatID: message.Chat.ID, Text: fmt.Sprintf("Engine %s done.", args[0])})
}

func handlePreflight(ctx context.Context, b *bot.Bot, message *models.Message, args []string) {
	remote := ""
	port := 0
	if len(args) > 0 {
		remote = args[0]
	}
	if len(args) > 1 {
		port, _ = strconv.Atoi(args[1])
	}

	results := services.GetPreflightService().Run("", remote, port)

	var response strings.Builder
	response.WriteString("Preflight checks:\n")
	for _, result := range results {
		mark := "FAIL"
		if result.Ok {
			mark = "ok"
		}
		response.WriteString(fmt.Sprintf("- %s: %s (%s)\n", result.Name, mark, result.Detail))
	}
	b.SendMessage(ctx, &bot.SendMessageParams{ChatID: message.Chat.ID, Text: response.String()})
}

func handleLogs(ctx context.Context, b *bot.Bot, message *models.Message, args []string) {
	limit := "10"
	level := "info"

	if len(args) > 0 {
		limit = args[0]
	}
	if len(args) > 1 {
		level = args[1]
	}

	logs := services.GetLogs(limit, level)
	if len(logs) == 0 {
		b.SendMessage(ctx, &bot.SendMessageParams{ChatID: message.Chat.ID, Text: "No logs found."})
		return
	}

	response := strings.Join(logs, "\n")
	b.SendMessage(ctx, &bot.SendMessageParams{ChatID: message.Chat.ID, Text: "Logs:\n" + response})
}

func handleBackup(ctx context.Context, b *bot.Bot, message *models.Message) {
	b.SendMessage(ctx, &bot.SendMessageParams{ChatID: message.Chat.ID, Text: "Creating backup..."})

	dbBytes, err := services.BackupDB()
	if err != nil {
		logger.Error("Error creating backup: ", err)
		b.SendMessage(ctx, &bot.SendMessageParams{ChatID: message.Chat.ID, Text: "Error creating backup."})
		return
	}

	fileName := fmt.Sprintf("packettunnel-backup-%s.db", time.Now().Format("2006-01-02-15-04-05"))
	b.SendDocument(ctx, &bot.SendDocumentParams{
		ChatID:   message.Chat.ID,
		Document: &models.InputFileUpload{Filename: fileName, Data: bytes.NewReader(dbBytes)},
		Caption:  "Here is your database backup.",
	})
}

func handleSetupService(ctx context.Context, b *bot.Bot, message *models.Message) {
	serviceContent := "[Unit]\n" +
		"Description=PacketTunnel Panel\n" +
		"After=network.target\n" +
		"Wants=network.target\n\n" +
		"[Service]\n" +
		"Type=simple\n" +
		"WorkingDirectory=/usr/local/packettunnel/\n" +
		"ExecStart=/usr/local/packettunnel/packettunnel\n" +
		"Restart=always\n" +
		"RestartSec=10s\n" +
		"LimitNOFILE=1048576\n\n" +
		"[Install]\n" +
		"WantedBy=multi-user.target"

	response := fmt.Sprintf("To run the panel under systemd:\n\n"+
		"**1. Create the unit file:**\n"+
		"Write `/etc/systemd/system/packettunnel.service` with this content (sudo required):\n"+
		"```ini\n%s\n```\n\n"+
		"**2. Run in a terminal:**\n"+
		"```bash\n"+
		"sudo systemctl daemon-reload\n"+
		"sudo systemctl enable packettunnel.service\n"+
		"sudo systemctl start packettunnel.service\n"+
		"sudo systemctl status packettunnel.service\n"+
		"```\n\n"+
		"The panel will then start with the system.", serviceContent)

	b.SendMessage(ctx, &bot.SendMessageParams{ChatID: message.Chat.ID, Text: response})
}

func parseCommand(text string) (string, []string) {
	parts := strings.Fields(text)
	if len(parts) == 0 {
		return "", nil
	}
	return parts[0], parts[1:]
}

func handleAddChiselServer(ctx context.Context, b *bot.Bot, message *models.Message, args []string) {
	if len(args) < 2 {
		b.SendMessage(ctx, &bot.SendMessageParams{ChatID: message.Chat.ID, Text: "Usage: /add_chisel_server <name> <port> [extra_args]"})
		return
	}

	name := args[0]
	port, err := strconv.Atoi(args[1])
	if err != nil {
		b.SendMessage(ctx, &bot.SendMessageParams{ChatID: message.Chat.ID, Text: "Invalid port number."})
		return
	}

	extraArgs := ""
	if len(args) > 2 {
		extraArgs = strings.Join(args[2:], " ")
	}

	cfg := model.ChiselConfig{
		Name:          name,
		Mode:          "server",
		ListenAddress: "0.0.0.0",
		ListenPort:    port,
		Args:          extraArgs,
	}

	chiselService := services.GetChiselService()
	if err := chiselService.Create(&cfg); err != nil {
		logger.Error("Error creating chisel config: ", err)
		b.SendMessage(ctx, &bot.SendMessageParams{ChatID: message.Chat.ID, Text: fmt.Sprintf("Error creating config: %v", err)})
		return
	}

	if err := chiselService.Start(&cfg); err != nil {
		b.SendMessage(ctx, &bot.SendMessageParams{ChatID: message.Chat.ID, Text: fmt.Sprintf("Error starting server: %v", err)})
		return
	}

	b.SendMessage(ctx, &bot.SendMessageParams{ChatID: message.Chat.ID, Text: fmt.Sprintf("Chisel server '%s' started on port %d.", name, port)})
}

func handleAddChiselClient(ctx context.Context, b *bot.Bot, message *models.Message, args []string) {
	if len(args) < 3 {
		b.SendMessage(ctx, &bot.SendMessageParams{ChatID: message.Chat.ID, Text: "Usage: /add_chisel_client <name> <server:port> <remotes> [extra_args]"})
		return
	}

	name := args[0]
	serverAddr := args[1]
	remotes := args[2]

	serverParts := strings.Split(serverAddr, ":")
	if len(serverParts) != 2 {
		b.SendMessage(ctx, &bot.SendMessageParams{ChatID: message.Chat.ID, Text: "Invalid server address format. Use <server:port>."})
		return
	}
	serverHost := serverParts[0]
	serverPort, err := strconv.Atoi(serverParts[1])
	if err != nil {
		b.SendMessage(ctx, &bot.SendMessageParams{ChatID: message.Chat.ID, Text: "Invalid server port."})
		return
	}

	allArgs := []string{remotes}
	if len(args) > 3 {
		allArgs = append(allArgs, args[3:]...)
	}
	extraArgs := strings.Join(allArgs, " ")

	cfg := model.ChiselConfig{
		Name:          name,
		Mode:          "client",
		ServerAddress: serverHost,
		ServerPort:    serverPort,
		Args:          extraArgs,
	}

	chiselService := services.GetChiselService()
	if err := chiselService.Create(&cfg); err != nil {
		logger.Error("Error creating chisel config: ", err)
		b.SendMessage(ctx, &bot.SendMessageParams{ChatID: message.Chat.ID, Text: fmt.Sprintf("Error creating config: %v", err)})
		return
	}

	if err := chiselService.Start(&cfg); err != nil {
		b.SendMessage(ctx, &bot.SendMessageParams{ChatID: message.Chat.ID, Text: fmt.Sprintf("Error starting client: %v", err)})
		return
	}

	b.SendMessage(ctx, &bot.SendMessageParams{ChatID: message.Chat.ID, Text: fmt.Sprintf("Chisel client '%s' started.", name)})
}

func handleListChisel(ctx context.Context, b *bot.Bot, message *models.Message) {
	chiselService := services.GetChiselService()
	configs, err := chiselService.GetAll()
	if err != nil {
		logger.Error("Error getting chisel configs: ", err)
		b.SendMessage(ctx, &bot.SendMessageParams{ChatID: message.Chat.ID, Text: "Error getting chisel configs."})
		return
	}

	if len(configs) == 0 {
		b.SendMessage(ctx, &bot.SendMessageParams{ChatID: message.Chat.ID, Text: "No Chisel channels configured."})
		return
	}

	var response strings.Builder
	response.WriteString("Configured Chisel channels:\n")
	for _, cfg := range configs {
		status := "Stopped"
		if cfg.PID > 0 {
			status = "Running"
		}
		response.WriteString(fmt.Sprintf("\n- Name: *%s*\n", cfg.Name))
		response.WriteString(fmt.Sprintf("  Mode: %s\n", cfg.Mode))
		if cfg.Mode == "server" {
			response.WriteString(fmt.Sprintf("  Listen: 0.0.0.0:%d\n", cfg.ListenPort))
		} else {
			response.WriteString(fmt.Sprintf("  Server: %s:%d\n", cfg.ServerAddress, cfg.ServerPort))
			response.WriteString(fmt.Sprintf("  Remotes: `%s`\n", cfg.Args))
		}
		response.WriteString(fmt.Sprintf("  Status: %s\n", status))
	}

	b.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:    message.Chat.ID,
		Text:      response.String(),
		ParseMode: models.ParseModeMarkdown,
	})
}

func handleRemoveChisel(ctx context.Context, b *bot.Bot, message *models.Message, args []string) {
	if len(args) != 1 {
		b.SendMessage(ctx, &bot.SendMessageParams{ChatID: message.Chat.ID, Text: "Usage: /remove_chisel <name>"})
		return
	}
	name := args[0]
	chiselService := services.GetChiselService()
	cfg, err := chiselService.GetByName(name)
	if err != nil {
		b.SendMessage(ctx, &bot.SendMessageParams{ChatID: message.Chat.ID, Text: fmt.Sprintf("Config with name '%s' not found.", name)})
		return
	}

	if cfg.PID > 0 {
		if err := chiselService.Stop(cfg); err != nil {
			logger.Warning("Error stopping chisel channel before removing: ", err)
		}
	}

	if err := chiselService.Delete(cfg.ID); err != nil {
		b.SendMessage(ctx, &bot.SendMessageParams{ChatID: message.Chat.ID, Text: fmt.Sprintf("Error deleting config '%s': %v", name, err)})
		return
	}

	b.SendMessage(ctx, &bot.SendMessageParams{ChatID: message.Chat.ID, Text: fmt.Sprintf("Chisel config '%s' removed.", name)})
}

func handleStartChisel(ctx context.Context, b *bot.Bot, message *models.Message, args []string) {
	if len(args) != 1 {
		b.SendMessage(ctx, &bot.SendMessageParams{ChatID: message.Chat.ID, Text: "Usage: /start_chisel <name>"})
		return
	}
	name := args[0]
	chiselService := services.GetChiselService()
	cfg, err := chiselService.GetByName(name)
	if err != nil {
		b.SendMessage(ctx, &bot.SendMessageParams{ChatID: message.Chat.ID, Text: fmt.Sprintf("Config with name '%s' not found.", name)})
		return
	}

	if cfg.PID > 0 {
		b.SendMessage(ctx, &bot.SendMessageParams{ChatID: message.Chat.ID, Text: fmt.Sprintf("Chisel channel '%s' is already marked as running.", name)})
		return
	}

	if err := chiselService.Start(cfg); err != nil {
		b.SendMessage(ctx, &bot.SendMessageParams{ChatID: message.Chat.ID, Text: fmt.Sprintf("Error starting chisel channel '%s': %v", name, err)})
		return
	}

	b.SendMessage(ctx, &bot.SendMessageParams{ChatID: message.Chat.ID, Text: fmt.Sprintf("Chisel channel '%s' started.", name)})
}

func handleStopChisel(ctx context.Context, b *bot.Bot, message *models.Message, args []string) {
	if len(args) != 1 {
		b.SendMessage(ctx, &bot.SendMessageParams{ChatID: message.Chat.ID, Text: "Usage: /stop_chisel <name>"})
		return
	}
	name := args[0]
	chiselService := services.GetChiselService()
	cfg, err := chiselService.GetByName(name)
	if err != nil {
		b.SendMessage(ctx, &bot.SendMessageParams{ChatID: message.Chat.ID, Text: fmt.Sprintf("Config with name '%s' not found.", name)})
		return
	}

	if cfg.PID == 0 {
		b.SendMessage(ctx, &bot.SendMessageParams{ChatID: message.Chat.ID, Text: fmt.Sprintf("Chisel channel '%s' is not marked as running.", name)})
		return
	}

	if err := chiselService.Stop(cfg); err != nil {
		b.SendMessage(ctx, &bot.SendMessageParams{ChatID: message.Chat.ID, Text: fmt.Sprintf("Error stopping chisel channel '%s': %v", name, err)})
		return
	}

	b.SendMessage(ctx, &bot.SendMessageParams{ChatID: message.Chat.ID, Text: fmt.Sprintf("Chisel channel '%s' stopped.", name)})
}
