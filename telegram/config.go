package telegram

// Config is read from telegram_config.json or assembled from the stored bot
// settings; only the listed admin IDs may talk to the bot.
type Config struct {
	BotToken     string  `json:"bot_token"`
	AdminUserIDs []int64 `json:"admin_user_ids"`
	Enabled      bool    `json:"enabled"`
}
