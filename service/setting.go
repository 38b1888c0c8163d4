package service

import (
	"strconv"
	"strings"

	"github.com/mahdipatriot/PacketTunnel/config"
	"github.com/mahdipatriot/PacketTunnel/database"
	"github.com/mahdipatriot/PacketTunnel/database/model"
	"github.com/mahdipatriot/PacketTunnel/pipeline"
	"github.com/mahdipatriot/PacketTunnel/util/common"

	"github.com/gofrs/uuid/v5"
)

type SettingService struct{}

var defaultValueMap = map[string]string{
	"webListen":     "",
	"webPort":       "2095",
	"webPath":       "/app/",
	"secret":        "",
	"sessionMaxAge": "60",

	"outputDir":         "/usr/local/packettunnel/conf",
	"engineDir":         "",
	"deviceName":        pipeline.DefaultDeviceName,
	"privateCIDR":       pipeline.DefaultPrivateCIDR,
	"protoSwap":         "62",
	"engineBinary":      "packettunnel-core",
	"engineDownloadURL": "",
	"engineSupervision": "exec",

	"congestionControl": "bbr",
	"qdisc":             "fq",

	"trafficDays": "30",

	"tgBotEnable": "false",
	"tgBotToken":  "",
	"tgBotChatId": "",
}

func (s *SettingService) GetAllSetting() (*map[string]string, error) {
	db := database.GetDB()
	settings := make([]*model.Setting, 0)
	err := db.Model(model.Setting{}).Find(&settings).Error
	if err != nil {
		return nil, err
	}
	allSetting := map[string]string{}

	for _, setting := range settings {
		allSetting[setting.Key] = setting.Value
	}

	for key, value := range defaultValueMap {
		if _, ok := allSetting[key]; !ok {
			allSetting[key] = value
		}
	}

	// Due to security principles
	delete(allSetting, "secret")

	return &allSetting, nil
}

func (s *SettingService) ResetSettings() error {
	db := database.GetDB()
	return db.Where("1 = 1").Delete(model.Setting{}).Error
}

func (s *SettingService) getSetting(key string) (*model.Setting, error) {
	db := database.GetDB()
	setting := &model.Setting{}
	err := db.Model(model.Setting{}).Where("key = ?", key).First(setting).Error
	if err != nil {
		return nil, err
	}
	return setting, nil
}

func (s *SettingService) saveSetting(key string, value string) error {
	setting, err := s.getSetting(key)
	db := database.GetDB()
	if database.IsNotFound(err) {
		return db.Create(&model.Setting{
			Key:   key,
			Value: value,
		}).Error
	} else if err != nil {
		return err
	}
	setting.Value = value
	return db.Save(setting).Error
}

func (s *SettingService) SaveSettings(data map[string]string) error {
	for key, value := range data {
		if _, ok := defaultValueMap[key]; !ok {
			return common.NewErrorf("unknown setting key: %s", key)
		}
		err := s.saveSetting(key, value)
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *SettingService) getString(key string) (string, error) {
	setting, err := s.getSetting(key)
	if database.IsNotFound(err) {
		value, ok := defaultValueMap[key]
		if !ok {
			return "", common.NewErrorf("key <%v> not in defaultValueMap", key)
		}
		return value, nil
	} else if err != nil {
		return "", err
	}
	return setting.Value, nil
}

func (s *SettingService) getBool(key string) (bool, error) {
	str, err := s.getString(key)
	if err != nil {
		return false, err
	}
	return strconv.ParseBool(str)
}

func (s *SettingService) getInt(key string) (int, error) {
	str, err := s.getString(key)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(str)
}

func (s *SettingService) GetListen() (string, error) {
	return s.getString("webListen")
}

func (s *SettingService) GetPort() (int, error) {
	return s.getInt("webPort")
}

func (s *SettingService) GetWebPath() (string, error) {
	webPath, err := s.getString("webPath")
	if err != nil {
		return "", err
	}
	if !strings.HasPrefix(webPath, "/") {
		webPath = "/" + webPath
	}
	if !strings.HasSuffix(webPath, "/") {
		webPath += "/"
	}
	return webPath, nil
}

func (s *SettingService) GetSecret() ([]byte, error) {
	secret, err := s.getString("secret")
	if err != nil {
		return nil, err
	}
	if secret == "" {
		newSecret, err := uuid.NewV4()
		if err != nil {
			return nil, err
		}
		secret = newSecret.String()
		err = s.saveSetting("secret", secret)
		if err != nil {
			return nil, err
		}
	}
	return []byte(secret), nil
}

func (s *SettingService) GetSessionMaxAge() (int, error) {
	return s.getInt("sessionMaxAge")
}

func (s *SettingService) GetOutputDir() (string, error) {
	return s.getString("outputDir")
}

func (s *SettingService) GetDeviceName() (string, error) {
	return s.getString("deviceName")
}

func (s *SettingService) GetPrivateCIDR() (string, error) {
	return s.getString("privateCIDR")
}

func (s *SettingService) GetProtoSwap() (int, error) {
	return s.getInt("protoSwap")
}

func (s *SettingService) GetEngineDir() (string, error) {
	dir, err := s.getString("engineDir")
	if err != nil {
		return "", err
	}
	if dir == "" {
		dir = config.GetEngineDir()
	}
	return dir, nil
}

func (s *SettingService) GetEngineBinary() (string, error) {
	return s.getString("engineBinary")
}

func (s *SettingService) GetEngineDownloadURL() (string, error) {
	return s.getString("engineDownloadURL")
}

func (s *SettingService) GetEngineSupervision() (string, error) {
	return s.getString("engineSupervision")
}

func (s *SettingService) GetCongestionControl() (string, error) {
	return s.getString("congestionControl")
}

func (s *SettingService) GetQdisc() (string, error) {
	return s.getString("qdisc")
}

func (s *SettingService) GetTrafficDays() (int, error) {
	return s.getInt("trafficDays")
}

func (s *SettingService) GetTgBotEnable() (bool, error) {
	return s.getBool("tgBotEnable")
}

func (s *SettingService) GetTgBotToken() (string, error) {
	return s.getString("tgBotToken")
}

func (s *SettingService) GetTgBotChatId() (string, error) {
	return s.getString("tgBotChatId")
}

// CompileOptions folds the stored defaults into a pipeline options struct.
func (s *SettingService) CompileOptions() (pipeline.Options, error) {
	var opts pipeline.Options
	deviceName, err := s.GetDeviceName()
	if err != nil {
		return opts, err
	}
	privateCIDR, err := s.GetPrivateCIDR()
	if err != nil {
		return opts, err
	}
	protoSwap, err := s.GetProtoSwap()
	if err != nil {
		return opts, err
	}
	opts.DeviceName = deviceName
	opts.PrivateCIDR = privateCIDR
	opts.ProtoSwap = protoSwap
	return opts, nil
}
