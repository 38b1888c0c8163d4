package model

import (
	"gorm.io/gorm"
)

type User struct {
	Id       uint   `json:"id" gorm:"primaryKey;autoIncrement"`
	Username string `json:"username"`
	Password string `json:"password"`
}

type Setting struct {
	Id    uint   `json:"id" gorm:"primaryKey;autoIncrement"`
	Key   string `json:"key" gorm:"unique"`
	Value string `json:"value"`
}

type Token struct {
	Id     uint   `json:"id" gorm:"primaryKey;autoIncrement"`
	Token  string `json:"token" gorm:"unique"`
	Desc   string `json:"desc"`
	UserId uint   `json:"userId"`
	Expiry int64  `json:"expiry"`
}

// Tunnel is a stored topology request. The compiled document is not kept in
// the row; Generate rebuilds it from these fields every time.
type Tunnel struct {
	Id          uint   `json:"id" gorm:"primaryKey;autoIncrement"`
	Name        string `json:"name" gorm:"unique;not null"`
	Role        string `json:"role" gorm:"not null"` // "initiator" or "responder"
	LocalIP     string `json:"localIp"`
	RemoteIP    string `json:"remoteIp"`
	Ports       []int  `json:"ports" gorm:"serializer:json"`
	DeviceName  string `json:"deviceName"`
	PrivateCIDR string `json:"privateCidr"`
	ProtoSwap   int    `json:"protoSwap"`
	Enable      bool   `json:"enable"`

	GeneratedAt int64  `json:"generatedAt"`
	DocPath     string `json:"docPath"`
	LastError   string `json:"lastError"`
}

func (t *Tunnel) BeforeCreate(tx *gorm.DB) (err error) {
	if t.Role == "" {
		t.Role = "initiator"
	}
	return
}

type ChiselConfig struct {
	gorm.Model
	Name          string `gorm:"unique"`
	Mode          string // "client" or "server"
	ServerAddress string
	ServerPort    int
	ListenAddress string
	ListenPort    int
	Args          string
	PID           int
}

// EngineStat is one sample of the engine process taken by the stats job.
type EngineStat struct {
	Id       uint    `json:"id" gorm:"primaryKey;autoIncrement"`
	DateTime int64   `json:"dateTime"`
	Running  bool    `json:"running"`
	PID      int     `json:"pid"`
	CPU      float64 `json:"cpu"`
	Memory   uint64  `json:"memory"`
}
