package service

import (
	"time"

	"github.com/mahdipatriot/PacketTunnel/database"
	"github.com/mahdipatriot/PacketTunnel/database/model"
	"github.com/mahdipatriot/PacketTunnel/util/common"

	"github.com/gofrs/uuid/v5"
)

type UserService struct{}

func (s *UserService) GetFirstUser() (*model.User, error) {
	db := database.GetDB()

	user := &model.User{}
	err := db.Model(model.User{}).
		First(user).
		Error
	if err != nil {
		return nil, err
	}
	return user, nil
}

func (s *UserService) CheckUser(username string, password string) *model.User {
	db := database.GetDB()

	user := &model.User{}
	err := db.Model(model.User{}).
		Where("username = ? and password = ?", username, password).
		First(user).
		Error
	if err != nil {
		return nil
	}
	return user
}

func (s *UserService) UpdateFirstUser(username string, password string) error {
	if username == "" {
		return common.NewError("username can not be empty")
	} else if password == "" {
		return common.NewError("password can not be empty")
	}
	db := database.GetDB()
	user := &model.User{}
	err := db.Model(model.User{}).First(user).Error
	if database.IsNotFound(err) {
		user.Username = username
		user.Password = password
		return db.Model(model.User{}).Create(user).Error
	} else if err != nil {
		return err
	}
	user.Username = username
	user.Password = password
	return db.Save(user).Error
}

func (s *UserService) GetAllTokens() ([]model.Token, error) {
	db := database.GetDB()
	var tokens []model.Token
	err := db.Model(model.Token{}).Find(&tokens).Error
	if err != nil {
		return nil, err
	}
	return tokens, nil
}

func (s *UserService) GetUserTokens(user *model.User) ([]model.Token, error) {
	db := database.GetDB()
	var tokens []model.Token
	err := db.Model(model.Token{}).
		Where("user_id = ?", user.Id).
		Find(&tokens).
		Error
	if err != nil {
		return nil, err
	}
	return tokens, nil
}

func (s *UserService) AddToken(user *model.User, expiry int64, desc string) (*model.Token, error) {
	newToken, err := uuid.NewV4()
	if err != nil {
		return nil, err
	}
	token := &model.Token{
		Token:  newToken.String(),
		Desc:   desc,
		UserId: user.Id,
		Expiry: expiry,
	}
	db := database.GetDB()
	err = db.Create(token).Error
	if err != nil {
		return nil, err
	}
	return token, nil
}

func (s *UserService) DeleteToken(id uint) error {
	db := database.GetDB()
	return db.Delete(&model.Token{}, id).Error
}

// CheckToken resolves a bearer token to its user, dropping expired rows.
func (s *UserService) CheckToken(token string) *model.User {
	db := database.GetDB()
	tokenModel := &model.Token{}
	err := db.Model(model.Token{}).
		Where("token = ?", token).
		First(tokenModel).
		Error
	if err != nil {
		return nil
	}
	if tokenModel.Expiry > 0 && tokenModel.Expiry < time.Now().Unix() {
		db.Delete(model.Token{}, tokenModel.Id)
		return nil
	}
	user := &model.User{}
	err = db.Model(model.User{}).
		Where("id = ?", tokenModel.UserId).
		First(user).
		Error
	if err != nil {
		return nil
	}
	return user
}
