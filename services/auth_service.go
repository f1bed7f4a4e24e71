package services

import (
	"errors"

	"gorm.io/gorm"

	"github.com/mnmfullmetal/savor/config"
	"github.com/mnmfullmetal/savor/models"
	"github.com/mnmfullmetal/savor/utils"
)

// RegisterUser creates the user together with their pantry and default
// settings; every user owns exactly one of each.
func RegisterUser(email, username, password string) (*models.User, error) {
	hashedPassword, err := utils.HashPassword(password)
	if err != nil {
		return nil, err
	}

	user := models.User{
		Email:    email,
		Username: username,
		Password: hashedPassword,
	}
	err = config.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&user).Error; err != nil {
			return err
		}
		if err := tx.Create(&models.Pantry{UserID: user.ID}).Error; err != nil {
			return err
		}
		return tx.Create(&models.UserSettings{UserID: user.ID}).Error
	})
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func AuthenticateUser(email, password string) (*models.User, string, error) {
	var user models.User
	result := config.DB.Where("email = ?", email).First(&user)
	if result.Error != nil {
		return nil, "", errors.New("user not found")
	}

	if !utils.CheckPasswordHash(password, user.Password) {
		return nil, "", errors.New("incorrect password")
	}

	token, err := utils.GenerateJWT(user.ID, user.Email)
	if err != nil {
		return nil, "", err
	}
	return &user, token, nil
}
