package services

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/mnmfullmetal/savor/config"
	"github.com/mnmfullmetal/savor/models"
)

func FindUserByEmail(email string) (*models.User, error) {
	var user models.User
	result := config.DB.First(&user, "email = ?", email)
	if result.Error != nil {
		return nil, errors.New("user not found")
	}
	return &user, nil
}

type SettingsInput struct {
	AllergenTags            []string `json:"allergen_tags"`
	DietaryRequirementTags  []string `json:"dietary_requirement_tags"`
	LanguagePreference      string   `json:"language_preference"`
	CountryPreference       string   `json:"country_preference"`
	GetOnlyLocalisedResults *bool    `json:"get_only_localised_results"`
}

func GetUserSettings(userID uint) (*models.UserSettings, error) {
	var settings models.UserSettings
	err := config.DB.Preload("Allergens").Preload("DietaryRequirements").
		Where("user_id = ?", userID).First(&settings).Error
	if err != nil {
		return nil, fmt.Errorf("settings not found for user %d: %w", userID, err)
	}
	return &settings, nil
}

// UpdateUserSettings replaces the allergen/dietary selections with the rows
// matching the submitted facet tags; unknown tags are silently dropped.
func UpdateUserSettings(userID uint, input SettingsInput) (*models.UserSettings, error) {
	settings, err := GetUserSettings(userID)
	if err != nil {
		return nil, err
	}

	if input.LanguagePreference != "" {
		settings.LanguagePreference = input.LanguagePreference
	}
	if input.CountryPreference != "" {
		settings.CountryPreference = input.CountryPreference
	}
	if input.GetOnlyLocalisedResults != nil {
		settings.GetOnlyLocalisedResults = *input.GetOnlyLocalisedResults
	}

	err = config.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(settings).Error; err != nil {
			return err
		}

		if input.AllergenTags != nil {
			var allergens []models.Allergen
			if err := tx.Where("api_tag IN ?", input.AllergenTags).Find(&allergens).Error; err != nil {
				return err
			}
			if err := tx.Model(settings).Association("Allergens").Replace(allergens); err != nil {
				return err
			}
		}

		if input.DietaryRequirementTags != nil {
			var requirements []models.DietaryRequirement
			if err := tx.Where("api_tag IN ?", input.DietaryRequirementTags).Find(&requirements).Error; err != nil {
				return err
			}
			if err := tx.Model(settings).Association("DietaryRequirements").Replace(requirements); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return GetUserSettings(userID)
}

// ToggleFavourite flips the product's membership in the user's favourites
// and reports the new state.
func ToggleFavourite(userID uint, productCode string) (bool, error) {
	var user models.User
	if err := config.DB.First(&user, userID).Error; err != nil {
		return false, errors.New("user not found")
	}

	var product models.Product
	if err := config.DB.Where("code = ?", productCode).First(&product).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, ErrProductNotFound
		}
		return false, err
	}

	var count int64
	err := config.DB.Table("user_favourited_products").
		Where("user_id = ? AND product_id = ?", user.ID, product.ID).
		Count(&count).Error
	if err != nil {
		return false, err
	}

	if count > 0 {
		err := config.DB.Model(&user).Association("FavouritedProducts").Delete(&product)
		return false, err
	}
	err = config.DB.Model(&user).Association("FavouritedProducts").Append(&product)
	return true, err
}
