package controllers

import (
	"net/http"

	"github.com/mnmfullmetal/savor/services"

	"github.com/gin-gonic/gin"
)

// settingsChoices builds the selectable options, localized to the user's
// language preference where the facet cache has translations.
func settingsChoices(languageTag string) gin.H {
	languageCode := services.LanguageCodeMap[languageTag]

	choice := func(facet string) []gin.H {
		data := services.Facets.GetFacet(facet, languageCode)
		if data == nil {
			return nil
		}
		out := make([]gin.H, 0, len(data.Tags))
		for _, tag := range data.Tags {
			if tag.Name == "" {
				continue
			}
			out = append(out, gin.H{"id": tag.ID, "name": tag.Name})
		}
		return out
	}

	return gin.H{
		"allergens": choice("allergens"),
		"labels":    choice("labels"),
		"languages": choice("languages"),
		"countries": choice("countries"),
	}
}

// GET /settings
func GetSettings(c *gin.Context) {
	settings, err := services.GetUserSettings(c.GetUint("userID"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"settings": settings,
		"choices":  settingsChoices(settings.LanguagePreference),
	})
}

// PUT /settings
func UpdateSettings(c *gin.Context) {
	var input services.SettingsInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	settings, err := services.UpdateUserSettings(c.GetUint("userID"), input)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, settings)
}
