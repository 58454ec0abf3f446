package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/lectern/internal/entities"
	"github.com/mrlokans/lectern/internal/settingsstore"
)

// SettingsController manages provider settings.
type SettingsController struct {
	settings ProviderSettings
}

func NewSettingsController(settings ProviderSettings) *SettingsController {
	return &SettingsController{settings: settings}
}

// GetProviders handles GET /api/settings/providers.
// Keys are returned masked.
func (sc *SettingsController) GetProviders(c *gin.Context) {
	infos, err := sc.settings.ProvidersInfo(c.Request.Context())
	if err != nil {
		respondInternalError(c, err, "providers info")
		return
	}
	c.JSON(http.StatusOK, gin.H{"providers": infos})
}

// UpdateProvider handles PUT /api/settings/providers/:provider.
func (sc *SettingsController) UpdateProvider(c *gin.Context) {
	provider, ok := entities.ParseProviderID(c.Param("provider"))
	if !ok {
		respondBadRequest(c, "unknown provider "+c.Param("provider"))
		return
	}
	var update settingsstore.ProviderUpdate
	if err := c.ShouldBindJSON(&update); err != nil {
		respondBadRequest(c, "invalid request body")
		return
	}
	if err := sc.settings.UpdateProvider(c.Request.Context(), provider, update); err != nil {
		respondInternalError(c, err, "update provider")
		return
	}
	respondSuccess(c, "provider settings saved")
}

// ClearProvider handles DELETE /api/settings/providers/:provider.
func (sc *SettingsController) ClearProvider(c *gin.Context) {
	provider, ok := entities.ParseProviderID(c.Param("provider"))
	if !ok {
		respondBadRequest(c, "unknown provider "+c.Param("provider"))
		return
	}
	if err := sc.settings.ClearProvider(c.Request.Context(), provider); err != nil {
		respondInternalError(c, err, "clear provider")
		return
	}
	respondSuccess(c, "provider settings cleared")
}
