package api

import (
	"github.com/uma-arai/sbcntr-pickup/internal/api/handler"
	"github.com/uma-arai/sbcntr-pickup/internal/api/response"
)

// Server はルーティングに必要なハンドラをまとめます
type Server struct {
	Responder            *response.Responder
	HealthHandler        *handler.HealthHandler
	PresetHandler        *handler.PresetHandler
	ReservationHandler   *handler.ReservationHandler
	ProductImportHandler *handler.ProductImportHandler
	FormSettingsHandler  *handler.FormSettingsHandler
	AdminHandler         *handler.AdminHandler
	WebhookHandler       *handler.WebhookHandler
}
