// Package v1 exposes the ask API: free-text Russian questions in, resolved
// answers with source attribution out.
package v1

import (
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/hrygo/cleanbrain/brain/logging"
	"github.com/hrygo/cleanbrain/brain/metrics"
	"github.com/hrygo/cleanbrain/brain/resolver"
	"github.com/hrygo/cleanbrain/internal/profile"
	"github.com/hrygo/cleanbrain/internal/strutil"
)

// hints maps resolver failure codes to user-facing Russian hints.
var hints = map[string][]string{
	resolver.ErrNoAddress:           {"Укажите адрес, например: «Контакты старшего Ленина 10»."},
	resolver.ErrNoMonth:             {"Уточните месяц: октябрь, ноябрь или декабрь."},
	resolver.ErrElderNotFound:       {"Старший по этому дому не найден в CRM."},
	resolver.ErrHouseNotFound:       {"Дом с таким адресом не найден."},
	resolver.ErrCleaningNotFound:    {"График уборки для этого дома не заполнен."},
	resolver.ErrContractorNotFound:  {"Управляющая компания для этого дома не указана."},
	resolver.ErrNoTasks:             {"Задач по этому запросу не найдено."},
	resolver.ErrNoTransactions:      {"Транзакций за указанный период не найдено."},
	resolver.ErrAddressRequired:     {"Укажите адрес дома."},
	resolver.ErrBrigadeNotSpecified: {"Укажите номер бригады, например: «Задачи бригады 2»."},
	resolver.ErrNoMatch: {
		"Не понял вопрос. Примеры: «Контакты старшего <адрес>», «График уборки <адрес> октябрь», «Финансы за месяц».",
	},
}

// AskRequest is the ask endpoint payload.
type AskRequest struct {
	Message string `json:"message"`
	UserID  string `json:"user_id,omitempty"`
	Debug   bool   `json:"debug,omitempty"`
}

// APIV1Service serves /api/v1.
type APIV1Service struct {
	Profile    *profile.Profile
	Dispatcher *resolver.Dispatcher
	Metrics    *metrics.Collector

	logger *logging.Logger
}

// NewAPIV1Service creates the v1 API service.
func NewAPIV1Service(prof *profile.Profile, dispatcher *resolver.Dispatcher, collector *metrics.Collector) *APIV1Service {
	return &APIV1Service{
		Profile:    prof,
		Dispatcher: dispatcher,
		Metrics:    collector,
		logger:     logging.Default().WithField("component", "api_v1"),
	}
}

// RegisterRoutes attaches the v1 routes.
func (s *APIV1Service) RegisterRoutes(e *echo.Echo) {
	group := e.Group("/api/v1")
	group.POST("/ask", s.ask)
	group.GET("/metrics", s.snapshot)
}

func (s *APIV1Service) ask(c echo.Context) error {
	var req AskRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	req.Message = strings.TrimSpace(req.Message)
	if req.Message == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "message is required")
	}

	requestID := uuid.NewString()
	c.Response().Header().Set("X-Request-ID", requestID)

	answer := s.Dispatcher.Ask(c.Request().Context(), req.Message, req.Debug)
	if !answer.Success && len(answer.Hints) == 0 {
		answer.Hints = hints[answer.Error]
	}

	s.logger.Info("ask",
		"request_id", requestID,
		"user_id", req.UserID,
		"message", strutil.Truncate(req.Message, 80),
		"rule", string(answer.Rule),
		"success", answer.Success,
	)
	return c.JSON(http.StatusOK, answer)
}

func (s *APIV1Service) snapshot(c echo.Context) error {
	return c.JSON(http.StatusOK, s.Metrics.Snapshot())
}
