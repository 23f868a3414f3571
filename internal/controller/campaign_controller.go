// internal/controller/campaign_controller.go
package controller

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	appErrors "github.com/unclebandit/practicehub-backend/internal/errors"
	"github.com/unclebandit/practicehub-backend/internal/handler"
	"github.com/unclebandit/practicehub-backend/internal/logger"
	"github.com/unclebandit/practicehub-backend/internal/model"
	"github.com/unclebandit/practicehub-backend/internal/service"
)

// CampaignManager is the campaign lifecycle the controller drives.
type CampaignManager interface {
	CreateCampaign(ctx context.Context, actor model.Actor, in service.CreateCampaignInput) (*model.Campaign, error)
	UpdateCampaign(ctx context.Context, actor model.Actor, id int64, in service.UpdateCampaignInput) (*model.Campaign, error)
	DeleteCampaign(ctx context.Context, actor model.Actor, id int64) error
	ListCampaigns(ctx context.Context, actor model.Actor, page, pageSize int, status model.CampaignStatus) (*service.CampaignPage, error)
	GetCampaignDetails(ctx context.Context, actor model.Actor, id int64) (*service.CampaignDetails, error)
	History(ctx context.Context, actor model.Actor, id int64) ([]model.CampaignHistory, error)
}

type CampaignSender interface {
	SendImmediate(ctx context.Context, actor model.Actor, campaignID int64) (*service.SendResult, error)
}

type CampaignController struct {
	Campaigns CampaignManager
	Delivery  CampaignSender
	Logger    *logger.Logger
}

func (c *CampaignController) Mount(_, protected chi.Router) {
	protected.Get("/campaigns", c.ListCampaigns)
	protected.Get("/campaigns/mine", c.ListCampaigns)
	protected.Post("/campaigns", c.CreateCampaign)
	protected.Get("/campaigns/{id}", c.GetCampaignDetails)
	protected.Patch("/campaigns/{id}", c.UpdateCampaign)
	protected.Delete("/campaigns/{id}", c.DeleteCampaign)
	protected.Post("/campaigns/{id}/send", c.SendCampaign)
	protected.Get("/campaigns/{id}/history", c.History)
}

type createCampaignRequest struct {
	Name          string             `json:"name" validate:"required,max=255"`
	Content       string             `json:"content" validate:"required"`
	Description   *string            `json:"description"`
	DeliveryType  model.DeliveryType `json:"delivery_type" validate:"required,oneof=IMMEDIATE SCHEDULED"`
	TargetRoles   model.Roles        `json:"target_roles" validate:"required,min=1"`
	PracticeIDs   []int64            `json:"practice_ids"`
	ScheduledDate *time.Time         `json:"scheduled_date"`
}

type updateCampaignRequest struct {
	Name         *string             `json:"name" validate:"omitempty,max=255"`
	Content      *string             `json:"content"`
	Description  *string             `json:"description"`
	DeliveryType *model.DeliveryType `json:"delivery_type"`
	TargetRoles  model.Roles         `json:"target_roles"`
	PracticeIDs  []int64             `json:"practice_ids"`
}

type sendCampaignResponse struct {
	Message string `json:"message"`
	*service.SendResult
}

func (c *CampaignController) CreateCampaign(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorOrFail(w, r)
	if !ok {
		return
	}
	var body createCampaignRequest
	if err := handler.DecodeJSON(r, &body); err != nil {
		handler.WriteError(r.Context(), c.Logger, w, err)
		return
	}

	campaign, err := c.Campaigns.CreateCampaign(r.Context(), actor, service.CreateCampaignInput{
		Name:          body.Name,
		Content:       body.Content,
		Description:   body.Description,
		DeliveryType:  body.DeliveryType,
		TargetRoles:   body.TargetRoles,
		PracticeIDs:   body.PracticeIDs,
		ScheduledDate: body.ScheduledDate,
	})
	if err != nil {
		handler.WriteError(r.Context(), c.Logger, w, err)
		return
	}
	handler.WriteJSON(w, http.StatusCreated, campaign)
}

func (c *CampaignController) ListCampaigns(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorOrFail(w, r)
	if !ok {
		return
	}
	page, err := handler.QueryInt(r, "page", 1)
	if err != nil {
		handler.WriteError(r.Context(), c.Logger, w, err)
		return
	}
	pageSize, err := handler.QueryInt(r, "page_size", 0)
	if err != nil {
		handler.WriteError(r.Context(), c.Logger, w, err)
		return
	}
	status := model.CampaignStatus(r.URL.Query().Get("status"))
	switch status {
	case "", model.CampaignDraft, model.CampaignInProgress, model.CampaignCompleted, model.CampaignFailed:
	default:
		handler.WriteError(r.Context(), c.Logger, w, appErrors.Newf(appErrors.CodeValidation, "unknown status %q", status))
		return
	}

	result, err := c.Campaigns.ListCampaigns(r.Context(), actor, page, pageSize, status)
	if err != nil {
		handler.WriteError(r.Context(), c.Logger, w, err)
		return
	}
	handler.WriteJSON(w, http.StatusOK, result)
}

func (c *CampaignController) GetCampaignDetails(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorOrFail(w, r)
	if !ok {
		return
	}
	id, err := handler.PathID(r, "id")
	if err != nil {
		handler.WriteError(r.Context(), c.Logger, w, err)
		return
	}

	details, err := c.Campaigns.GetCampaignDetails(r.Context(), actor, id)
	if err != nil {
		handler.WriteError(r.Context(), c.Logger, w, err)
		return
	}
	handler.WriteJSON(w, http.StatusOK, details)
}

func (c *CampaignController) UpdateCampaign(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorOrFail(w, r)
	if !ok {
		return
	}
	id, err := handler.PathID(r, "id")
	if err != nil {
		handler.WriteError(r.Context(), c.Logger, w, err)
		return
	}
	var body updateCampaignRequest
	if err := handler.DecodeJSON(r, &body); err != nil {
		handler.WriteError(r.Context(), c.Logger, w, err)
		return
	}

	campaign, err := c.Campaigns.UpdateCampaign(r.Context(), actor, id, service.UpdateCampaignInput{
		Name:         body.Name,
		Content:      body.Content,
		Description:  body.Description,
		DeliveryType: body.DeliveryType,
		TargetRoles:  body.TargetRoles,
		PracticeIDs:  body.PracticeIDs,
	})
	if err != nil {
		handler.WriteError(r.Context(), c.Logger, w, err)
		return
	}
	handler.WriteJSON(w, http.StatusOK, campaign)
}

func (c *CampaignController) DeleteCampaign(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorOrFail(w, r)
	if !ok {
		return
	}
	id, err := handler.PathID(r, "id")
	if err != nil {
		handler.WriteError(r.Context(), c.Logger, w, err)
		return
	}

	if err := c.Campaigns.DeleteCampaign(r.Context(), actor, id); err != nil {
		handler.WriteError(r.Context(), c.Logger, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (c *CampaignController) SendCampaign(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorOrFail(w, r)
	if !ok {
		return
	}
	id, err := handler.PathID(r, "id")
	if err != nil {
		handler.WriteError(r.Context(), c.Logger, w, err)
		return
	}

	result, err := c.Delivery.SendImmediate(r.Context(), actor, id)
	if err != nil {
		handler.WriteError(r.Context(), c.Logger, w, err)
		return
	}
	handler.WriteJSON(w, http.StatusOK, sendCampaignResponse{Message: result.Message(), SendResult: result})
}

func (c *CampaignController) History(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorOrFail(w, r)
	if !ok {
		return
	}
	id, err := handler.PathID(r, "id")
	if err != nil {
		handler.WriteError(r.Context(), c.Logger, w, err)
		return
	}

	entries, err := c.Campaigns.History(r.Context(), actor, id)
	if err != nil {
		handler.WriteError(r.Context(), c.Logger, w, err)
		return
	}
	handler.WriteJSON(w, http.StatusOK, entries)
}
