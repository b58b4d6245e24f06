package handler

import (
	"context"
	"errors"
	"html/template"
	"net/http"

	"github.com/delivery/backend/internal/application/dispatch"
	"github.com/delivery/backend/internal/domain/shared"
	"github.com/delivery/backend/internal/infrastructure/logger"
	"github.com/delivery/backend/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/render"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// OfferResponder answers a driver's accept or refuse link
type OfferResponder interface {
	Accept(ctx context.Context, orderID, driverID uuid.UUID) (*dispatch.AcceptResult, error)
	Refuse(ctx context.Context, orderID, driverID uuid.UUID) (*dispatch.RefuseResult, error)
}

var pageTemplate = template.Must(template.New("page").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>{{.Title}}</title>
<style>
body{font-family:system-ui,sans-serif;background:#f6f6f6;margin:0;display:flex;min-height:100vh;align-items:center;justify-content:center}
.card{background:#fff;border-radius:12px;padding:32px;max-width:420px;text-align:center;box-shadow:0 2px 12px rgba(0,0,0,.08)}
h1{font-size:1.4rem;margin:0 0 12px}
.error h1{color:#c0392b}
p{color:#555;line-height:1.4}
</style>
</head>
<body>
<div class="card{{if .Error}} error{{end}}">
<h1>{{.Title}}</h1>
<p>{{.Message}}</p>
</div>
</body>
</html>`))

type pageData struct {
	Title   string
	Message string
	Error   bool
}

// DispatchPages serves the accept and refuse links sent to drivers
type DispatchPages struct {
	responder OfferResponder
}

// NewDispatchPages creates the accept/refuse page handler
func NewDispatchPages(responder OfferResponder) *DispatchPages {
	return &DispatchPages{responder: responder}
}

// Accept handles GET /accept/:orderId?driverId= and redirects the driver
// into the driver app, signed in
func (p *DispatchPages) Accept(c *gin.Context) {
	orderID, driverID, ok := p.ids(c)
	if !ok {
		return
	}

	result, err := p.responder.Accept(c.Request.Context(), orderID, driverID)
	if err != nil {
		p.renderError(c, err)
		return
	}
	c.Redirect(http.StatusFound, result.RedirectURL)
}

// Refuse handles GET /refuse/:orderId?driverId=
func (p *DispatchPages) Refuse(c *gin.Context) {
	orderID, driverID, ok := p.ids(c)
	if !ok {
		return
	}

	result, err := p.responder.Refuse(c.Request.Context(), orderID, driverID)
	if err != nil {
		p.renderError(c, err)
		return
	}

	switch {
	case result.TakenByOther:
		p.render(c, http.StatusOK, pageData{
			Title:   "Order already taken",
			Message: "Another driver accepted this order. Nothing else to do.",
		})
	case result.Next == nil:
		p.render(c, http.StatusOK, pageData{
			Title:   "Order already yours",
			Message: "You accepted this order earlier. Open the driver app to follow it.",
		})
	default:
		p.render(c, http.StatusOK, pageData{
			Title:   "Order refused",
			Message: "Thanks, the order was passed on to another driver.",
		})
	}
}

func (p *DispatchPages) ids(c *gin.Context) (uuid.UUID, uuid.UUID, bool) {
	orderID, err := uuid.Parse(c.Param("orderId"))
	if err != nil {
		p.render(c, http.StatusBadRequest, pageData{Title: "Invalid link", Message: "The order in this link is not valid.", Error: true})
		return uuid.Nil, uuid.Nil, false
	}
	driverID, err := uuid.Parse(c.Query("driverId"))
	if err != nil {
		p.render(c, http.StatusBadRequest, pageData{Title: "Invalid link", Message: "The driver in this link is not valid.", Error: true})
		return uuid.Nil, uuid.Nil, false
	}
	return orderID, driverID, true
}

func (p *DispatchPages) renderError(c *gin.Context, err error) {
	domainErr, ok := shared.AsDomainError(err)
	if !ok {
		logger.GetGinLogger(c).Error("dispatch link failed", zap.Error(err))
		p.render(c, http.StatusInternalServerError, pageData{
			Title:   "Something went wrong",
			Message: "Please try again in a moment.",
			Error:   true,
		})
		return
	}

	switch {
	case errors.Is(err, dispatch.ErrOrderTaken):
		p.render(c, http.StatusConflict, pageData{
			Title:   "Order already taken",
			Message: "Another driver was faster. Keep an eye out for the next offer.",
			Error:   true,
		})
	case errors.Is(err, dispatch.ErrNotDispatchable):
		p.render(c, http.StatusConflict, pageData{
			Title:   "Order no longer available",
			Message: "This order is not waiting for a driver anymore.",
			Error:   true,
		})
	default:
		status := dto.GetHTTPStatus(domainErr.Code)
		title := "Link no longer valid"
		if status == http.StatusNotFound {
			title = "Not found"
		}
		p.render(c, status, pageData{Title: title, Message: domainErr.Message, Error: true})
	}
}

func (p *DispatchPages) render(c *gin.Context, status int, data pageData) {
	c.Render(status, render.HTML{Template: pageTemplate, Name: "page", Data: data})
}
