package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/safarmate/transit-backend/internal/services"
	"github.com/sirupsen/logrus"
)

// channelRequest is the gateway callback body, sent as JSON or form data
type channelRequest struct {
	SessionID   string `json:"sessionId" form:"sessionId"`
	PhoneNumber string `json:"phoneNumber" form:"phoneNumber"`
	Text        string `json:"text" form:"text"`
}

// ChannelHandler adapts SMS and USSD gateway webhooks to the dispatcher.
// Replies are plain text and always 200 so gateways deliver them.
type ChannelHandler struct {
	dispatcher *services.ChannelDispatcher
	logger     *logrus.Logger
}

func NewChannelHandler(dispatcher *services.ChannelDispatcher, logger *logrus.Logger) *ChannelHandler {
	return &ChannelHandler{dispatcher: dispatcher, logger: logger}
}

func (h *ChannelHandler) bind(c *gin.Context) channelRequest {
	var req channelRequest
	if c.Request.ContentLength == 0 {
		return req
	}
	if err := c.ShouldBind(&req); err != nil {
		// An unreadable body is treated as an empty message, which shows the menu.
		h.logger.WithError(err).WithField("path", c.Request.URL.Path).Warn("Unreadable channel payload")
		return channelRequest{}
	}
	return req
}

// HandleSMS answers one SMS turn
// POST /api/sms
func (h *ChannelHandler) HandleSMS(c *gin.Context) {
	req := h.bind(c)
	reply := h.dispatcher.HandleSMS(c.Request.Context(), services.SMSMessage{
		SessionID:   req.SessionID,
		PhoneNumber: req.PhoneNumber,
		Text:        req.Text,
	})
	c.String(http.StatusOK, reply)
}

// HandleUSSD answers one USSD callback
// POST /api/ussd
func (h *ChannelHandler) HandleUSSD(c *gin.Context) {
	req := h.bind(c)
	reply := h.dispatcher.HandleUSSD(c.Request.Context(), services.USSDRequest{
		SessionID:   req.SessionID,
		PhoneNumber: req.PhoneNumber,
		Text:        req.Text,
	})
	c.String(http.StatusOK, reply)
}
