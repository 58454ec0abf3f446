package http

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/lectern/internal/conversation"
	"github.com/mrlokans/lectern/internal/entities"
)

// ChatController handles conversations about books.
type ChatController struct {
	chat         ChatService
	defaultModel string
}

func NewChatController(chat ChatService, defaultModel string) *ChatController {
	return &ChatController{chat: chat, defaultModel: defaultModel}
}

type askRequest struct {
	Question string `json:"question"`
	Preset   string `json:"preset"`
	Model    string `json:"model"`
}

type explainRequest struct {
	Selection string `json:"selection" binding:"required"`
	Question  string `json:"question"`
	Model     string `json:"model"`
}

// ChatResponse is the outcome of one question.
type ChatResponse struct {
	Reply   string                       `json:"reply"`
	Usage   *entities.Usage              `json:"usage,omitempty"`
	History entities.ConversationHistory `json:"history,omitempty"`
	Error   string                       `json:"error,omitempty"`
	Code    string                       `json:"code,omitempty"`
}

func (cc *ChatController) model(requested string) string {
	if m := strings.TrimSpace(requested); m != "" {
		return m
	}
	return cc.defaultModel
}

// Ask handles POST /api/books/:id/chat. A failed exchange is still recorded
// and answered with the network error reply.
func (cc *ChatController) Ask(c *gin.Context) {
	id, ok := parseBookID(c)
	if !ok {
		return
	}
	var req askRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid request body")
		return
	}

	ctx := c.Request.Context()
	var (
		exchange conversation.Exchange
		err      error
	)
	if req.Preset != "" {
		if _, known := conversation.QuickPromptText(conversation.QuickPrompt(req.Preset)); !known {
			respondBadRequest(c, "unknown preset "+req.Preset)
			return
		}
		exchange, err = cc.chat.AskPreset(ctx, id, cc.model(req.Model), conversation.QuickPrompt(req.Preset))
	} else {
		exchange, err = cc.chat.Ask(ctx, id, cc.model(req.Model), req.Question)
	}

	if err != nil && exchange.Reply.Content != "" && conversation.IsNetworkFailure(err) {
		c.JSON(http.StatusBadGateway, ChatResponse{
			Reply:   exchange.Reply.Content,
			History: exchange.History,
			Error:   conversation.NetworkErrorMessage,
			Code:    CodeNetwork,
		})
		return
	}
	if err != nil {
		respondServiceError(c, err, "ask")
		return
	}

	usage := exchange.Usage
	c.JSON(http.StatusOK, ChatResponse{
		Reply:   exchange.Reply.Content,
		Usage:   &usage,
		History: exchange.History,
	})
}

// History handles GET /api/books/:id/chat.
func (cc *ChatController) History(c *gin.Context) {
	id, ok := parseBookID(c)
	if !ok {
		return
	}
	history, err := cc.chat.History(c.Request.Context(), id)
	if err != nil {
		respondServiceError(c, err, "chat history")
		return
	}
	c.JSON(http.StatusOK, gin.H{"history": history})
}

// Clear handles DELETE /api/books/:id/chat.
func (cc *ChatController) Clear(c *gin.Context) {
	id, ok := parseBookID(c)
	if !ok {
		return
	}
	if err := cc.chat.Clear(c.Request.Context(), id); err != nil {
		respondServiceError(c, err, "clear chat")
		return
	}
	respondSuccess(c, "conversation cleared")
}

// Explain handles POST /api/chat/explain.
func (cc *ChatController) Explain(c *gin.Context) {
	var req explainRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "selection is required")
		return
	}
	completion, err := cc.chat.Explain(c.Request.Context(), cc.model(req.Model), req.Selection, req.Question)
	if err != nil {
		if conversation.IsNetworkFailure(err) {
			c.JSON(http.StatusBadGateway, ChatResponse{
				Reply: conversation.NetworkErrorMessage,
				Error: conversation.NetworkErrorMessage,
				Code:  CodeNetwork,
			})
			return
		}
		respondServiceError(c, err, "explain")
		return
	}
	usage := completion.Usage
	c.JSON(http.StatusOK, ChatResponse{Reply: completion.Content, Usage: &usage})
}
