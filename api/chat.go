package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"todokit/azureai"
	"todokit/widget"
)

const assistantInstructions = `You are a helpful todo list assistant.
Use the add_task tool to add items, add_tasks_bulk for several at once,
complete_task when the user finishes something, delete_task to remove items,
and list_tasks whenever the user wants to see the list. Always call a tool
for todo requests; after a tool call an interactive widget is shown, so keep
text replies to a single short sentence.`

type chatRequest struct {
	Message  string `json:"message"`
	ThreadID string `json:"thread_id,omitempty"`
}

type toolCallResult struct {
	Tool  string `json:"tool"`
	Reply string `json:"reply,omitempty"`
	Error string `json:"error,omitempty"`
}

type chatResponse struct {
	Reply       string           `json:"reply"`
	ToolResults []toolCallResult `json:"toolResults,omitempty"`
	Widget      *widget.Node     `json:"widget,omitempty"`
}

// postChat performs a single chat-completions round trip with the tool
// manifest attached and invokes any tool calls the model requested. The
// multi-round orchestration loop stays with the external orchestrator; this
// endpoint only hosts the tools and the display-flag contract.
func postChat(d Deps, broker *updateBroker) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		if _, err := d.Auth.UserIDFromAuthHeader(c.Request().Header.Get(echo.HeaderAuthorization)); err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}
		if d.AI == nil {
			return c.String(http.StatusServiceUnavailable, "chat is not configured")
		}

		var req chatRequest
		if err := c.Bind(&req); err != nil {
			return c.String(http.StatusBadRequest, "invalid body")
		}
		if strings.TrimSpace(req.Message) == "" {
			return c.String(http.StatusBadRequest, "message is required")
		}

		defs := make([]azureai.ToolDef, 0)
		for _, spec := range d.Tools.Specs() {
			defs = append(defs, azureai.ToolDef{
				Name:        spec.Name,
				Description: spec.Description,
				Parameters:  spec.Parameters,
			})
		}

		completion, err := d.AI.Complete(ctx, []azureai.Message{
			azureai.NewSystemMessage(assistantInstructions),
			azureai.NewUserMessage(req.Message),
		}, defs)
		if err != nil {
			c.Logger().Error(err)
			return c.String(http.StatusBadGateway, "assistant is unavailable, please try again")
		}

		resp := chatResponse{Reply: completion.Reply()}
		showWidget := false
		mutated := false

		for _, call := range completion.RequestedToolCalls() {
			tool, ok := d.Tools.Get(call.Function.Name)
			if !ok {
				c.Logger().Warnf("model requested unknown tool %q", call.Function.Name)
				resp.ToolResults = append(resp.ToolResults, toolCallResult{
					Tool:  call.Function.Name,
					Error: "unknown tool",
				})
				continue
			}
			result, invokeErr := tool.Invoke(ctx, json.RawMessage(call.Function.Arguments))
			if invokeErr != nil {
				if !recoverable(invokeErr) {
					c.Logger().Error(invokeErr)
					return c.String(http.StatusInternalServerError, "something went wrong, please try again")
				}
				// Validation, not-found and ambiguity outcomes travel back as
				// text so the user can clarify.
				resp.ToolResults = append(resp.ToolResults, toolCallResult{
					Tool:  call.Function.Name,
					Error: invokeErr.Error(),
				})
				continue
			}
			resp.ToolResults = append(resp.ToolResults, toolCallResult{
				Tool:  call.Function.Name,
				Reply: result.Reply,
			})
			if result.ShowWidget {
				showWidget = true
				mutated = true
			}
		}

		// Consume the display request after the turn: attach the rebuilt
		// widget when any tool asked for it.
		if showWidget {
			contextID := req.ThreadID
			if contextID == "" {
				contextID = "global"
			}
			todos, listErr := d.Store.List(ctx)
			if listErr != nil {
				c.Logger().Error(listErr)
				return c.String(http.StatusInternalServerError, "something went wrong, please try again")
			}
			tree := widget.Build(todos, contextID)
			resp.Widget = &tree
		}
		if mutated {
			broker.notify()
		}
		return c.JSON(http.StatusOK, resp)
	}
}
