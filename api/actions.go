package api

import (
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"todokit/domain"
	"todokit/widget"
)

var tracer = otel.Tracer("todokit/api")

// postAction handles structured widget interactions: form submits, checkbox
// toggles and button presses. Every outcome, including a stale reference to a
// concurrently deleted todo, responds with the freshly rebuilt widget.
func postAction(d Deps, broker *updateBroker) echo.HandlerFunc {
	return func(c echo.Context) (err error) {
		metrics := newActionRequestMetrics(d.Logger)
		defer func() {
			metrics.Log(c.Response().Status, err)
		}()

		ctx, span := tracer.Start(c.Request().Context(), "chatkit.action")
		defer span.End()

		authStart := time.Now()
		userID, authErr := d.Auth.UserIDFromAuthHeader(c.Request().Header.Get(echo.HeaderAuthorization))
		metrics.ObserveAuth(time.Since(authStart))
		if authErr != nil {
			metrics.SetErrorStage("auth")
			err = c.String(http.StatusUnauthorized, authErr.Error())
			return err
		}

		lr := io.LimitReader(c.Request().Body, actionMaxSize)
		dec := sonic.ConfigStd.NewDecoder(lr)
		dec.DisallowUnknownFields()
		var ev actionEvent
		if decodeErr := dec.Decode(&ev); decodeErr != nil {
			metrics.SetErrorStage("decode")
			err = c.String(http.StatusBadRequest, "invalid body")
			return err
		}
		metrics.SetActionType(ev.ActionType)
		span.SetAttributes(
			attribute.String("action.type", ev.ActionType),
			attribute.String("action.component_id", ev.ComponentID),
		)

		contextID := ev.ThreadID
		if contextID == "" {
			contextID = "global"
		}

		// Replayed events skip the mutation but still get the current widget.
		fresh := true
		if d.Deduper != nil && ev.EventID != "" {
			added, dedupeErr := d.Deduper.Add(ctx, userID, ev.EventID)
			if dedupeErr != nil {
				c.Logger().Error(dedupeErr)
			} else if !added {
				fresh = false
				metrics.SetDeduped()
			}
		}

		message := ""
		mutated := false
		if fresh {
			storeStart := time.Now()
			message, mutated, err = applyAction(c, d, ev)
			metrics.ObserveStore(time.Since(storeStart))
			if err != nil {
				// Storage-layer fault: the mutation must not appear to have
				// succeeded, so release the dedupe record for a retry.
				if d.Deduper != nil && ev.EventID != "" {
					_ = d.Deduper.Remove(ctx, userID, ev.EventID)
				}
				metrics.SetErrorStage("storage")
				span.SetStatus(codes.Error, err.Error())
				c.Logger().Error(err)
				err = c.String(http.StatusInternalServerError, "something went wrong, please try again")
				return err
			}
		}

		buildStart := time.Now()
		todos, listErr := d.Store.List(ctx)
		if listErr != nil {
			metrics.SetErrorStage("storage")
			span.SetStatus(codes.Error, listErr.Error())
			c.Logger().Error(listErr)
			err = c.String(http.StatusInternalServerError, "something went wrong, please try again")
			return err
		}
		tree := widget.Build(todos, contextID)
		metrics.ObserveBuild(time.Since(buildStart))

		if mutated {
			broker.notify()
		}
		err = c.JSON(http.StatusOK, actionResponse{Widget: tree, Message: message})
		return err
	}
}

// applyAction dispatches one interaction event to the store. It returns a
// user-facing message for recoverable outcomes and reserves the error return
// for storage faults.
func applyAction(c echo.Context, d Deps, ev actionEvent) (message string, mutated bool, err error) {
	ctx := c.Request().Context()

	switch ev.ActionType {
	case widget.ActionSubmitNewTodo:
		text := strings.TrimSpace(payloadString(ev.Payload, "text"))
		if text == "" {
			return "Please enter a todo first.", false, nil
		}
		if _, addErr := d.Store.Add(ctx, text); addErr != nil {
			var verr domain.ValidationError
			if errors.As(addErr, &verr) {
				return verr.Msg, false, nil
			}
			return "", false, addErr
		}
		return "", true, nil

	case widget.ActionToggleTodo, widget.ActionCompleteTodo:
		id := payloadString(ev.Payload, "id")
		if id == "" {
			return "", false, nil
		}
		if _, completeErr := d.Store.Complete(ctx, id); completeErr != nil {
			var nf domain.NotFoundError
			if errors.As(completeErr, &nf) {
				// Concurrently deleted; the rebuilt widget self-heals the client.
				c.Logger().Warnf("action %s for missing todo %s", ev.ActionType, id)
				return "", false, nil
			}
			return "", false, completeErr
		}
		return "", true, nil

	case widget.ActionDeleteTodo:
		id := payloadString(ev.Payload, "id")
		if id == "" {
			return "", false, nil
		}
		if deleteErr := d.Store.Delete(ctx, id); deleteErr != nil {
			var nf domain.NotFoundError
			if errors.As(deleteErr, &nf) {
				c.Logger().Warnf("delete for missing todo %s", id)
				return "", false, nil
			}
			return "", false, deleteErr
		}
		return "", true, nil

	default:
		// Tolerate schema skew between client and server widget versions.
		c.Logger().Warnf("ignoring unknown action type %q", ev.ActionType)
		return "", false, nil
	}
}

func payloadString(payload map[string]any, key string) string {
	if payload == nil {
		return ""
	}
	v, _ := payload[key].(string)
	return v
}
