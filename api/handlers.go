package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"

	"todokit/domain"
	"todokit/tools"
)

// Register wires up all API routes on the provided Echo instance.
func Register(e *echo.Echo, d Deps) {
	broker := newUpdateBroker()

	e.POST("/chatkit/actions", postAction(d, broker))
	e.POST("/api/chat", postChat(d, broker))
	e.GET("/api/tools", getTools(d))
	e.POST("/api/tools/:name", invokeTool(d, broker))
	e.GET("/api/todos", getTodos(d))
	e.GET("/api/branding", getBranding(d))
	e.GET("/stream", streamWidget(d, broker))
	e.GET("/healthz", healthz())
}

func healthz() echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	}
}

func getTodos(d Deps) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		if _, err := d.Auth.UserIDFromAuthHeader(c.Request().Header.Get(echo.HeaderAuthorization)); err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}
		todos, err := d.Store.List(ctx)
		if err != nil {
			c.Logger().Error(err)
			return c.String(http.StatusInternalServerError, "something went wrong, please try again")
		}
		return c.JSON(http.StatusOK, todosResponse{Todos: todos})
	}
}

func getBranding(d Deps) echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.JSON(http.StatusOK, d.Branding)
	}
}

// getTools serves the tool manifest an external orchestrator binds against.
func getTools(d Deps) echo.HandlerFunc {
	return func(c echo.Context) error {
		if _, err := d.Auth.UserIDFromAuthHeader(c.Request().Header.Get(echo.HeaderAuthorization)); err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}
		return c.JSON(http.StatusOK, d.Tools.Specs())
	}
}

type invokeResponse struct {
	Result tools.Result `json:"result"`
	Error  string       `json:"error,omitempty"`
}

// invokeTool runs one named tool with JSON arguments on behalf of an external
// orchestrator. Recoverable tool errors come back in the body with a 200 so
// the orchestrator can relay them to the user; storage faults are a 500.
func invokeTool(d Deps, broker *updateBroker) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		if _, err := d.Auth.UserIDFromAuthHeader(c.Request().Header.Get(echo.HeaderAuthorization)); err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}

		tool, ok := d.Tools.Get(c.Param("name"))
		if !ok {
			return c.String(http.StatusNotFound, "unknown tool")
		}

		args, err := io.ReadAll(io.LimitReader(c.Request().Body, actionMaxSize))
		if err != nil {
			return c.String(http.StatusBadRequest, "invalid body")
		}

		result, invokeErr := tool.Invoke(ctx, args)
		if invokeErr != nil {
			if recoverable(invokeErr) {
				return c.JSON(http.StatusOK, invokeResponse{Error: invokeErr.Error()})
			}
			c.Logger().Error(invokeErr)
			return c.String(http.StatusInternalServerError, "something went wrong, please try again")
		}
		if result.ShowWidget {
			broker.notify()
		}
		return c.JSON(http.StatusOK, invokeResponse{Result: result})
	}
}

// recoverable reports whether the error is one of the user-facing kinds that
// must not propagate as a transport fault.
func recoverable(err error) bool {
	var verr domain.ValidationError
	var nf domain.NotFoundError
	var amb domain.AmbiguousMatchError
	return errors.As(err, &verr) || errors.As(err, &nf) || errors.As(err, &amb)
}
