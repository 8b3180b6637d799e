package node

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"espnow-bridge/pkg/addrtable"
)

const shutdownTimeout = 3 * time.Second

type API struct {
	Api    *echo.Echo
	Engine *Engine
}

type identityResponse struct {
	Addr     string   `json:"addr"`
	DevNo    uint8    `json:"dev"`
	Resolved bool     `json:"resolved"`
	Upstream string   `json:"upstream"`
	Table    []string `json:"table"`
}

func NewAPI(e *Engine) *API {
	api := &API{Api: echo.New(), Engine: e}
	api.Api.HideBanner = true
	api.Api.HidePort = true
	api.Api.GET("/stats", api.GetStats)
	api.Api.GET("/identity", api.GetIdentity)
	api.Api.POST("/status", api.PostStatus)
	api.Api.GET("/topology", api.GetTopology)
	return api
}

func (api *API) Start(addr string) error { return api.Api.Start(addr) }

func (api *API) Shutdown(ctx context.Context) error { return api.Api.Shutdown(ctx) }

func (api *API) GetStats(c echo.Context) error {
	return c.JSON(http.StatusOK, api.Engine.Snapshot())
}

func (api *API) GetIdentity(c echo.Context) error {
	return c.JSON(http.StatusOK, identity(api.Engine))
}

// PostStatus is the HTTP form of the external status stimulus.
func (api *API) PostStatus(c echo.Context) error {
	api.Engine.RequestStatus()
	return c.NoContent(http.StatusAccepted)
}

// GetTopology renders the star topology as SVG, or as DOT with ?format=dot.
func (api *API) GetTopology(c echo.Context) error {
	dot := api.Engine.Table().Graphviz(api.Engine.Upstream(), api.Engine.Addr())
	if c.QueryParam("format") == "dot" {
		return c.String(http.StatusOK, dot)
	}
	svg, err := addrtable.RenderSVG(c.Request().Context(), dot)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.Blob(http.StatusOK, "image/svg+xml", svg)
}

func identity(e *Engine) identityResponse {
	devNo, ok := e.DeviceNumber()
	addrs := e.Table().Addrs()
	table := make([]string, len(addrs))
	for i, a := range addrs {
		table[i] = a.String()
	}
	return identityResponse{
		Addr:     e.Addr().String(),
		DevNo:    devNo,
		Resolved: ok,
		Upstream: e.Upstream().String(),
		Table:    table,
	}
}
