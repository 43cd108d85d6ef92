package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/balancednetwork/balanced-network-interface-sub005/pkg/store"
	"github.com/balancednetwork/balanced-network-interface-sub005/pkg/types"
)

// Confirmer triggers destination execution for a tracked transfer.
type Confirmer interface {
	Confirm(ctx context.Context, sn uint64) error
}

// Reverter triggers origin rollback for a failed transfer.
type Reverter interface {
	Revert(ctx context.Context, sn uint64) error
}

// Server exposes the transfer registry over HTTP: read-only views plus
// the two manual actions (confirm, rollback).
type Server struct {
	echo      *echo.Echo
	lifecycle *store.Store
	confirmer Confirmer
	reverter  Reverter
}

func NewServer(lifecycle *store.Store, confirmer Confirmer, reverter Reverter) *Server {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())

	s := &Server{
		echo:      e,
		lifecycle: lifecycle,
		confirmer: confirmer,
		reverter:  reverter,
	}

	e.GET("/healthz", s.health)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	e.GET("/transfers", s.listTransfers)
	e.GET("/transfers/:sn", s.getTransfer)
	e.POST("/transfers/:sn/confirm", s.confirmTransfer)
	e.POST("/transfers/:sn/rollback", s.rollbackTransfer)
	return s
}

func (s *Server) Start(addr string) error {
	log.Info().Str("addr", addr).Msg("[Api] [Start] starting http server")
	if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

type transferView struct {
	Sn               uint64  `json:"sn"`
	Status           string  `json:"status"`
	OriginChain      string  `json:"originChain"`
	DestinationChain string  `json:"destinationChain"`
	TxHash           string  `json:"txHash"`
	RollbackEligible bool    `json:"rollbackEligible"`
	AutoExecute      bool    `json:"autoExecute"`
	ReqID            *uint64 `json:"reqId,omitempty"`
}

func viewFromEntry(entry types.LifecycleEntry) transferView {
	view := transferView{
		Sn:               entry.Sn,
		Status:           entry.Status.String(),
		OriginChain:      entry.Origin.OriginChain.String(),
		DestinationChain: entry.Origin.DestinationChain.String(),
		TxHash:           entry.Origin.TxHash,
		RollbackEligible: entry.Origin.RollbackEligible,
		AutoExecute:      entry.Origin.AutoExecute,
	}
	if entry.Destination != nil {
		reqID := entry.Destination.ReqID
		view.ReqID = &reqID
	}
	return view
}

func (s *Server) health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) listTransfers(c echo.Context) error {
	entries := s.lifecycle.List()
	views := make([]transferView, 0, len(entries))
	for _, entry := range entries {
		views = append(views, viewFromEntry(entry))
	}
	return c.JSON(http.StatusOK, views)
}

func (s *Server) getTransfer(c echo.Context) error {
	sn, err := parseSn(c)
	if err != nil {
		return err
	}
	entry, err := s.lifecycle.Get(sn)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "transfer not found")
	}
	return c.JSON(http.StatusOK, viewFromEntry(entry))
}

func (s *Server) confirmTransfer(c echo.Context) error {
	sn, err := parseSn(c)
	if err != nil {
		return err
	}
	if err := s.confirmer.Confirm(c.Request().Context(), sn); err != nil {
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	}
	return c.NoContent(http.StatusAccepted)
}

func (s *Server) rollbackTransfer(c echo.Context) error {
	sn, err := parseSn(c)
	if err != nil {
		return err
	}
	if err := s.reverter.Revert(c.Request().Context(), sn); err != nil {
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	}
	return c.NoContent(http.StatusAccepted)
}

func parseSn(c echo.Context) (uint64, error) {
	sn, err := strconv.ParseUint(c.Param("sn"), 10, 64)
	if err != nil {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid sn")
	}
	return sn, nil
}
