package echoapi

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/mahudhurio/core/attendance"
	"github.com/trezcool/mahudhurio/core/student"
)

type attendanceApi struct {
	svc attendance.Service
}

func registerAttendanceAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc attendance.Service) {
	api := attendanceApi{svc: svc}

	ag := g.Group("/attendance")

	// un-authed endpoints: scan stations and monitor displays live on the LAN
	ag.POST("/scan", api.scan)
	ag.GET("/activity", api.activity)

	// authed endpoints
	og := ag.Group("", jwt)
	og.POST("/manual", api.manual)
	og.GET("", api.query, adminMiddleware())
	og.GET("/today", api.today, adminMiddleware())
}

// Handlers

func (api *attendanceApi) scan(ctx echo.Context) error {
	var data attendance.NewAttendance
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewAttendance")
	}
	// stations only ever report presence; anything else goes through /manual
	data.Method = attendance.MethodScanner
	data.Status = attendance.StatusPresent
	return api.record(ctx, data)
}

func (api *attendanceApi) manual(ctx echo.Context) error {
	var data attendance.NewAttendance
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewAttendance")
	}
	data.Method = attendance.MethodManual

	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	if data.StationTag == "" {
		data.StationTag = claims.StationTag
	}
	return api.record(ctx, data)
}

func (api *attendanceApi) record(ctx echo.Context, data attendance.NewAttendance) error {
	res, err := api.svc.Record(ctx.Request().Context(), data)
	if err != nil {
		switch errors.Cause(err) {
		case student.ErrNotFound:
			return errStudentNotFound
		case student.ErrAmbiguousIdentity:
			return errAmbiguousIdentity
		}
		return errors.Wrap(err, "recording attendance")
	}

	code := http.StatusCreated
	if res.Outcome == attendance.OutcomeAlreadyRecorded {
		code = http.StatusOK
	}
	return ctx.JSON(code, res)
}

func (api *attendanceApi) activity(ctx echo.Context) error {
	date, err := bindDate(ctx, api.svc.Today())
	if err != nil {
		return err
	}
	limit, _ := strconv.Atoi(ctx.QueryParam("limit"))

	act, err := api.svc.Activity(ctx.Request().Context(), date, limit)
	if err != nil {
		return errors.Wrap(err, "querying activity")
	}
	return ctx.JSON(http.StatusOK, act)
}

func (api *attendanceApi) query(ctx echo.Context) error {
	date, err := bindDate(ctx, api.svc.Today())
	if err != nil {
		return err
	}

	var ordering Ordering
	ordering.Bind(ctx)

	entries, err := api.svc.ListByDate(ctx.Request().Context(), date, ordering.Orderings...)
	if err != nil {
		return errors.Wrap(err, "querying attendance")
	}
	return ctx.JSON(http.StatusOK, entries)
}

func (api *attendanceApi) today(ctx echo.Context) error {
	stats, err := api.svc.Stats(ctx.Request().Context(), api.svc.Today())
	if err != nil {
		return errors.Wrap(err, "computing stats")
	}
	return ctx.JSON(http.StatusOK, stats)
}
