package api

import (
	httpSwagger "github.com/swaggo/http-swagger"

	_ "sms-decline-analysis/docs"
	"sms-decline-analysis/internal/api/handler"
	"sms-decline-analysis/pkg/router"
)

func RegisterRoutes(r *router.Router, h *handler.Handler) {
	r.POST("/api/v1/runs", h.CreateRun)
	r.GET("/api/v1/runs", h.ListRuns)
	r.GET("/api/v1/runs/*/comparison", h.GetComparison)
	r.GET("/api/v1/runs/*/coefficients", h.GetCoefficients)
	r.GET("/api/v1/runs/*/errors", h.GetRunErrors)
	r.GET("/api/v1/runs/*/progress", h.GetRunProgress)
	r.GET("/api/v1/runs/*/files", h.GetRunFiles)
	r.PATCH("/api/v1/runs/*/cancel", h.CancelRun)
	r.GET("/api/v1/runs/*", h.GetRun)
	r.DELETE("/api/v1/runs/*", h.DeleteRun)
	r.GET("/api/v1/download/*/*", h.DownloadFile)

	r.GET("/swagger/*", httpSwagger.Handler(httpSwagger.URL("/swagger/doc.json")).ServeHTTP)
}
