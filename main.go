package main

import (
	"net/http"

	handler "studyhabit-backend/api"
	"studyhabit-backend/pkg/config"
	"studyhabit-backend/pkg/logs"
)

// 本地开发服务器：把所有请求交给与Vercel部署相同的入口函数处理
func main() {
	cfg := config.GetCached()

	level := "info"
	if cfg.Debug {
		level = "debug"
	}
	format := "text"
	if cfg.IsProduction() {
		format = "json"
	}
	logs.Init(logs.Options{Level: level, Format: format})

	if err := cfg.Validate(); err != nil {
		logs.Logger.WithError(err).Fatal("invalid configuration")
	}

	addr := ":" + cfg.Port
	logs.Logger.WithField("addr", addr).WithField("storage", cfg.StorageDriver).Info("studyhabit backend listening")

	if err := http.ListenAndServe(addr, http.HandlerFunc(handler.Handler)); err != nil {
		logs.Logger.WithError(err).Fatal("server stopped")
	}
}
