package handlers

import (
	"go.uber.org/zap"

	"github.com/JoseManaure/portfolio-server/internal/config"
	"github.com/JoseManaure/portfolio-server/internal/geo"
	"github.com/JoseManaure/portfolio-server/internal/relay"
	"github.com/JoseManaure/portfolio-server/internal/store"
)

type Handler struct {
	Engine *relay.Engine
	Store  store.Store
	Geo    *geo.Client
	Cfg    config.Config
	Log    *zap.SugaredLogger
}

func NewHandler(engine *relay.Engine, st store.Store, geoClient *geo.Client, cfg config.Config, log *zap.SugaredLogger) *Handler {
	return &Handler{Engine: engine, Store: st, Geo: geoClient, Cfg: cfg, Log: log}
}
