package main

import (
	"github.com/Rajak13/Abdul-Razzaq-Ansari-Elevare-sub000/internal/cache"
	"github.com/Rajak13/Abdul-Razzaq-Ansari-Elevare-sub000/internal/config"
	"github.com/Rajak13/Abdul-Razzaq-Ansari-Elevare-sub000/internal/database"
	"github.com/Rajak13/Abdul-Razzaq-Ansari-Elevare-sub000/internal/hub"
	"github.com/Rajak13/Abdul-Razzaq-Ansari-Elevare-sub000/internal/logging"
	"github.com/Rajak13/Abdul-Razzaq-Ansari-Elevare-sub000/internal/membership"
	"github.com/Rajak13/Abdul-Razzaq-Ansari-Elevare-sub000/internal/server"
	"github.com/Rajak13/Abdul-Razzaq-Ansari-Elevare-sub000/internal/whiteboard"
)

func main() {
	cfg := config.Load()
	log := logging.New()
	defer func() { _ = log.Sync() }()

	db, err := database.Connect()
	if err != nil {
		log.Fatalf("database connection failed: %v", err)
	}
	defer func() { _ = database.Close(db) }()

	if err := database.Ping(db); err != nil {
		log.Fatalf("database ping failed: %v", err)
	}
	log.Infof("database connected")

	oracle := membership.NewGormOracle(db)
	canvas := whiteboard.NewService(whiteboard.NewGormGateway(db), cfg.Canvas, log)

	var mirror *cache.Mirror
	if cfg.Redis.Enabled {
		mirror, err = cache.NewMirror(cfg.Redis, log)
		if err != nil {
			log.Warnf("redis unavailable, presence mirror disabled: %v", err)
			mirror = nil
		} else {
			defer func() { _ = mirror.Close() }()
		}
	}

	// hub.Mirror is an interface; a typed nil *cache.Mirror must not reach it.
	var hubMirror hub.Mirror
	if mirror != nil {
		hubMirror = mirror
	}

	h := hub.New(cfg, log, oracle, canvas, hubMirror)
	h.Start()
	defer h.Stop()

	srv := server.New(cfg, db, log, h, canvas, oracle, mirror)
	srv.SetupMiddleware()
	srv.SetupRoutes()

	if err := srv.Start(); err != nil {
		log.Fatalf("server failed to start: %v", err)
	}
}
