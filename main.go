package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	mongoutil "PairLink/data/database/mgo/mongoutil"
	"PairLink/global/config"
	"PairLink/logger"
	mid "PairLink/middleware"
	midsec "PairLink/middleware/security"
	"PairLink/module/pairing/handler"
	"PairLink/module/pairing/service"
	pairstore "PairLink/module/pairing/store"
	"PairLink/module/presence"
	mgosrv "PairLink/service/mgo"
	"PairLink/service/natsx"
	redissrv "PairLink/service/storage/redis"
	"PairLink/tools/retry"
	jwtlib "PairLink/tools/security"

	"github.com/gin-gonic/gin"
)

func main() {
	config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// durable store
	mgosrv.StartAsync(ctx, &mongoutil.Config{
		Uri:      config.Global.MongoUri,
		Database: config.Global.MongoDatabase,
	})
	waitCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := mgosrv.WaitReady(waitCtx); err != nil {
		logger.Errorf("mongo not ready: %v", err)
		return
	}
	durable := pairstore.NewMongoStore(mgosrv.GetClient())

	// ephemeral presence store
	if err := redissrv.InitRedis(redissrv.Config{
		Addr:     config.Global.RedisAddr,
		Password: config.Global.RedisPassword,
		DB:       config.Global.RedisDB,
	}); err != nil {
		logger.Errorf("redis init: %v", err)
		return
	}
	defer func() { _ = redissrv.CloseRedis() }()

	leaseTTL := time.Duration(config.Global.LeaseTTLSeconds) * time.Second
	pstore := presence.NewRedisStore(redissrv.GetRedis(), leaseTTL)

	sweeper := presence.NewSweeper(pstore, time.Duration(config.Global.SweepSeconds)*time.Second)
	sweeper.Start(ctx)
	defer sweeper.Stop()

	sessions := presence.NewManager(ctx, pstore, service.NewDirectory(durable), presence.Options{
		Heartbeat: time.Duration(config.Global.HeartbeatSeconds) * time.Second,
	})
	defer sessions.StopAll(context.Background())

	// best-effort partner notifications
	var notifier service.Notifier = service.NopNotifier{}
	if nc, err := natsx.NewNatsxClient(natsx.NatsxConfig{
		Servers: []string{config.Global.NatsUrl},
		Name:    "pairlink-api",
	}); err != nil {
		logger.Warnf("nats unavailable, notifications disabled: %v", err)
	} else {
		defer func() { _ = nc.Close() }()
		_ = nc.RegisterRoute(natsx.NatsxRoute{Biz: "pairing.notify", Subject: "pairing.notify"})
		notifier = service.NewNatsNotifier(natsx.NewNatsxProducer(nc))
	}

	co := service.NewCoordinator(durable, pstore, sessions, notifier, retry.Policy{})
	h := handler.New(co)

	r := gin.Default()
	authOpt := mid.RouteOpt{
		IsAuth: true,
		Auth:   midsec.Options{JWT: jwtlib.DefaultOptions(config.GetJwtSecret())},
	}

	api := r.Group("/api/pairing")
	mid.POST(api, "/login", h.Login, authOpt)
	mid.POST(api, "/logout", h.Logout, authOpt)
	mid.POST(api, "/code", h.GenerateInviteCode, authOpt)
	mid.POST(api, "/connect", h.ConnectWithCode, authOpt)
	mid.POST(api, "/disconnect", h.DisconnectPartner, authOpt)
	mid.GET(api, "/search", h.SearchUsers, authOpt)
	mid.POST(api, "/request", h.SendPartnerRequest, authOpt)
	mid.POST(api, "/request/:id/accept", h.AcceptPartnerRequest, authOpt)
	mid.POST(api, "/request/:id/decline", h.DeclinePartnerRequest, authOpt)
	mid.GET(api, "/status", h.Status, authOpt)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", config.Global.Port),
		Handler: r,
	}
	go func() {
		logger.Infof("listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Errorf("http server: %v", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	_ = srv.Shutdown(shutdownCtx)
	logger.Sync()
}
