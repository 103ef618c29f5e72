package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"SpyCanvas/internal/api"
	"SpyCanvas/internal/config"
	"SpyCanvas/internal/interfaces"
	"SpyCanvas/internal/notify"
	"SpyCanvas/internal/repository"
	"SpyCanvas/internal/service"

	"github.com/gin-contrib/pprof"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

type services struct {
	store       *repository.Store
	matchmaking *service.MatchmakingService
	matches     *service.MatchService
	rating      *service.RatingService
	players     *service.PlayerService
}

func newServices(cfg *config.Config, store *repository.Store, pub interfaces.Publisher, log *logrus.Logger) *services {
	rules := cfg.Rules()
	rating := service.NewRatingService(store, pub, rules, log)
	return &services{
		store:       store,
		matchmaking: service.NewMatchmakingService(store, pub, rules, log),
		matches:     service.NewMatchService(store, rating, pub, rules, log),
		rating:      rating,
		players:     service.NewPlayerService(store),
	}
}

func runServe(ctx context.Context, configFile string) error {
	cfg, log, db, err := setup(configFile)
	if err != nil {
		return err
	}
	if cfg.Auth.JWTSecret == "" {
		return errors.New("auth.jwt_secret 未配置")
	}

	hub := notify.NewHub(log)
	defer hub.Close()
	pub := notify.Fanout{hub}
	if cfg.Realtime.BaseURL != "" {
		b := notify.NewBroadcaster(&cfg.Realtime, log)
		defer b.Close()
		pub = append(pub, b)
		log.Infof("外部实时推送已启用: %s", cfg.Realtime.BaseURL)
	}
	svc := newServices(cfg, repository.NewStore(db), pub, log)

	gin.SetMode(cfg.Server.Mode)
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())
	if cfg.Server.Pprof {
		// 注册pprof 方便调试和监测性能问题
		pprof.Register(r)
	}
	api.RegisterRoutes(r, api.Deps{
		Store:       svc.store,
		Matchmaking: svc.matchmaking,
		Matches:     svc.matches,
		Players:     svc.players,
		Hub:         hub,
		JWTSecret:   cfg.Auth.JWTSecret,
		CronSecret:  cfg.Matchmaking.CronSecret,
		Logger:      log,
	})
	log.Infof("Gin运行模式: %s", cfg.Server.Mode)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Infof("服务启动成功，端口：%d", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("启动服务失败: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("收到退出信号，开始关闭服务")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		hub.Close()
		return srv.Shutdown(shutdownCtx)
	})
	if cfg.Matchmaking.TickInterval > 0 {
		g.Go(func() error {
			every(gctx, cfg.Matchmaking.TickInterval, func(ctx context.Context) {
				if _, err := svc.matchmaking.RunTick(ctx); err != nil {
					log.WithError(err).Warn("匹配调度失败")
				}
			})
			return nil
		})
	}
	if cfg.Rating.RetryInterval > 0 {
		g.Go(func() error {
			every(gctx, cfg.Rating.RetryInterval, func(ctx context.Context) {
				if _, err := svc.rating.Run(ctx); err != nil {
					log.WithError(err).Warn("积分结算重试失败")
				}
			})
			return nil
		})
	}
	return g.Wait()
}

// every 按固定间隔执行 fn，直到 ctx 取消
func every(ctx context.Context, interval time.Duration, fn func(ctx context.Context)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fn(ctx)
		}
	}
}

func runMatchmakeOnce(ctx context.Context, configFile string) error {
	cfg, log, db, err := setup(configFile)
	if err != nil {
		return err
	}
	pub := notify.Fanout{}
	if cfg.Realtime.BaseURL != "" {
		// 退出前 Close 会发完队列中的通知
		b := notify.NewBroadcaster(&cfg.Realtime, log)
		defer b.Close()
		pub = append(pub, b)
	}
	svc := newServices(cfg, repository.NewStore(db), pub, log)
	report, err := svc.matchmaking.RunTick(ctx)
	if err != nil {
		return err
	}
	if _, err := svc.rating.Run(ctx); err != nil {
		log.WithError(err).Warn("积分结算重试失败")
	}
	log.WithFields(logrus.Fields{
		"scanned": report.Scanned,
		"skipped": report.Skipped,
		"matches": len(report.Matches),
	}).Info("匹配调度完成")
	return nil
}
