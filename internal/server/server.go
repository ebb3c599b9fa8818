package server

import (
	"context"
	"net/http"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/skillforge/skillforge/internal/activity"
	activitydomain "github.com/skillforge/skillforge/internal/activity/domain"
	"github.com/skillforge/skillforge/internal/cache"
	skfclock "github.com/skillforge/skillforge/internal/clock"
	"github.com/skillforge/skillforge/internal/config"
	"github.com/skillforge/skillforge/internal/events"
	"github.com/skillforge/skillforge/internal/leaderboard"
	leaderboarddomain "github.com/skillforge/skillforge/internal/leaderboard/domain"
	"github.com/skillforge/skillforge/internal/observability"
	obsmiddleware "github.com/skillforge/skillforge/internal/observability/logger"
	obsmetrics "github.com/skillforge/skillforge/internal/observability/metrics"
	obstracing "github.com/skillforge/skillforge/internal/observability/tracing"
	"github.com/skillforge/skillforge/internal/progression"
	progressiondomain "github.com/skillforge/skillforge/internal/progression/domain"
	"github.com/skillforge/skillforge/internal/ratelimit"
	"github.com/skillforge/skillforge/internal/user"
	userdomain "github.com/skillforge/skillforge/internal/user/domain"
	"github.com/skillforge/skillforge/internal/xp"
	xpdomain "github.com/skillforge/skillforge/internal/xp/domain"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("http.server",
	config.Module,
	fx.Provide(registerGin),
	skfclock.Module,
	cache.Module,
	ratelimit.Module,
	events.Module,
	user.Module,
	xp.Module,
	activity.Module,
	progression.Module,
	leaderboard.Module,
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(obsmetrics.GinMiddleware(httpMetrics))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	return NewEngine(obsCfg, httpMetrics)
}

func run(lc fx.Lifecycle, r *gin.Engine) {
	srv := &http.Server{
		Addr:    ":8080",
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					panic(err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine         *gin.Engine
	cfg            config.Config
	db             *gorm.DB
	genID          *snowflake.Node
	userSvc        userdomain.Service
	xpSvc          xpdomain.Service
	activitySvc    activitydomain.Service
	progressionSvc progressiondomain.Service
	leaderboardSvc leaderboarddomain.Service
	resolverCache  cache.LearnerResolverCache
	obsMetrics     *obsmetrics.Metrics
	ingestLimiter  *ratelimit.EventIngestLimiter
}

type ServerParams struct {
	fx.In

	Gin            *gin.Engine
	Cfg            config.Config
	DB             *gorm.DB
	GenID          *snowflake.Node
	UserSvc        userdomain.Service
	XPSvc          xpdomain.Service
	ActivitySvc    activitydomain.Service
	ProgressionSvc progressiondomain.Service
	LeaderboardSvc leaderboarddomain.Service
	ResolverCache  cache.LearnerResolverCache
	ObsMetrics     *obsmetrics.Metrics           `optional:"true"`
	IngestLimiter  *ratelimit.EventIngestLimiter `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:         p.Gin,
		cfg:            p.Cfg,
		db:             p.DB,
		genID:          p.GenID,
		userSvc:        p.UserSvc,
		xpSvc:          p.XPSvc,
		activitySvc:    p.ActivitySvc,
		progressionSvc: p.ProgressionSvc,
		leaderboardSvc: p.LeaderboardSvc,
		resolverCache:  p.ResolverCache,
		obsMetrics:     p.ObsMetrics,
		ingestLimiter:  p.IngestLimiter,
	}

	svc.registerAPIRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	v1 := s.engine.Group("/v1")

	// -------- Learners --------
	v1.POST("/learners", s.CreateLearner)
	v1.GET("/learners/:id", s.GetLearner)
	v1.GET("/learners/:id/xp", s.GetXPInfo)
	v1.GET("/learners/:id/xp/history", s.GetXPHistory)
	v1.GET("/learners/:id/streak", s.GetStreak)
	v1.GET("/learners/:id/activity", s.GetDailyActivity)
	v1.GET("/learners/:id/rank", s.GetRank)

	// -------- Progression event ingest --------
	ingest := v1.Group("/progression", s.EventIngestRateLimit())
	{
		ingest.POST("/lessons/:lessonId/complete", s.CompleteLesson)
		ingest.POST("/quizzes/:quizId/pass", s.PassQuiz)
		ingest.POST("/assessments/:assessmentId/pass", s.PassAssessment)
		ingest.POST("/activity", s.RecordActivity)
		ingest.POST("/streaks/:days/bonus", s.AwardStreakBonus)
	}

	// -------- Leaderboard --------
	v1.GET("/leaderboard", s.GetLeaderboard)
}
