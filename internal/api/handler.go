// Package api exposes the read-only operations surface: live positions,
// trade history and prometheus metrics.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rezamoosavidweb/bot-trade/internal/capital"
	"github.com/rezamoosavidweb/bot-trade/internal/cascade"
	"github.com/rezamoosavidweb/bot-trade/pkg/bybit"
	"github.com/rezamoosavidweb/bot-trade/pkg/db"
)

// Exchange is the slice of the trading client the ops surface reads from.
type Exchange interface {
	GetWalletBalance(ctx context.Context, coin string) (float64, error)
	GetClosedPnL(ctx context.Context, limit int) ([]bybit.ClosedPnL, error)
}

// Server wires HTTP endpoints around the pipeline's read-only state.
type Server struct {
	Router    *gin.Engine
	Store     *cascade.Store
	Journal   *db.Journal
	Books     *capital.Tracker
	Exchange  Exchange
	JWTSecret string
	Meta      SystemMeta
}

// SystemMeta describes runtime status exposed to operators.
type SystemMeta struct {
	Demo       bool
	SettleCoin string
	Version    string
}

func NewServer(store *cascade.Store, journal *db.Journal, books *capital.Tracker, exchange Exchange, meta SystemMeta, jwtSecret string) *Server {
	r := gin.New()

	// Middleware stack (order matters!)
	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())
	r.Use(RequestLogger())
	r.Use(RateLimitMiddleware())
	r.Use(TimeoutMiddleware(30 * time.Second))
	r.Use(CORSMiddleware())

	s := &Server{
		Router:    r,
		Store:     store,
		Journal:   journal,
		Books:     books,
		Exchange:  exchange,
		JWTSecret: jwtSecret,
		Meta:      meta,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.Router.GET("/health", s.health)
	s.Router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := s.Router.Group("/api")
	api.Use(AuthMiddleware(s.JWTSecret))
	{
		api.GET("/positions", s.getPositions)
		api.GET("/stats", s.getStats)
		api.GET("/trades", s.getTrades)
		api.GET("/balance", s.getBalance)
		api.GET("/pnl", s.getClosedPnl)
	}
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":     "ok",
		"demo":       s.Meta.Demo,
		"settleCoin": s.Meta.SettleCoin,
		"version":    s.Meta.Version,
	})
}

func (s *Server) getPositions(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"positions": s.Store.Snapshot()})
}

func (s *Server) getStats(c *gin.Context) {
	journalStats, err := s.Journal.Stats(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "stats query failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"journal": journalStats,
		"session": s.Books.Snapshot(),
	})
}

func (s *Server) getTrades(c *gin.Context) {
	trades, err := s.Journal.RecentTrades(c.Request.Context(), 50)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "trades query failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"trades": trades})
}

func (s *Server) getBalance(c *gin.Context) {
	balance, err := s.Exchange.GetWalletBalance(c.Request.Context(), s.Meta.SettleCoin)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "balance query failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"coin": s.Meta.SettleCoin, "balance": balance})
}

// getClosedPnl reports the exchange's own view of recent closed trades, next
// to the local journal in /api/trades.
func (s *Server) getClosedPnl(c *gin.Context) {
	rows, err := s.Exchange.GetClosedPnL(c.Request.Context(), 10)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "closed pnl query failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"closedPnl": rows})
}

func (s *Server) Start(addr string) error {
	return s.Router.Run(addr)
}
