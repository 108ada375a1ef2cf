// Package server exposes the platform over HTTP: route registration,
// authentication middleware, request logging, and metrics.
package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/trustvault/backend/internal/accounting"
	"github.com/trustvault/backend/internal/auth"
	"github.com/trustvault/backend/internal/engine"
	"github.com/trustvault/backend/internal/invite"
	"github.com/trustvault/backend/internal/ledger"
	"github.com/trustvault/backend/internal/oracle"
	"github.com/trustvault/backend/internal/storage"
)

// Deps carries everything the router wires into handlers.
type Deps struct {
	Store         storage.Store
	Groups        *ledger.Ledger
	Engine        *engine.Engine
	Invites       *invite.Workflow
	Accounting    *accounting.Accounting
	Oracle        oracle.PriceOracle
	Authenticator auth.Authenticator
	Tokens        *auth.JWTManager
	Metrics       prometheus.Registerer
}

// NewRouter builds the HTTP router with all routes registered. Everything
// except signup, login, health, and metrics requires a Bearer token.
func NewRouter(d Deps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), RequestLogger(), Metrics(d.Metrics))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if g, ok := d.Metrics.(prometheus.Gatherer); ok {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(g, promhttp.HandlerOpts{})))
	}

	authHandler := NewAuthHandler(d.Authenticator, d.Tokens)
	userHandler := NewUserHandler(d.Store)
	groupHandler := NewGroupHandler(d.Store, d.Groups, d.Accounting)
	txnHandler := NewTransactionHandler(d.Engine)
	inviteHandler := NewInviteHandler(d.Invites)
	stockHandler := NewStockHandler(d.Oracle, d.Engine)

	r.POST("/auth/signup", authHandler.Signup)
	r.POST("/auth/login", authHandler.Login)

	authed := r.Group("/", RequireAuth(d.Tokens))

	authed.GET("/users/me", userHandler.Me)

	groups := authed.Group("/groups")
	{
		groups.POST("", groupHandler.Create)
		groups.GET("", groupHandler.List)
		groups.GET("/:id", groupHandler.Get)
		groups.DELETE("/:id", groupHandler.Delete)
		groups.GET("/:id/members", groupHandler.Members)
		groups.POST("/:id/members", groupHandler.AddMember)
		groups.DELETE("/:id/members/:userId", groupHandler.RemoveMember)
		groups.POST("/:id/deposit", groupHandler.Deposit)
		groups.GET("/:id/holdings", groupHandler.Holdings)
		groups.GET("/:id/forecast", groupHandler.Forecast)
	}

	txns := authed.Group("/transactions")
	{
		txns.POST("", txnHandler.Propose)
		txns.GET("", txnHandler.List)
		txns.GET("/history/me", txnHandler.History)
		txns.GET("/:id", txnHandler.Get)
		txns.POST("/:id/vote", txnHandler.Vote)
		txns.POST("/:id/execute", txnHandler.Execute)
	}

	invites := authed.Group("/invites")
	{
		invites.POST("", inviteHandler.Create)
		invites.GET("", inviteHandler.Mine)
		invites.GET("/group/:groupId", inviteHandler.ForGroup)
		invites.POST("/:id/accept", inviteHandler.Accept)
		invites.POST("/:id/decline", inviteHandler.Decline)
		invites.DELETE("/:id", inviteHandler.Cancel)
	}

	stocks := authed.Group("/stocks")
	{
		stocks.GET("/lists", stockHandler.Lists)
		stocks.GET("/quote/:symbol", stockHandler.Quote)
		stocks.POST("/quotes", stockHandler.Quotes)
		stocks.POST("/trade", stockHandler.Trade)
	}

	return r
}
