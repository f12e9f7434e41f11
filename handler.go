package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Handler holds shared dependencies (db pool, detection engine) for all route handlers.
type Handler struct {
	db            *pgxpool.Pool
	engine        *engine
	openAIBaseURL string // Base URL for OpenAI API (overridable for tests)
}

/* ─── Database helpers ────────────────────────────────────────────────── */

// pgQuerier abstracts *pgxpool.Pool and pgx.Tx so the query helpers work both
// inside and outside transactions.
type pgQuerier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// queryOne runs a query and scans the first row into T using RowToStructByName.
// Logs query and scan errors for debugging (e.g. struct/column mismatches).
func queryOne[T any](q pgQuerier, ctx context.Context, sql string, args pgx.NamedArgs) (T, error) {
	rows, err := q.Query(ctx, sql, args)
	if err != nil {
		log.Printf("[queryOne] Query error: %v", err)
		var zero T
		return zero, err
	}
	result, err := pgx.CollectOneRow(rows, pgx.RowToStructByName[T])
	if err != nil {
		log.Printf("[queryOne] Scan error: %v", err)
	}
	return result, err
}

// queryMany runs a query and scans all rows into []T using RowToStructByName.
func queryMany[T any](q pgQuerier, ctx context.Context, sql string, args pgx.NamedArgs) ([]T, error) {
	rows, err := q.Query(ctx, sql, args)
	if err != nil {
		log.Printf("[queryMany] Query error: %v", err)
		return nil, err
	}
	results, err := pgx.CollectRows(rows, pgx.RowToStructByName[T])
	if err != nil {
		log.Printf("[queryMany] Scan error: %v", err)
	}
	return results, err
}

// apiError returns a consistent JSON error response: {"error": "message"}.
func apiError(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"error": message})
}

/* ─── Server setup ────────────────────────────────────────────────────── */

// getDBPool creates a connection pool. We use a pool (not a single conn) because
// Neon closes idle connections after ~5 minutes.
func getDBPool() *pgxpool.Pool {
	config, err := pgxpool.ParseConfig(os.Getenv("DB_URL"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Unable to parse DB URL: %v\n", err)
		os.Exit(1)
	}
	// Use simple query protocol to avoid "cached plan must not change result type"
	// errors from Neon's server-side prepared statement cache after schema changes.
	config.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol
	pool, err := pgxpool.NewWithConfig(context.Background(), config)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Unable to connect to database: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("DB pool ready!")
	return pool
}

// health is the unauthenticated liveness probe.
func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// registerRoutes registers all API routes on the router.
func (h *Handler) registerRoutes(router *gin.Engine) {
	// Public routes
	router.POST("/api/login", h.login)
	router.GET("/health", h.health)

	// Authenticated routes
	api := router.Group("/api", h.authMiddleware())
	api.GET("/weight-log", h.getWeightLog)
	api.POST("/weight-log", h.upsertWeightSample)
	api.PUT("/weight-log/:id", h.updateWeightSample)
	api.DELETE("/weight-log/:id", h.deleteWeightSample)

	api.GET("/intake-log", h.getDailyIntake)
	api.GET("/intake-log/daily-totals", h.getIntakeDayTotals)
	api.POST("/intake-log", h.createIntakeEntry)
	api.POST("/intake-log/suggest", h.suggestIntakeEntry)
	api.PUT("/intake-log/:id", h.updateIntakeEntry)
	api.DELETE("/intake-log/:id", h.deleteIntakeEntry)

	api.GET("/calorie-target", h.getCalorieTarget)
	api.PUT("/calorie-target", h.putCalorieTarget)
	api.PATCH("/profile", h.patchProfile)

	api.POST("/adaptation/detect", h.runDetection)
	api.GET("/adaptation/events", h.getAdaptationEvents)
	api.GET("/adaptation/summary", h.getMetabolicSummary)
	api.POST("/adaptation/events/:id/approve", h.approveAdaptation)
	api.POST("/adaptation/events/:id/decline", h.declineAdaptation)
}
