package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

func main() {
	// Set properties of the predefined Logger, including
	// the log entry prefix and a flag to disable printing
	// the time, source file, and line number.
	log.SetPrefix("lg/metabolic-adapt-go-api: ")
	log.SetFlags(0)

	sweep := flag.Bool("sweep", false, "run one detection sweep across all users, then exit (cron entrypoint)")
	sweepParallel := flag.Int("sweep-parallel", 8, "max concurrent users during -sweep")
	flag.Parse()

	// .env is a dev convenience; deployments inject real env vars.
	if err := godotenv.Load(); err != nil {
		log.Printf("[main] no .env file, using process environment")
	}

	db := getDBPool()
	defer db.Close()

	eng := newEngine(newPGStore(db), engineConfigFromEnv())

	if *sweep {
		stats, err := runSweep(context.Background(), eng, *sweepParallel)
		if err != nil {
			log.Fatalf("[main] sweep failed: %v", err)
		}
		if stats.Failed > 0 {
			os.Exit(1)
		}
		return
	}

	fmt.Println("Starting gin app...")

	h := &Handler{db: db, engine: eng, openAIBaseURL: "https://api.openai.com"}

	router := gin.Default()
	router.SetTrustedProxies(nil)
	h.registerRoutes(router)

	addr := os.Getenv("ADDR")
	if addr == "" {
		addr = "localhost:3000"
	}
	router.Run(addr)
}
