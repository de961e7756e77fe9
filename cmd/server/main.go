package main

import (
	"flag"
	"log"
	"os"
	"strings"

	"github.com/joho/godotenv"

	"github.com/himanishpuri/ModLibrary/pkg/modlibrary"
)

var (
	port           int
	dbPath         string
	sampleRate     int
	allowedOrigins string
)

func init() {
	_ = godotenv.Load()

	flag.IntVar(&port, "port", 8080, "HTTP server port")
	flag.StringVar(&dbPath, "db", getEnvOrDefault("MODLIB_DB_PATH", modlibrary.DefaultDBPath()), "Path to the library database, or a postgres:// DSN")
	flag.IntVar(&sampleRate, "rate", 22050, "Fingerprint render sample rate")
	flag.StringVar(&allowedOrigins, "origins", "*", "Comma-separated list of allowed CORS origins (use * for all)")
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	flag.Parse()

	var origins []string
	if allowedOrigins == "*" {
		origins = []string{"*"}
	} else {
		origins = strings.Split(allowedOrigins, ",")
		for i := range origins {
			origins[i] = strings.TrimSpace(origins[i])
		}
	}

	service, err := modlibrary.NewService(
		modlibrary.WithDBPath(dbPath),
		modlibrary.WithSampleRate(sampleRate),
	)
	if err != nil {
		log.Fatalf("Failed to create service: %v", err)
	}
	defer service.Close()

	config := &ServerConfig{
		Port:           port,
		DBPath:         dbPath,
		SampleRate:     sampleRate,
		AllowedOrigins: origins,
	}

	server := NewServer(service, config)
	if err := server.Start(); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}
