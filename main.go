package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"wildmap/api"
	"wildmap/app"
	"wildmap/location"
	"wildmap/places"
)

func main() {
	app.LoadEnv()

	cfg, err := app.LoadConfig(os.Args[1:])
	if err != nil {
		fmt.Println(err)
		os.Exit(2)
	}

	if !cfg.Serve {
		fmt.Println("--serve not set")
		return
	}

	locations, err := location.ParseSource(cfg.LocationSource, cfg.S3)
	if err != nil {
		fmt.Printf("Location source: %v\n", err)
		os.Exit(1)
	}
	markers, err := location.ParseSource(cfg.MarkerSource, cfg.S3)
	if err != nil {
		fmt.Printf("Marker source: %v\n", err)
		os.Exit(1)
	}

	// every fetch ends up in the fetch history shown on /status
	locations = location.Recorded(locations, "locations")
	markers = location.Recorded(markers, "markers")

	// load the map sessions
	places.Load(cfg.Map, locations, markers)

	app.SourcesFunc = func() (string, string) {
		return cfg.LocationSource, cfg.MarkerSource
	}
	app.SessionsFunc = places.Count

	// the map page and its session endpoints
	http.HandleFunc("/", places.Handler)
	http.HandleFunc("/places/ws", places.SocketHandler)
	http.HandleFunc("/places/qr", places.QRHandler)
	http.HandleFunc("/places/move", app.Route(app.RouteOpts{
		JSON:    places.MoveHandler,
		HTML:    places.MoveHandler,
		Methods: []string{"POST"},
	}))

	// data
	http.HandleFunc("/locations", places.LocationsHandler)
	http.HandleFunc("/markers", places.MarkersHandler)

	// serve the api doc and the mcp server
	http.HandleFunc("/api", api.Handler)
	http.HandleFunc("/mcp", api.MCPHandler)

	// server status
	http.HandleFunc("/status", app.StatusHandler)

	// static assets
	static := app.Serve()
	http.Handle("/wildmap.css", static)
	http.Handle("/wildmap.js", static)
	http.Handle("/images/", static)

	srv := &http.Server{
		Addr: cfg.Address,
		Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if cfg.Env == "dev" {
				w.Header().Set("Access-Control-Allow-Origin", "*")
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
				w.Header().Set("Access-Control-Allow-Credentials", "true")

				if r.Method == "OPTIONS" {
					w.WriteHeader(http.StatusOK)
					return
				}
			}

			if v := len(r.URL.Path); v > 1 && strings.HasSuffix(r.URL.Path, "/") && !strings.HasPrefix(r.URL.Path, "/images/") {
				r.URL.Path = r.URL.Path[:v-1]
			}

			http.DefaultServeMux.ServeHTTP(w, r)
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
		<-sig

		app.Log("main", "Shutting down")
		places.Shutdown()

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	}()

	fmt.Println("Starting server on", cfg.Address)

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		fmt.Printf("Server error: %v\n", err)
		os.Exit(1)
	}
}
