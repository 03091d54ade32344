package app

import (
	"flag"
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the process configuration assembled from .env, flags and an
// optional YAML map file.
type Config struct {
	Env     string
	Serve   bool
	Address string

	// LocationSource feeds the card list, MarkerSource feeds the map.
	// Both default to the same file.
	LocationSource string
	MarkerSource   string

	S3  S3Config
	Map MapConfig
}

// S3Config holds the credentials for s3:// sources
type S3Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
}

// MapConfig describes the map page. It can be overridden by -config.
type MapConfig struct {
	MapID     string     `yaml:"map_id"`
	CardsID   string     `yaml:"cards_id"`
	SearchID  string     `yaml:"search_id"`
	Center    [2]float64 `yaml:"center"`
	Zoom      int        `yaml:"zoom"`
	PopupZoom int        `yaml:"popup_zoom"`
	Detailed  bool       `yaml:"detailed"`
	Tiles     TileConfig `yaml:"tiles"`
	Icon      IconConfig `yaml:"icon"`
	Sources   struct {
		Locations string `yaml:"locations"`
		Markers   string `yaml:"markers"`
	} `yaml:"sources"`
}

// TileConfig is the base tile layer
type TileConfig struct {
	URL         string `yaml:"url"`
	MaxZoom     int    `yaml:"max_zoom"`
	Attribution string `yaml:"attribution"`
}

// IconConfig is the default marker icon for records loaded from a source
type IconConfig struct {
	URL         string `yaml:"url"`
	Size        [2]int `yaml:"size"`
	Anchor      [2]int `yaml:"anchor"`
	PopupAnchor [2]int `yaml:"popup_anchor"`
}

// DefaultMapConfig returns the settings used when no map file is given
func DefaultMapConfig() MapConfig {
	return MapConfig{
		MapID:     "map",
		CardsID:   "location-container",
		SearchID:  "searchLocation",
		Center:    [2]float64{8.360004, 124.868419},
		Zoom:      14,
		PopupZoom: 18,
		Tiles: TileConfig{
			URL:         "https://{s}.tile.openstreetmap.org/{z}/{x}/{y}.png",
			MaxZoom:     19,
			Attribution: `&copy; <a href="https://www.openstreetmap.org/copyright">OpenStreetMap</a> contributors`,
		},
		Icon: IconConfig{
			URL:         "/images/marker.svg",
			Size:        [2]int{32, 32},
			Anchor:      [2]int{16, 32},
			PopupAnchor: [2]int{0, -32},
		},
	}
}

// LoadEnv loads a .env file if one exists
func LoadEnv() {
	if err := godotenv.Load(); err != nil {
		Log("app", "No .env file found, assuming environment variables are set directly.")
	}
}

// LoadConfig parses args (without the program name) on top of the
// environment. Call LoadEnv first to pick up a .env file.
func LoadConfig(args []string) (*Config, error) {
	fs := flag.NewFlagSet("wildmap", flag.ContinueOnError)

	cfg := &Config{Map: DefaultMapConfig()}
	var mapFile string

	fs.StringVar(&cfg.Env, "env", getEnv("WILDMAP_ENV", "dev"), "Set the environment")
	fs.BoolVar(&cfg.Serve, "serve", false, "Run the server")
	fs.StringVar(&cfg.Address, "address", getEnv("WILDMAP_ADDRESS", ":8080"), "Address for server")
	fs.StringVar(&cfg.LocationSource, "locations", getEnv("WILDMAP_SOURCE", ""), "Location data source (path, http(s)://, s3://bucket/key or feed+http(s)://)")
	fs.StringVar(&cfg.MarkerSource, "markers", getEnv("WILDMAP_MARKERS", ""), "Marker data source, defaults to the location source")
	fs.StringVar(&mapFile, "config", getEnv("WILDMAP_CONFIG", ""), "YAML map configuration file")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if mapFile != "" {
		b, err := os.ReadFile(mapFile)
		if err != nil {
			return nil, fmt.Errorf("read map config: %w", err)
		}
		if err := yaml.Unmarshal(b, &cfg.Map); err != nil {
			return nil, fmt.Errorf("parse map config %s: %w", mapFile, err)
		}
	}

	// flags and env win over the map file, the map file wins over defaults
	if cfg.LocationSource == "" {
		cfg.LocationSource = cfg.Map.Sources.Locations
	}
	if cfg.LocationSource == "" {
		cfg.LocationSource = "map.json"
	}
	if cfg.MarkerSource == "" {
		cfg.MarkerSource = cfg.Map.Sources.Markers
	}
	if cfg.MarkerSource == "" {
		cfg.MarkerSource = cfg.LocationSource
	}

	cfg.S3 = S3Config{
		Endpoint:  os.Getenv("MINIO_ENDPOINT"),
		AccessKey: os.Getenv("MINIO_ACCESS_KEY"),
		SecretKey: os.Getenv("MINIO_SECRET_KEY"),
	}
	cfg.S3.UseSSL, _ = strconv.ParseBool(os.Getenv("MINIO_USE_SSL"))

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return fallback
}
