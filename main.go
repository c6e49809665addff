package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/jessevdk/go-flags"

	"tripplanner/booking"
	"tripplanner/cli"
	"tripplanner/config"
	"tripplanner/database"
	"tripplanner/handlers"
	"tripplanner/services"
)

// Options is the root command. The struct tags are interpreted by
// github.com/jessevdk/go-flags.
type Options struct {
	Plan  *PlanCmd  `command:"plan"  description:"Plan a trip in the terminal"`
	Serve *ServeCmd `command:"serve" description:"Start the HTTP API"`
}

// Init instantiates the sub-command named by the first argument so that
// flags.Parse can populate its fields.
func (o *Options) Init(firstArg string) {
	switch firstArg {
	case "plan":
		o.Plan = &PlanCmd{}
	case "serve":
		o.Serve = &ServeCmd{}
	}
}

type PlanCmd struct {
	Load string `short:"l" long:"load" description:"resume a plan saved as JSON"`
	Dir  string `short:"d" long:"dir" description:"directory for saved plans" default:"."`
}

func (p *PlanCmd) Execute(_ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	newSession, err := sessionFactory(cfg)
	if err != nil {
		return err
	}

	session := newSession()
	if p.Load != "" {
		plan, err := database.LoadFile(p.Load)
		if err != nil {
			return err
		}
		if err := session.Restore(plan); err != nil {
			return err
		}
		log.Printf("✅ Resumed plan from %s", p.Load)
	}

	ui := cli.New(session, os.Stdin, os.Stdout)
	ui.SaveDir(p.Dir)
	if err := ui.Run(context.Background()); err != nil {
		if booking.Fatal(err) {
			dump, _ := json.MarshalIndent(session.Plan(), "", "  ")
			fmt.Fprintf(os.Stderr, "❌ %v\nPlan state:\n%s\n", err, dump)
		}
		return err
	}
	return nil
}

type ServeCmd struct {
	Port string `short:"p" long:"port" description:"listen port (defaults to PORT)"`
	NoDB bool   `long:"no-db" description:"run without plan storage"`
}

func (s *ServeCmd) Execute(_ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	newSession, err := sessionFactory(cfg)
	if err != nil {
		return err
	}

	var store handlers.Store
	if !s.NoDB {
		db, err := database.Open(context.Background(), cfg.DatabaseDriver, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer db.Close()
		store = db
	}

	if cfg.ReleaseMode {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.Default()

	// Trusted proxies (the platform sits behind a proxy)
	r.SetTrustedProxies([]string{"0.0.0.0/0"})

	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.FrontendURLs,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}))

	handlers.NewServer(newSession, store, cfg.SessionIdleTTL).Register(r)

	port := s.Port
	if port == "" {
		port = cfg.Port
	}
	log.Printf("🚀 Trip planner starting on port %s", port)
	return r.Run(":" + port)
}

// sessionFactory wires the providers once and returns a constructor for
// sessions that share them. Each session gets its own location cache.
func sessionFactory(cfg *config.Config) (func() *booking.Session, error) {
	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}

	var (
		flights   booking.FlightSearcher = services.FlightSimulator{}
		stays     services.StaySearcher
		locations services.LocationSearcher
		geocoder  services.Geocoder
	)
	if cfg.AmadeusConfigured() {
		tokens := services.NewTokenManager(services.TokenConfig{
			BaseURL:      cfg.AmadeusBaseURL(),
			ClientID:     cfg.AmadeusClientID,
			ClientSecret: cfg.AmadeusClientSecret,
			HTTPClient:   httpClient,
			MaxRetries:   cfg.TokenMaxRetries,
			BaseDelay:    cfg.TokenRetryDelay,
		})
		amadeus := services.NewAmadeusClient(cfg.AmadeusBaseURL(), tokens, httpClient)
		flights, stays, locations = amadeus, amadeus, amadeus
		log.Printf("✅ Amadeus client configured (%s)", cfg.AmadeusEnv)
	} else {
		log.Println("⚠️  AMADEUS_CLIENT_ID/SECRET not set — using simulated flights and suggested hotels")
	}

	if cfg.GoogleMapsKey != "" {
		g, err := services.NewGoogleGeocoder(cfg.GoogleMapsKey, httpClient)
		if err != nil {
			return nil, err
		}
		geocoder = g
	}

	exceptions := services.DefaultExceptions()
	if cfg.ExceptionsFile != "" {
		t, err := services.LoadExceptions(cfg.ExceptionsFile)
		if err != nil {
			return nil, err
		}
		exceptions = t
		log.Printf("✅ Loaded %d location exceptions from %s", t.Len(), cfg.ExceptionsFile)
	}
	resolver := services.NewLocationResolver(exceptions, locations, geocoder, cfg.LocationCacheTTL)

	gen := services.NewTextGenerator(cfg.OpenAIKey, cfg.OpenAIModel, cfg.HFKey, cfg.HFModel, cfg.HTTPTimeout*6)
	suggestions := services.NewSuggestionService(gen)
	hotels := services.NewHotelSearch(stays, suggestions)

	return func() *booking.Session {
		return booking.NewSession(booking.Deps{
			Flights:          flights,
			Hotels:           hotels,
			Activities:       suggestions,
			Assistant:        suggestions,
			Locations:        resolver.Fork(),
			MinBudget:        cfg.MinBudget,
			MaxFlightOptions: cfg.MaxFlightOptions,
			MaxHotelOptions:  cfg.MaxHotelOptions,
		})
	}, nil
}

func run(args []string) error {
	opts := &Options{}
	if len(args) > 0 {
		opts.Init(args[0])
	}
	parser := flags.NewParser(opts, flags.HelpFlag|flags.PassDoubleDash)
	_, err := parser.ParseArgs(args)
	return err
}

func main() {
	if err := run(os.Args[1:]); err != nil {
		// flags already prints usage errors; only exit non-zero
		log.Fatalf("%v", err)
	}
}
