package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"path"
	"strings"
	"time"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"melodeck/src/handler/web"
	"melodeck/src/library/netmedia"
	"melodeck/src/player"
	"melodeck/src/player/beep"
	"melodeck/src/player/mpd"
	"melodeck/src/settings"
)

const confFile = "config.yaml"

var (
	build       = "%BUILD%"
	version     = "%VERSION%"
	versionDate = "%VERSION_DATE%"
)

type config struct {
	Address string `yaml:"bind"`

	StorageDir string `yaml:"storage_dir"`
	SourceID   string `yaml:"source"`

	Engine string `yaml:"engine"`
	MPD    *struct {
		Host     string `yaml:"host"`
		Port     int    `yaml:"port"`
		Password string `yaml:"password"`
	} `yaml:"mpd"`

	Media struct {
		URLTemplate  string `yaml:"url_template"`
		LyricURL     string `yaml:"lyric_url"`
		LyricDir     string `yaml:"lyric_dir"`
		RecommendURL string `yaml:"recommend_url"`
	} `yaml:"media"`
}

func (conf *config) Validate() (errs []error) {
	if conf.Address == "" {
		errs = append(errs, fmt.Errorf("config: `bind` is required"))
	}
	if conf.Media.URLTemplate == "" {
		errs = append(errs, fmt.Errorf("config: `media.url_template` is required"))
	}
	switch conf.Engine {
	case "", "local":
	case "mpd":
		if conf.MPD == nil {
			errs = append(errs, fmt.Errorf("config: `mpd` settings are required for the mpd engine"))
		}
	default:
		errs = append(errs, fmt.Errorf("config: unknown engine %q", conf.Engine))
	}
	return
}

func LoadConfig(filename string) (*config, error) {
	fd, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer fd.Close()

	d := yaml.NewDecoder(fd)
	d.KnownFields(true)
	var conf config
	if err := d.Decode(&conf); err != nil {
		return nil, err
	}

	if addr := os.Getenv("MELODECK_BIND"); addr != "" {
		conf.Address = addr
	}
	if conf.SourceID == "" {
		conf.SourceID = "default"
	}
	return &conf, nil
}

func main() {
	defaultLogLevel := "warn"
	if build == "debug" {
		defaultLogLevel = "debug"
	}

	configFile := flag.String("conf", confFile, "Path to the configuration file")
	printVersion := flag.Bool("version", false, "Print version information and exit")
	logLevel := flag.String("log", defaultLogLevel, "Sets the log level. [debug, info, warn, error]")
	flag.Parse()

	if ll, err := log.ParseLevel(*logLevel); err != nil {
		log.Fatalf("Could not parse log level: %v", err)
	} else {
		log.SetLevel(ll)
	}
	log.SetReportCaller(true)

	if *printVersion {
		fmt.Printf("Version: %v (%v)\n", version, versionDate)
		fmt.Printf("Build: %v\n", build)
		return
	}

	// A .env file may override the environment during development.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Warnf("Could not load .env: %v", err)
	}

	log.Infof("Version: %v (%v)\n", version, build)
	config, err := LoadConfig(*configFile)
	if err != nil {
		log.Fatalf("Could not load config: %v", err)
	}
	if errs := config.Validate(); len(errs) > 0 {
		log.Fatalf("Could not load config: %v", errs)
	}

	storeDir := strings.Replace(config.StorageDir, "~", os.Getenv("HOME"), 1)
	if err := os.MkdirAll(storeDir, 0755); err != nil {
		log.Fatalf("Unable to create storage dir: %v", err)
	}
	log.Infof("Using %q for storage", storeDir)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := settings.NewFileStore(path.Join(storeDir, "settings.json"))
	if err != nil {
		log.Fatalf("Unable to create settings store: %v", err)
	}
	gateway := settings.NewGateway(store, settings.DefaultDebounce)
	if err := store.Watch(ctx, func() {
		if err := gateway.Reload(ctx); err != nil {
			log.Warnf("Could not reload settings: %v", err)
		}
	}); err != nil {
		log.Warnf("Could not watch settings file: %v", err)
	}

	source, err := netmedia.NewSource(
		config.Media.URLTemplate,
		config.Media.LyricURL,
		config.Media.LyricDir,
		config.Media.RecommendURL,
	)
	if err != nil {
		log.Fatalf("Unable to create media source: %v", err)
	}

	engine, err := connectEngine(config)
	if err != nil {
		log.Fatal(err)
	}

	pl := player.New(engine, gateway, source, source)
	defer pl.Close()
	pl.SetNeedMoreTracks(source.Recommend)
	if err := pl.RestoreSession(ctx, config.SourceID); err != nil {
		log.Warnf("Could not restore session: %v", err)
	}
	go pl.RunTimeSync(ctx, time.Second)

	service := web.New(version, pl)
	log.Infof("Now accepting HTTP connections on %v", config.Address)
	server := &http.Server{
		Addr:           config.Address,
		Handler:        service,
		ReadTimeout:    10 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}
	err = server.ListenAndServe()
	if ferr := gateway.Flush(context.Background()); ferr != nil {
		log.Errorf("Could not flush settings: %v", ferr)
	}
	log.Fatalf("Error running webserver: %v", err)
}

func connectEngine(config *config) (player.AudioEngine, error) {
	if config.Engine == "mpd" {
		engine, err := mpd.NewEngine(config.MPD.Host, config.MPD.Port, config.MPD.Password)
		if err != nil {
			return nil, fmt.Errorf("unable to connect to MPD: %w", err)
		}
		return engine, nil
	}
	engine, err := beep.NewEngine()
	if err != nil {
		return nil, fmt.Errorf("unable to open the local audio device: %w", err)
	}
	return engine, nil
}
