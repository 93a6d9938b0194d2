package main

import (
	"crypto/tls"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/MicahParks/keyfunc"
	"github.com/joho/godotenv"
	"github.com/labstack/echo-contrib/pprof"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"todokit/api"
	"todokit/azureai"
	"todokit/storage"
	"todokit/tools"
)

func main() {
	_ = godotenv.Load()

	debug := false
	if dbg, err := strconv.ParseBool(os.Getenv("DEBUG")); err == nil && dbg {
		log.SetLevel(log.DebugLevel)
		debug = true
	}

	store := newStore()

	var deduper api.Deduper
	if redisConn := os.Getenv("REDIS_CONNECTION_STRING"); redisConn != "" {
		rc := redis.NewClient(redisOptions(redisConn))
		cacheTTL := 5 * time.Minute
		if v := os.Getenv("TODOS_CACHE_TTL"); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil || d <= 0 {
				log.Fatalf("invalid TODOS_CACHE_TTL: %v", err)
			}
			cacheTTL = d
		}
		store = storage.NewCache(store, rc, cacheTTL)

		dedupeTTL := 24 * time.Hour
		if v := os.Getenv("DEDUPER_TTL"); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil || d <= 0 {
				log.Fatalf("invalid DEDUPER_TTL: %v", err)
			}
			dedupeTTL = d
		}
		deduper = api.NewRedisDeduper(rc, dedupeTTL)
	}

	toolset := tools.NewToolset(store)

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
	}))
	if debug {
		pprof.Register(e)
	}

	logger := log.New()
	api.Register(e, api.Deps{
		Store:    store,
		Tools:    toolset.Registry(),
		AI:       newAIClient(),
		Auth:     newAuth(),
		Deduper:  deduper,
		Branding: api.BrandingFromEnv(),
		Logger:   logger,
	})

	listenAddr := ":8080"
	if val, ok := os.LookupEnv("FUNCTIONS_CUSTOMHANDLER_PORT"); ok {
		listenAddr = ":" + val
	} else if val, ok := os.LookupEnv("APP_PORT"); ok {
		listenAddr = ":" + val
	}

	e.Logger.Fatal(e.Start(listenAddr))
}

// newStore selects Azure Table Storage when configured and falls back to the
// in-process store for local development.
func newStore() api.Store {
	connStr := os.Getenv("STORAGE_CONNECTION_STRING")
	tableName := os.Getenv("TODOS_TABLE")
	if connStr == "" || tableName == "" {
		log.Warn("no storage config; todos are kept in memory and lost on restart")
		return storage.NewMemory()
	}
	store, err := storage.New(connStr, tableName)
	if err != nil {
		log.Fatalf("storage: %v", err)
	}
	return store
}

func newAIClient() *azureai.Client {
	endpoint := os.Getenv("AZURE_OPENAI_ENDPOINT")
	deployment := os.Getenv("AZURE_OPENAI_DEPLOYMENT")
	if endpoint == "" || deployment == "" {
		log.Warn("no Azure OpenAI config; /api/chat is disabled")
		return nil
	}

	var opts []azureai.Option
	if v := os.Getenv("AZURE_OPENAI_API_VERSION"); v != "" {
		opts = append(opts, azureai.WithAPIVersion(v))
	}
	if key := os.Getenv("AZURE_OPENAI_API_KEY"); key != "" {
		opts = append(opts, azureai.WithAPIKey(key))
	} else {
		cred, err := azidentity.NewDefaultAzureCredential(nil)
		if err != nil {
			log.Fatalf("azure credential: %v", err)
		}
		log.Info("using Azure AD authentication for Azure OpenAI")
		opts = append(opts, azureai.WithCredential(cred))
	}
	return azureai.New(strings.TrimRight(endpoint, "/"), deployment, opts...)
}

func newAuth() api.Authenticator {
	if secret := os.Getenv("TEST_JWT_SECRET"); secret != "" {
		return api.NewTestAuth([]byte(secret))
	}
	domain := os.Getenv("AUTH0_DOMAIN")
	audience := os.Getenv("AUTH0_AUDIENCE")
	if domain == "" || audience == "" {
		return api.NewAnonymousAuth()
	}
	jwksURL := fmt.Sprintf("https://%s/.well-known/jwks.json", domain)
	jwks, err := keyfunc.Get(jwksURL, keyfunc.Options{})
	if err != nil {
		log.Fatalf("jwks: %v", err)
	}
	return api.NewAuth(jwks, audience, "https://"+domain+"/")
}

func redisOptions(redisConn string) *redis.Options {
	opts, err := redis.ParseURL(redisConn)
	if err == nil {
		return opts
	}
	// Azure Cache connection strings are comma-separated key=value pairs.
	parts := strings.Split(redisConn, ",")
	opts = &redis.Options{Addr: parts[0]}
	for _, p := range parts[1:] {
		kv := strings.SplitN(p, "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch strings.ToLower(kv[0]) {
		case "password":
			opts.Password = kv[1]
		case "ssl":
			if strings.ToLower(kv[1]) == "true" {
				opts.TLSConfig = &tls.Config{}
			}
		}
	}
	return opts
}
