package controllers

import (
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/alirogz/goshop-partialpay/app/consts"
	"github.com/alirogz/goshop-partialpay/app/events"
	"github.com/alirogz/goshop-partialpay/app/models"
	"github.com/alirogz/goshop-partialpay/database/seeders"
	"github.com/gorilla/mux"
	"github.com/gorilla/sessions"
	"github.com/unrolled/render"
	"github.com/urfave/cli"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type Server struct {
	DB            *gorm.DB
	Router        *mux.Router
	AppConfig     *AppConfig
	PaymentConfig *PaymentConfig
	Publisher     events.Publisher
}

type AppConfig struct {
	AppName string
	AppEnv  string
	AppPort string
	AppURL  string
}

type DBConfig struct {
	DBHost     string
	DBUser     string
	DBPassword string
	DBName     string
	DBPort     string
	DBDriver   string
	DBDebug    bool
}

type PaymentConfig struct {
	ConfirmPolicy    string
	KafkaBrokers     []string
	KafkaTopicPrefix string
}

var store *sessions.CookieStore

var sessionUser = "user-session"
var sessionCheckout = "checkout-session"

var renderer = render.New(render.Options{
	IndentJSON: false,
})

func initSessionStore() {
	key := os.Getenv("SESSION_KEY")
	if key == "" {
		// dev only, production must set SESSION_KEY
		key = "dev-secret-change-me"
	}
	store = sessions.NewCookieStore([]byte(key))
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   86400 * 7,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
}

func (server *Server) Initialize(appConfig AppConfig, dbConfig DBConfig, paymentConfig PaymentConfig) {
	log.Println("Welcome to " + appConfig.AppName)

	server.initializeDB(dbConfig)
	server.initializeAppConfig(appConfig, paymentConfig)
	server.initializePublisher()
	initSessionStore()
	server.initializeRoutes()
}

func (server *Server) Run(addr string) {
	log.Printf("Listening to port %s", addr)
	log.Fatal(http.ListenAndServe(addr, server.Router))
}

func (server *Server) initializeDB(dbConfig DBConfig) {
	level := logger.Warn
	if dbConfig.DBDebug {
		level = logger.Info
	}
	gormLogger := logger.New(
		log.New(os.Stdout, "[GORM] ", log.LstdFlags),
		logger.Config{
			SlowThreshold: 200 * time.Millisecond,
			LogLevel:      level,
			Colorful:      false,
		},
	)
	config := &gorm.Config{Logger: gormLogger}

	var err error
	switch dbConfig.DBDriver {
	case "mysql":
		dsn := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=Local", dbConfig.DBUser, dbConfig.DBPassword, dbConfig.DBHost, dbConfig.DBPort, dbConfig.DBName)
		server.DB, err = gorm.Open(mysql.Open(dsn), config)
	case "sqlite":
		server.DB, err = gorm.Open(sqlite.Open(dbConfig.DBName), config)
	default:
		dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable TimeZone=UTC", dbConfig.DBHost, dbConfig.DBUser, dbConfig.DBPassword, dbConfig.DBName, dbConfig.DBPort)
		server.DB, err = gorm.Open(postgres.Open(dsn), config)
	}

	if err != nil {
		log.Fatalf("Failed on connecting to the database server: %v", err)
	}
}

func (server *Server) initializeAppConfig(appConfig AppConfig, paymentConfig PaymentConfig) {
	if paymentConfig.ConfirmPolicy != consts.ConfirmPolicyPrepayment {
		paymentConfig.ConfirmPolicy = consts.ConfirmPolicyAnyTransaction
	}
	server.AppConfig = &appConfig
	server.PaymentConfig = &paymentConfig
}

// initializePublisher uses Kafka when brokers are configured and falls back
// to logging the events otherwise.
func (server *Server) initializePublisher() {
	if len(server.PaymentConfig.KafkaBrokers) == 0 {
		server.Publisher = events.LogPublisher{}
		return
	}

	publisher, err := events.DialKafka(server.PaymentConfig.KafkaBrokers, server.PaymentConfig.KafkaTopicPrefix, 5)
	if err != nil {
		log.Printf("[events] kafka unavailable, logging events instead: %v", err)
		server.Publisher = events.LogPublisher{}
		return
	}
	server.Publisher = publisher
}

// lifecycle is what settled transactions need from the server config.
func (server *Server) lifecycle() models.Lifecycle {
	lc := models.Lifecycle{
		ConfirmPolicy: consts.ConfirmPolicyAnyTransaction,
		Publisher:     server.Publisher,
	}
	if server.PaymentConfig != nil {
		lc.ConfirmPolicy = server.PaymentConfig.ConfirmPolicy
	}
	return lc
}

func (server *Server) dbMigrate() {
	for _, model := range models.RegisterModels() {
		err := server.DB.AutoMigrate(model.Model)

		if err != nil {
			log.Fatal(err)
		}
	}

	log.Println("Database migrated successfully.")
}

func (server *Server) InitCommands(config AppConfig, dbConfig DBConfig, paymentConfig PaymentConfig) {
	server.initializeDB(dbConfig)
	server.initializeAppConfig(config, paymentConfig)

	cmdApp := cli.NewApp()
	cmdApp.Name = config.AppName
	cmdApp.Commands = []cli.Command{
		{
			Name: "db:migrate",
			Action: func(c *cli.Context) error {
				server.dbMigrate()
				return nil
			},
		},
		{
			Name: "db:seed",
			Flags: []cli.Flag{
				cli.IntFlag{Name: "orders", Value: 10, Usage: "number of draft orders to create"},
			},
			Action: func(c *cli.Context) error {
				err := seeders.DBSeed(server.DB, seeders.Options{
					Orders:        c.Int("orders"),
					AdminEmail:    os.Getenv("ADMIN_EMAIL"),
					AdminPassword: os.Getenv("ADMIN_PASSWORD"),
				})
				if err != nil {
					log.Fatal(err)
				}

				return nil
			},
		},
	}

	err := cmdApp.Run(os.Args)
	if err != nil {
		log.Fatal(err)
	}
}

func IsLoggedIn(r *http.Request) bool {
	if store == nil {
		return false
	}
	session, _ := store.Get(r, sessionUser)
	return session.Values["id"] != nil
}

func (server *Server) CurrentUser(w http.ResponseWriter, r *http.Request) *models.User {
	if !IsLoggedIn(r) {
		return nil
	}

	session, _ := store.Get(r, sessionUser)

	userModel := models.User{}
	user, err := userModel.FindByID(server.DB, session.Values["id"].(string))
	if err != nil {
		session.Values["id"] = nil
		session.Save(r, w)
		return nil
	}

	return user
}

// IsAdminUser accepts the admin role and the address configured in ADMIN_EMAIL.
func IsAdminUser(u *models.User) bool {
	if u == nil {
		return false
	}
	if u.Role == consts.UserRoleAdmin {
		return true
	}
	adminEmail := strings.TrimSpace(os.Getenv("ADMIN_EMAIL"))
	return adminEmail != "" && strings.EqualFold(strings.TrimSpace(u.Email), adminEmail)
}

// RequireAdmin answers 401/403 in JSON instead of redirecting, the admin
// endpoints are called by the back-office front-end.
func (server *Server) RequireAdmin(next func(http.ResponseWriter, *http.Request, *models.User)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !IsLoggedIn(r) {
			_ = renderer.JSON(w, http.StatusUnauthorized, map[string]string{"error": "Please log in first."})
			return
		}
		admin := server.CurrentUser(w, r)
		if !IsAdminUser(admin) {
			_ = renderer.JSON(w, http.StatusForbidden, map[string]string{"error": "Unauthorized"})
			return
		}
		next(w, r, admin)
	}
}

// writeError maps model errors to a JSON error body. Only user errors carry
// their message to the client.
func writeError(w http.ResponseWriter, err error) {
	if msg, ok := models.UserMessage(err); ok {
		_ = renderer.JSON(w, statusFor(err), map[string]string{"error": msg})
		return
	}
	if isNotFound(err) {
		_ = renderer.JSON(w, http.StatusNotFound, map[string]string{"error": "Not found"})
		return
	}

	log.Printf("[http] internal error: %v", err)
	_ = renderer.JSON(w, http.StatusInternalServerError, map[string]string{"error": "Internal server error"})
}
