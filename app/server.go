package app

import (
	"flag"
	"log"
	"os"
	"strings"

	"github.com/alirogz/goshop-partialpay/app/controllers"
	"github.com/joho/godotenv"
)

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}

	return fallback
}

func splitList(value string) []string {
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func Run() {
	var server = controllers.Server{}
	var appConfig = controllers.AppConfig{}
	var dbConfig = controllers.DBConfig{}
	var paymentConfig = controllers.PaymentConfig{}

	if err := godotenv.Load(); err != nil {
		log.Println("no .env file, using the environment")
	}

	appConfig.AppName = getEnv("APP_NAME", "GoShop PartialPay")
	appConfig.AppEnv = getEnv("APP_ENV", "development")
	appConfig.AppPort = getEnv("APP_PORT", "9000")
	appConfig.AppURL = getEnv("APP_URL", "http://localhost:9000")

	dbConfig.DBHost = getEnv("DB_HOST", "localhost")
	dbConfig.DBUser = getEnv("DB_USER", "root")
	dbConfig.DBPassword = getEnv("DB_PASSWORD", "123")
	dbConfig.DBName = getEnv("DB_NAME", "goshopdb")
	dbConfig.DBPort = getEnv("DB_PORT", "3306")
	dbConfig.DBDriver = getEnv("DB_DRIVER", "mysql")
	dbConfig.DBDebug = getEnv("DB_DEBUG", "") == "1"

	paymentConfig.ConfirmPolicy = getEnv("CONFIRM_POLICY", "any_transaction")
	paymentConfig.KafkaBrokers = splitList(getEnv("KAFKA_BROKERS", ""))
	paymentConfig.KafkaTopicPrefix = getEnv("KAFKA_TOPIC_PREFIX", "goshop")

	flag.Parse()
	arg := flag.Arg(0)

	if arg != "" {
		server.InitCommands(appConfig, dbConfig, paymentConfig)
	} else {
		server.Initialize(appConfig, dbConfig, paymentConfig)
		server.Run(":" + appConfig.AppPort)
	}
}
