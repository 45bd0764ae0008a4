package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string
	HTTPAddr    string

	LogLevel  string
	LogFormat string

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int
	DBConnMaxIdleTime int

	Billing  Billing
	Supplier Supplier
	SMTP     SMTP
	Artifact Artifact
}

// Billing carries the numbering, VAT and payment-term settings the
// document engine needs. It is passed into constructors explicitly so
// the engine never reads ambient state.
type Billing struct {
	DefaultVATRate       decimal.Decimal
	MoneyPrecision       int32
	PaymentTermDays      int
	NumberWidth          int
	PrefixProforma       string
	PrefixInvoice        string
	PrefixCreditNote     string
	DefaultPaymentMethod string
}

// Supplier is the issuing business entity printed on every document.
type Supplier struct {
	Name      string
	CompanyID string
	TaxID     string
	VATID     string
	Street    string
	City      string
	Zipcode   string
	Country   string
	Account   string
	IBAN      string
	SWIFT     string
	Email     string
	Phone     string
	IssuedBy  string
	Register  string
}

type SMTP struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

type Artifact struct {
	Dir           string
	RenderTimeout time.Duration
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	cfg := Config{
		AppName:     getenv("APP_SERVICE", "doklady"),
		AppVersion:  getenv("APP_VERSION", "0.1.0"),
		Environment: getenv("ENVIRONMENT", "development"),
		HTTPAddr:    getenv("HTTP_ADDR", ":8080"),

		LogLevel:  getenv("LOG_LEVEL", "info"),
		LogFormat: getenv("LOG_FORMAT", "json"),

		DBType:     getenv("DATABASE_TYPE", "postgres"),
		DBHost:     getenv("DATABASE_HOST", "localhost"),
		DBPort:     getenv("DATABASE_PORT", "5432"),
		DBName:     getenv("DATABASE_NAME", "doklady"),
		DBUser:     getenv("DATABASE_USER", "postgres"),
		DBPassword: getenv("DATABASE_PASSWORD", ""),
		DBSSLMode:  getenv("DATABASE_SSLMODE", "disable"),

		Billing: Billing{
			DefaultVATRate:       getenvDecimal("BILLING_DEFAULT_VAT_RATE", "0.20"),
			MoneyPrecision:       int32(getenvInt("BILLING_MONEY_PRECISION", 2)),
			PaymentTermDays:      getenvInt("BILLING_PAYMENT_TERM_DAYS", 30),
			NumberWidth:          getenvInt("BILLING_NUMBER_WIDTH", 6),
			PrefixProforma:       getenv("BILLING_PREFIX_PROFORMA", "PF-"),
			PrefixInvoice:        getenv("BILLING_PREFIX_INVOICE", "FV-"),
			PrefixCreditNote:     getenv("BILLING_PREFIX_CREDIT_NOTE", "DP-"),
			DefaultPaymentMethod: getenv("BILLING_DEFAULT_PAYMENT_METHOD", "sepa"),
		},
		Supplier: Supplier{
			Name:      getenv("SUPPLIER_NAME", ""),
			CompanyID: getenv("SUPPLIER_COMPANY_ID", ""),
			TaxID:     getenv("SUPPLIER_TAX_ID", ""),
			VATID:     getenv("SUPPLIER_VAT_ID", ""),
			Street:    getenv("SUPPLIER_STREET", ""),
			City:      getenv("SUPPLIER_CITY", ""),
			Zipcode:   getenv("SUPPLIER_ZIPCODE", ""),
			Country:   getenv("SUPPLIER_COUNTRY", ""),
			Account:   getenv("SUPPLIER_ACCOUNT", ""),
			IBAN:      getenv("SUPPLIER_IBAN", ""),
			SWIFT:     getenv("SUPPLIER_SWIFT", ""),
			Email:     getenv("SUPPLIER_EMAIL", ""),
			Phone:     getenv("SUPPLIER_PHONE", ""),
			IssuedBy:  getenv("SUPPLIER_ISSUED_BY", ""),
			Register:  getenv("SUPPLIER_REGISTER", ""),
		},
		SMTP: SMTP{
			Host:     getenv("SMTP_HOST", "localhost"),
			Port:     getenvInt("SMTP_PORT", 587),
			Username: getenv("SMTP_USERNAME", ""),
			Password: getenv("SMTP_PASSWORD", ""),
			From:     getenv("SMTP_FROM", ""),
		},
		Artifact: Artifact{
			Dir:           getenv("ARTIFACT_DIR", "artifacts"),
			RenderTimeout: getenvDuration("ARTIFACT_RENDER_TIMEOUT", 30*time.Second),
		},
	}

	return cfg
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}

func getenvDecimal(key, def string) decimal.Decimal {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		value = def
	}
	parsed, err := decimal.NewFromString(value)
	if err != nil {
		parsed, _ = decimal.NewFromString(def)
	}
	return parsed
}

func getenvDuration(key string, def time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return def
	}
	return parsed
}
