package config

import "time"

type Config struct {
	Environment Environment
	Log         Log
	HTTP        HTTPServer
	BaseURL     string `env:"BASE_URL"`
	DatabaseURL string `env:"DATABASE_URL" envDefault:"festival.db"`

	Session  Session  `envPrefix:"SESSION_"`
	Gateway  Gateway  `envPrefix:"GATEWAY_"`
	Checkout Checkout `envPrefix:"CHECKOUT_"`
}

type Gateway struct {
	BaseApiURL  string `env:"BASE_API_URL"`
	ServerKey   string `env:"SERVER_KEY"`
	ClientKey   string `env:"CLIENT_KEY"`
	CallbackURL string `env:"CALLBACK_URL"`

	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT" envDefault:"15s"`
	ReadyInterval  time.Duration `env:"READY_INTERVAL" envDefault:"500ms"`
	ReadyTimeout   time.Duration `env:"READY_TIMEOUT" envDefault:"10s"`
	VerifyAttempts int           `env:"VERIFY_ATTEMPTS" envDefault:"3"`
	VerifyBackoff  time.Duration `env:"VERIFY_BACKOFF" envDefault:"1s"`
}

type Session struct {
	Secret string        `env:"SECRET"`
	TTL    time.Duration `env:"TTL" envDefault:"45m"`
}

type Checkout struct {
	UnitPrice     int64    `env:"UNIT_PRICE" envDefault:"150000"`
	MaxQuantity   int      `env:"MAX_QUANTITY" envDefault:"10"`
	Categories    []string `env:"CATEGORIES" envDefault:"festival" envSeparator:","`
	BundleEnabled bool     `env:"BUNDLE_ENABLED" envDefault:"true"`

	// fixed rebate per total ticket quantity, smallest currency unit
	BundleRebate2 int64 `env:"BUNDLE_REBATE_2" envDefault:"4000"`
	BundleRebate3 int64 `env:"BUNDLE_REBATE_3" envDefault:"6000"`
	BundleRebate4 int64 `env:"BUNDLE_REBATE_4" envDefault:"8000"`
	BundleRebate5 int64 `env:"BUNDLE_REBATE_5" envDefault:"10000"`

	PaymentWindow time.Duration `env:"PAYMENT_WINDOW" envDefault:"24h"`
	SweepInterval time.Duration `env:"SWEEP_INTERVAL" envDefault:"5m"`
}

type Environment struct {
	Name string `env:"ENVIRONMENT" envDefault:"development"`
}

type Log struct {
	Level  string `env:"LOG_LEVEL" envDefault:"info"`
	Format string `env:"LOG_FORMAT" envDefault:"json"`
}

type HTTPServer struct {
	Host string `env:"HTTP_HOST" envDefault:"0.0.0.0"`
	Port string `env:"HTTP_PORT" envDefault:"8080"`
}

// BundleTable flattens the per-quantity rebate fields into the lookup the
// pricing engine reads. Quantities outside the table get no rebate.
func (c Checkout) BundleTable() map[int]int64 {
	return map[int]int64{
		2: c.BundleRebate2,
		3: c.BundleRebate3,
		4: c.BundleRebate4,
		5: c.BundleRebate5,
	}
}
