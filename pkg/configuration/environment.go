package configuration

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/smccd/doorcard-data/pkg/logging"
)

var singleton = sync.OnceValue(func() *Configuration {
	c := &Configuration{}
	if err := c.load([]string{".env", ".env.local"}); err != nil {
		c.Unload()
		panic(err)
	}
	return c
})

// LoadEnv loads whichever of the given env files exist and reports how many
// were found.
func LoadEnv(envFiles []string) (int, error) {
	existingFiles := make([]string, 0, len(envFiles))
	for _, file := range envFiles {
		if _, err := os.Stat(file); err == nil {
			existingFiles = append(existingFiles, file)
		}
	}

	if len(existingFiles) == 0 {
		return 0, nil
	}

	return len(existingFiles), godotenv.Load(existingFiles...)
}

type DatabaseOptions struct {
	Opts     string `env:"-"`
	Name     string `env:"DB_NAME" envDefault:"doorcard"`
	Host     string `env:"DB_HOST" envDefault:"localhost"`
	Port     string `env:"DB_PORT" envDefault:"5432"`
	User     string `env:"DB_USER" envDefault:"postgres"`
	Password string `env:"DB_PASSWORD" envDefault:"postgres"`
}

func (d *DatabaseOptions) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s dbname=%s password=%s sslmode=disable",
		d.Host, d.Port, d.User, d.Name, d.Password,
	)
}

// ImportOptions carries the migration-run knobs. The batch sizes were tuned
// against the production extracts; appointments and users tolerate larger
// batches than the wider doorcard rows.
type ImportOptions struct {
	Dir        string `env:"IMPORT_DIR" envDefault:"./data"`
	RejectsDir string `env:"IMPORT_REJECTS_DIR" envDefault:"./rejects"`

	UserBatchSize        int `env:"IMPORT_USER_BATCH_SIZE" envDefault:"100"`
	DoorcardBatchSize    int `env:"IMPORT_DOORCARD_BATCH_SIZE" envDefault:"25"`
	AppointmentBatchSize int `env:"IMPORT_APPOINTMENT_BATCH_SIZE" envDefault:"100"`

	// DefaultPassword is hashed once per run and assigned to every imported
	// account; users reset it on first login.
	DefaultPassword string `env:"IMPORT_DEFAULT_PASSWORD" envDefault:"changeme123"`
	EmailDomain     string `env:"IMPORT_EMAIL_DOMAIN" envDefault:"smccd.edu"`

	SummaryErrorLimit int `env:"IMPORT_SUMMARY_ERROR_LIMIT" envDefault:"25"`
}

func (i *ImportOptions) Validate() error {
	if i.UserBatchSize <= 0 || i.DoorcardBatchSize <= 0 || i.AppointmentBatchSize <= 0 {
		return fmt.Errorf("import batch sizes must be positive")
	}
	if i.EmailDomain == "" {
		return fmt.Errorf("IMPORT_EMAIL_DOMAIN must not be empty")
	}
	if i.DefaultPassword == "" {
		return fmt.Errorf("IMPORT_DEFAULT_PASSWORD must not be empty")
	}
	return nil
}

type Configuration struct {
	Database DatabaseOptions
	Import   ImportOptions

	MigrationsDir string `env:"MIGRATIONS_DIR" envDefault:"migrations"`
	LogLevel      string `env:"LOG_LEVEL" envDefault:"info"`
	LogPath       string `env:"LOG_PATH" envDefault:""`

	logFile *os.File
	logger  *logrus.Logger
}

func (c *Configuration) Logger() *logrus.Logger {
	return c.logger
}

func (c *Configuration) LogrusLogLevel() logrus.Level {
	switch c.LogLevel {
	case "silent":
		return logrus.PanicLevel
	case "error":
		return logrus.ErrorLevel
	case "warn":
		return logrus.WarnLevel
	case "info":
		return logrus.InfoLevel
	case "debug":
		return logrus.DebugLevel
	default:
		return logrus.InfoLevel
	}
}

func Use() *Configuration {
	return singleton()
}

func (c *Configuration) load(envFiles []string) error {
	n, err := LoadEnv(envFiles)
	if err != nil {
		return err
	}
	if n == 0 {
		wd, _ := os.Getwd()
		log.Println("No .env files found. Tried:")
		for _, file := range envFiles {
			log.Println(filepath.Join(wd, file))
		}
	}
	if err := env.Parse(c); err != nil {
		return err
	}
	if err := c.Import.Validate(); err != nil {
		return fmt.Errorf("import configuration error: %w", err)
	}

	if c.LogPath != "" {
		f, logger, err := logging.FileLogger(c.LogrusLogLevel(), c.LogPath)
		if err != nil {
			return err
		}
		c.logFile = f
		c.logger = logger
	} else {
		c.logger = logging.ConsoleLogger(c.LogrusLogLevel())
	}

	c.Database.Opts = c.Database.ConnectionString()
	return nil
}

// Unload handles a graceful shutdown.
func (c *Configuration) Unload() {
	if c.logFile != nil {
		if err := c.logFile.Close(); err != nil {
			log.Printf("Failed to close log file: %v", err)
		}
	}
}
