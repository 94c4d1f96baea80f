package config

import (
	"database/sql"
	"time"

	_ "github.com/lib/pq"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/spf13/viper"
)

type Config struct {
	MinIOBucket string        `yaml:"minio_bucket"`
	App         App           `yaml:"app"`
	DB          *sql.DB       `yaml:"db"`
	Queue       *RabbitMQ     `yaml:"rabbitmq"`
	Storage     *minio.Client `yaml:"storage"`
	Server      Server        `yaml:"server"`
	Embedding   Embedding     `yaml:"embedding"`
	Source      Source        `yaml:"source"`
	Animation   Animation     `yaml:"animation"`
	Transcode   Transcode     `yaml:"transcode"`
}

type App struct {
	Environment string `yaml:"environment"`
	Host        string `yaml:"host"`
	Protocol    string `yaml:"protocol"`
}

type Server struct {
	HttpPort string `yaml:"http_port"`
	Workers  int    `yaml:"workers"`
	WorkDir  string `yaml:"work_dir"`
}

// Embedding configures the remote text-embedding service. Dimension is the
// exact vector length the service must return and the clips table stores.
type Embedding struct {
	URL       string        `yaml:"url"`
	APIKey    string        `yaml:"api_key"`
	Model     string        `yaml:"model"`
	Dimension int           `yaml:"dimension"`
	Timeout   time.Duration `yaml:"timeout"`
}

type Source struct {
	MaxBytes        int64         `yaml:"max_bytes"`
	DownloadTimeout time.Duration `yaml:"download_timeout"`
}

// Animation describes the companion rig track: a flat sequence of fixed-size
// per-frame records. FrameSize is bytes per record.
type Animation struct {
	FrameSize int `yaml:"frame_size"`
}

// Transcode is a pass-through knob set: when Enabled the trimmer re-encodes
// instead of stream-copying, optionally through a hardware encoder.
type Transcode struct {
	Enabled bool   `yaml:"enabled"`
	Codec   string `yaml:"codec"`
	Preset  string `yaml:"preset"`
	Bitrate string `yaml:"bitrate"`
	HWAccel string `yaml:"hwaccel"`
}

type RabbitMQ struct {
	Host         string `json:"host"`
	Port         int    `json:"port"`
	User         string `json:"user"`
	Pass         string `json:"pass"`
	ExchangeName string `json:"exchange_name"`
	Kind         string `json:"kind"`
}

func Load(path string) (*Config, error) {
	viper.AddConfigPath(path)
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	viper.SetDefault("server.workers", 0)
	viper.SetDefault("server.work_dir", "temp")
	viper.SetDefault("embedding.dimension", 768)
	viper.SetDefault("embedding.timeout", "30s")
	viper.SetDefault("source.max_bytes", int64(2<<30))
	viper.SetDefault("source.download_timeout", "5m")
	viper.SetDefault("animation.frame_size", 512)
	viper.SetDefault("transcode.codec", "libx264")
	viper.SetDefault("transcode.preset", "veryfast")
	viper.SetDefault("transcode.bitrate", "5000k")

	err := viper.ReadInConfig()
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("postgres", viper.GetString("postgresql_host"))
	if err != nil {
		return nil, err
	}

	var rabbitmq *RabbitMQ
	if viper.GetString("rabbitmq_host") != "" {
		rabbitmq = &RabbitMQ{
			Host:         viper.GetString("rabbitmq_host"),
			Port:         viper.GetInt("rabbitmq_port"),
			User:         viper.GetString("rabbitmq_user"),
			Pass:         viper.GetString("rabbitmq_pass"),
			Kind:         viper.GetString("rabbitmq_kind"),
			ExchangeName: viper.GetString("rabbitmq_exchange"),
		}
	}

	minioClient, err := minio.New(viper.GetString("minio.url"), &minio.Options{
		Creds:  credentials.NewStaticV4(viper.GetString("minio.access_id"), viper.GetString("minio.secret_access_key"), ""),
		Secure: false,
	})
	if err != nil {
		return nil, err
	}

	return &Config{
		MinIOBucket: viper.GetString("minio.bucket"),
		App: App{
			Environment: viper.GetString("app.environment"),
			Host:        viper.GetString("app.host"),
			Protocol:    viper.GetString("app.protocol"),
		},
		Server: Server{
			HttpPort: viper.GetString("server.port"),
			Workers:  viper.GetInt("server.workers"),
			WorkDir:  viper.GetString("server.work_dir"),
		},
		Embedding: Embedding{
			URL:       viper.GetString("embedding.url"),
			APIKey:    viper.GetString("embedding.api_key"),
			Model:     viper.GetString("embedding.model"),
			Dimension: viper.GetInt("embedding.dimension"),
			Timeout:   viper.GetDuration("embedding.timeout"),
		},
		Source: Source{
			MaxBytes:        viper.GetInt64("source.max_bytes"),
			DownloadTimeout: viper.GetDuration("source.download_timeout"),
		},
		Animation: Animation{
			FrameSize: viper.GetInt("animation.frame_size"),
		},
		Transcode: Transcode{
			Enabled: viper.GetBool("transcode.enabled"),
			Codec:   viper.GetString("transcode.codec"),
			Preset:  viper.GetString("transcode.preset"),
			Bitrate: viper.GetString("transcode.bitrate"),
			HWAccel: viper.GetString("transcode.hwaccel"),
		},
		DB:      db,
		Queue:   rabbitmq,
		Storage: minioClient,
	}, nil
}
