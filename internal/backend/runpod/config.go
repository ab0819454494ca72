package runpod

import "time"

// Config contains RunPod serverless configuration shared by every endpoint.
type Config struct {
	APIToken string        `env:"RUNPOD_API_TOKEN"`
	BaseURL  string        `env:"RUNPOD_BASE_URL"  envDefault:"https://api.runpod.ai/v2"`
	Timeout  time.Duration `env:"RUNPOD_TIMEOUT"   envDefault:"30s"`
}
