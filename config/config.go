package config

import "os"

type Config struct {
	CompanyID string
	StateDir  string
	Evolution *EvolutionConfig
	S3Config  *S3Config
}

// EvolutionConfig aponta para a instância da Evolution API usada para
// disparar mensagens no WhatsApp. O transporte é externo; o CRM só consome
// o resultado (sucesso/falha) de cada envio.
type EvolutionConfig struct {
	BaseURL  string
	APIKey   string
	Instance string
	DelayMs  int
}

type S3Config struct {
	Region     string
	AccessKey  string
	SecretKey  string
	BucketName string
	ServiceUrl string
	BucketUrl  string
}

func NewConfig() *Config {
	return &Config{
		CompanyID: envOr("CRM_COMPANY_ID", "default"),
		StateDir:  envOr("CRM_STATE_DIR", "data"),
		Evolution: &EvolutionConfig{
			BaseURL:  envOr("EVOLUTION_API_URL", "https://evo.sp3company.shop"),
			APIKey:   os.Getenv("EVOLUTION_API_KEY"),
			Instance: envOr("EVOLUTION_INSTANCE", "v1"),
			DelayMs:  500,
		},
		S3Config: &S3Config{
			Region:     envOr("S3_REGION", "us-east-1"),
			AccessKey:  os.Getenv("S3_ACCESS_KEY"),
			SecretKey:  os.Getenv("S3_SECRET_KEY"),
			BucketName: envOr("S3_BUCKET", "crm-sync-media"),
			ServiceUrl: envOr("S3_SERVICE_URL", "https://s3.amazonaws.com"),
			BucketUrl:  os.Getenv("S3_BUCKET_URL"),
		},
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
