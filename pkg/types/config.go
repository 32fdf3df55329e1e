package types

type Config struct {
	Environment     string `envconfig:"ENVIRONMENT" default:"development"`
	ServerPort      uint   `envconfig:"SERVER_PORT" default:"8080"`
	DatabaseURL     string `envconfig:"DATABASE_URL"`
	ReadTimeoutSec  uint   `envconfig:"READ_TIMEOUT_SEC" default:"10"`
	WriteTimeoutSec uint   `envconfig:"WRITE_TIMEOUT_SEC" default:"15"`

	// Cognito Auth
	CognitoUserPoolID string `envconfig:"COGNITO_USER_POOL_ID"`
	CognitoClientID   string `envconfig:"COGNITO_CLIENT_ID"`
	CognitoIssuerURL  string `envconfig:"COGNITO_ISSUER_URL"`

	// Media storage. Backend is "cloudinary" or "s3"; contribution uploads
	// land in MediaFolder.
	MediaBackend           string `envconfig:"MEDIA_BACKEND" default:"cloudinary"`
	MediaFolder            string `envconfig:"MEDIA_FOLDER" default:"koon-contributions"`
	CloudinaryCloudName    string `envconfig:"CLOUDINARY_CLOUD_NAME"`
	CloudinaryUploadPreset string `envconfig:"CLOUDINARY_UPLOAD_PRESET"`
	S3Bucket               string `envconfig:"S3_BUCKET"`

	// Cookie encryption keys (base64 encoded)
	// openssl rand -base64 32
	// to generate values
	CookieHashKey  string `envconfig:"COOKIE_HASH_KEY"`  // 32 or 64 bytes
	CookieBlockKey string `envconfig:"COOKIE_BLOCK_KEY"` // 16, 24, or 32 bytes
}
