package config

// Config is the root of hookgate's YAML configuration.
type Config struct {
	Service     ServiceConfig               `yaml:"service"`
	Credentials map[string]CredentialConfig `yaml:"credentials"`
	Endpoints   []EndpointConfig            `yaml:"endpoints"`
}

// ServiceConfig holds gateway-wide settings.
type ServiceConfig struct {
	Name     string `yaml:"name"`
	Listen   string `yaml:"listen"`
	LogLevel string `yaml:"log_level"`

	// ActivityBuffer is the ring size of the in-memory activity feed.
	ActivityBuffer int `yaml:"activity_buffer"`

	// StatusToken, when set, bearer-guards the /status endpoint.
	StatusToken string `yaml:"status_token,omitempty"`

	// PIDFile, when set, enforces a single gateway instance via flock(2).
	PIDFile string `yaml:"pid_file,omitempty"`
}

// CredentialConfig is one named credential set. Values support ${ENV}
// expansion so secrets can stay out of the file.
type CredentialConfig struct {
	// Token is the shared secret folded into request signatures.
	Token string `yaml:"token"`

	// EncodingAESKey is the 43-character base64-alphabet key string.
	EncodingAESKey string `yaml:"encoding_aes_key"`

	// ReceiverID, when set, is enforced against the receiver id embedded in
	// every decrypted event message.
	ReceiverID string `yaml:"receiver_id,omitempty"`
}

// EndpointConfig defines one callback endpoint.
type EndpointConfig struct {
	// Path is the URL path for this endpoint (e.g. "/callback/wecom").
	Path string `yaml:"path"`

	// CredentialRef names an entry in the credentials map.
	CredentialRef string `yaml:"credential_ref"`

	// MaxBodySize limits the request body, e.g. "1MB" or "65536".
	MaxBodySize string `yaml:"max_body_size,omitempty"`
}

// Defaults applied by Load.
const (
	DefaultListen         = "127.0.0.1:8082"
	DefaultLogLevel       = "INFO"
	DefaultActivityBuffer = 256
	DefaultMaxBodySize    = 1048576 // 1 MB
)
