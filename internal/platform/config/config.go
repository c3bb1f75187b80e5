package config

import (
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"subreg/internal/namehash"
)

// Server captures process-level configuration.
type Server struct {
	Addr          string
	DatabaseURL   string
	RedisURL      string
	KafkaBrokers  []string
	EventTopic    string
	JWTSigningKey string

	// RootName is the top-level namespace this registrar sells under.
	RootName string
	// RegistrarAccount is the identity this service holds on the registry.
	RegistrarAccount common.Address
	// LegacyRegistrar is the legacy implementation bound at construction;
	// upgrades unlock once the root namespace leaves its custody.
	LegacyRegistrar common.Address
}

// RootNode is the namehash of the configured root namespace.
func (s Server) RootNode() common.Hash {
	return namehash.NameHash(s.RootName)
}

// FromEnv builds a Server config from environment variables so main stays
// lean. Empty DatabaseURL / RedisURL / KafkaBrokers select the in-process
// implementations (dev mode).
func FromEnv() Server {
	addr := os.Getenv("SUBREG_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	rootName := os.Getenv("SUBREG_ROOT_NAME")
	if rootName == "" {
		rootName = "eth"
	}

	topic := os.Getenv("SUBREG_EVENT_TOPIC")
	if topic == "" {
		topic = "subreg.events"
	}

	jwtSigningKey := os.Getenv("SUBREG_JWT_SIGNING_KEY")
	if jwtSigningKey == "" {
		// Use a default for development - should be overridden in production
		jwtSigningKey = "dev-secret-key-change-in-production"
	}

	var brokers []string
	if raw := os.Getenv("SUBREG_KAFKA_BROKERS"); raw != "" {
		brokers = strings.Split(raw, ",")
	}

	return Server{
		Addr:             addr,
		DatabaseURL:      os.Getenv("SUBREG_DATABASE_URL"),
		RedisURL:         os.Getenv("SUBREG_REDIS_URL"),
		KafkaBrokers:     brokers,
		EventTopic:       topic,
		JWTSigningKey:    jwtSigningKey,
		RootName:         rootName,
		RegistrarAccount: common.HexToAddress(os.Getenv("SUBREG_REGISTRAR_ACCOUNT")),
		LegacyRegistrar:  common.HexToAddress(os.Getenv("SUBREG_LEGACY_REGISTRAR")),
	}
}
