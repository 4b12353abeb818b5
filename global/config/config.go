package config

import (
	"os"
	"strings"

	"PairLink/logger"
	ids "PairLink/tools/ids"

	"github.com/mitchellh/mapstructure"
)

const envPrefix = "PAIRLINK_"

var Global = AppConfig{
	NodeId: 1,
	Port:   8080,

	MongoUri:      "mongodb://localhost:27017",
	MongoDatabase: "pairlink",

	RedisAddr: "127.0.0.1:6379",
	RedisDB:   0,

	NatsUrl: "nats://127.0.0.1:4222",

	JwtSecret: "dev-only-secret-change-me",

	LeaseTTLSeconds:  30,
	HeartbeatSeconds: 10,
	SweepSeconds:     5,
}

// Load applies PAIRLINK_* environment overrides onto Global, then
// configures process-wide pieces (ID node).
func Load() {
	overrides := map[string]interface{}{}
	for _, kv := range os.Environ() {
		parts := strings.SplitN(kv, "=", 2)
		if len(parts) != 2 || !strings.HasPrefix(parts[0], envPrefix) {
			continue
		}
		key := strings.ToLower(strings.TrimPrefix(parts[0], envPrefix))
		overrides[key] = parts[1]
	}
	if len(overrides) > 0 {
		dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
			Result:           &Global,
			WeaklyTypedInput: true,
		})
		if err == nil {
			if err := dec.Decode(overrides); err != nil {
				logger.Warnf("[config] env override decode: %v", err)
			}
		}
	}

	ids.SetNodeID(Global.NodeId)
	logger.Infof("[config] loaded, port=%d mongo=%s redis=%s", Global.Port, Global.MongoDatabase, Global.RedisAddr)
}

func GetJwtSecret() []byte {
	return []byte(Global.JwtSecret)
}
