package config

// AppConfig is the process configuration. Defaults live in Global;
// PAIRLINK_* environment variables override individual fields.
type AppConfig struct {
	NodeId int64 `mapstructure:"node_id"`
	Port   int   `mapstructure:"port"`

	MongoUri      string `mapstructure:"mongo_uri"`
	MongoDatabase string `mapstructure:"mongo_database"`

	RedisAddr     string `mapstructure:"redis_addr"`
	RedisPassword string `mapstructure:"redis_password"`
	RedisDB       int    `mapstructure:"redis_db"`

	NatsUrl string `mapstructure:"nats_url"`

	JwtSecret string `mapstructure:"jwt_secret"`

	// presence tuning
	LeaseTTLSeconds  int `mapstructure:"lease_ttl_seconds"`
	HeartbeatSeconds int `mapstructure:"heartbeat_seconds"`
	SweepSeconds     int `mapstructure:"sweep_seconds"`
}
