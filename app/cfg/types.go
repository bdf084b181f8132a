package cfg

type Cfg struct {
	// Persistence configuration
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	DBPath        string

	// Application configuration
	SourcesDir        string
	Port              string
	BaseUrl           string
	WorkerCount       int
	SchedulerInterval int
	APIAccessKey      string

	// Calendar publishing
	CalendarID      string
	CredentialsFile string

	// Application metadata
	Env       string
	UserAgent string
	Timezone  string
	Debug     bool
	Version   string
}

// IsProduction reports whether the service runs against the production
// calendar and KV namespace.
func (c *Cfg) IsProduction() bool {
	return c.Env == "prod"
}
