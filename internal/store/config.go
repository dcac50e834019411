package store

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	StateFile        string `yaml:"state_file"`
	UIUpdateInterval int    `yaml:"ui_update_interval"`
	MaxEvents        int    `yaml:"max_events"`
	MaxNews          int    `yaml:"max_news"`
	MinLiveEvents    int    `yaml:"min_live_events"`

	Reddit struct {
		Subreddits       []string `yaml:"subreddits"`
		FetchInterval    int      `yaml:"fetch_interval"`
		MaxPostsPerFetch int      `yaml:"max_posts_per_fetch"`
		RateLimitCalls   int      `yaml:"rate_limit_calls"`
		RateLimitPeriod  int      `yaml:"rate_limit_period"`
	} `yaml:"reddit"`

	Events []EventSeed `yaml:"events"`

	Portfolio struct {
		InitialValue       float64 `yaml:"initial_value"`
		PointsPerCorrect   float64 `yaml:"points_per_correct"`
		PointsPerIncorrect float64 `yaml:"points_per_incorrect"`
	} `yaml:"portfolio"`

	Sentiment struct {
		LockHoursBefore    int     `yaml:"lock_hours_before"`
		RelevanceThreshold float64 `yaml:"relevance_threshold"`
	} `yaml:"sentiment"`

	LLM struct {
		Provider       string  `yaml:"provider"`
		AnalysisModel  string  `yaml:"analysis_model"`
		DiscoveryModel string  `yaml:"discovery_model"`
		MaxTokens      int     `yaml:"max_tokens"`
		Temperature    float32 `yaml:"temperature"`
		CallsPerMinute int     `yaml:"calls_per_minute"`
	} `yaml:"llm"`

	Server struct {
		Addr      string `yaml:"addr"`
		StaticDir string `yaml:"static_dir"`
		LogFile   string `yaml:"log_file"`
	} `yaml:"server"`
}

// EventSeed is an event definition from config, used only when no snapshot
// exists yet.
type EventSeed struct {
	ID        string    `yaml:"id"`
	Name      string    `yaml:"name"`
	EventTime time.Time `yaml:"event_time"`
	Keywords  []string  `yaml:"keywords"`
}

func (c *Config) Validate() error {
	if len(c.Reddit.Subreddits) == 0 {
		return fmt.Errorf("reddit.subreddits cannot be empty")
	}
	if c.MaxEvents <= 0 {
		return fmt.Errorf("max_events must be positive, got %d", c.MaxEvents)
	}
	if c.MaxNews <= 0 {
		return fmt.Errorf("max_news must be positive, got %d", c.MaxNews)
	}
	if c.Sentiment.RelevanceThreshold < 0 || c.Sentiment.RelevanceThreshold > 1 {
		return fmt.Errorf("sentiment.relevance_threshold must be in [0,1], got %.2f", c.Sentiment.RelevanceThreshold)
	}
	switch c.LLM.Provider {
	case "", "CLAUDE", "OPENAI", "NOOP":
	default:
		return fmt.Errorf("invalid llm.provider '%s': must be 'CLAUDE', 'OPENAI', or 'NOOP'", c.LLM.Provider)
	}
	return nil
}

// FetchInterval returns the feed polling cadence.
func (c *Config) FetchInterval() time.Duration {
	return time.Duration(c.Reddit.FetchInterval) * time.Second
}

// SaveInterval returns the time-driven persistence flush cadence.
func (c *Config) SaveInterval() time.Duration {
	return time.Duration(c.UIUpdateInterval) * time.Second
}

func LoadConfig(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, err
	}

	if c.StateFile == "" {
		c.StateFile = "state.json"
	}
	if c.UIUpdateInterval == 0 {
		c.UIUpdateInterval = 5
	}
	if c.MaxEvents == 0 {
		c.MaxEvents = 10
	}
	if c.MaxNews == 0 {
		c.MaxNews = 50
	}
	if c.MinLiveEvents == 0 {
		c.MinLiveEvents = 3
	}
	if c.Reddit.FetchInterval == 0 {
		c.Reddit.FetchInterval = 300
	}
	if c.Reddit.MaxPostsPerFetch == 0 {
		c.Reddit.MaxPostsPerFetch = 4
	}
	if c.Reddit.RateLimitCalls == 0 {
		c.Reddit.RateLimitCalls = 30
	}
	if c.Reddit.RateLimitPeriod == 0 {
		c.Reddit.RateLimitPeriod = 60
	}
	if c.Portfolio.InitialValue == 0 {
		c.Portfolio.InitialValue = 1000
	}
	if c.Portfolio.PointsPerCorrect == 0 {
		c.Portfolio.PointsPerCorrect = 100
	}
	if c.Portfolio.PointsPerIncorrect == 0 {
		c.Portfolio.PointsPerIncorrect = -50
	}
	if c.Sentiment.RelevanceThreshold == 0 {
		c.Sentiment.RelevanceThreshold = 0.5
	}
	if c.LLM.MaxTokens == 0 {
		c.LLM.MaxTokens = 500
	}
	if c.LLM.AnalysisModel == "" {
		c.LLM.AnalysisModel = "claude-3-7-sonnet-20250219"
	}
	if c.LLM.DiscoveryModel == "" {
		c.LLM.DiscoveryModel = "gpt-4o"
	}
	if c.LLM.CallsPerMinute == 0 {
		c.LLM.CallsPerMinute = 15
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8000"
	}
	if c.Server.LogFile == "" {
		c.Server.LogFile = "logs/app.log"
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &c, nil
}
