package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration so YAML files can use "50ms" / "2.5s" syntax.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

type Config struct {
	ListenAddr  string `yaml:"listen_addr"`
	UpstreamURL string `yaml:"upstream_url"`
	DocsURL     string `yaml:"docs_url"`

	// DataDir holds snapshots, the status ledger, lockfiles and the
	// per-region frame directories. VideoDir holds encoded videos.
	DataDir  string `yaml:"data_dir"`
	VideoDir string `yaml:"video_dir"`

	FrameWidth  int `yaml:"frame_width"`
	FrameHeight int `yaml:"frame_height"`

	// Workers caps concurrent frame renders. 0 sizes it from the host.
	Workers int `yaml:"workers"`

	// The status lock guards cheap metadata writes and polls fast.
	// Region locks guard long frame/video work and poll slowly.
	StatusPollInterval Duration `yaml:"status_poll_interval"`
	StatusMaxWait      Duration `yaml:"status_max_wait"`
	RegionPollInterval Duration `yaml:"region_poll_interval"`
	RegionMaxWait      Duration `yaml:"region_max_wait"`
}

func Default() Config {
	return Config{
		ListenAddr:         ":8080",
		UpstreamURL:        "https://api.corona-zahlen.org",
		DocsURL:            "https://api.corona-zahlen.org/docs",
		DataDir:            "dayPics",
		VideoDir:           "videos",
		FrameWidth:         1024,
		FrameHeight:        1280,
		Workers:            0,
		StatusPollInterval: Duration(50 * time.Millisecond),
		StatusMaxWait:      Duration(30 * time.Second),
		RegionPollInterval: Duration(2500 * time.Millisecond),
		RegionMaxWait:      Duration(10 * time.Minute),
	}
}

// Load reads a YAML config file on top of the defaults. A missing file
// is not an error; the defaults are returned unchanged.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}

// ApplyEnv overrides file values from the environment. Variables are
// optional; empty values leave the config untouched.
func (c *Config) ApplyEnv() {
	if v := os.Getenv("PORT"); v != "" {
		c.ListenAddr = ":" + v
	}
	if v := os.Getenv("MAPVIDEO_UPSTREAM_URL"); v != "" {
		c.UpstreamURL = v
	}
	if v := os.Getenv("MAPVIDEO_DATA_DIR"); v != "" {
		c.DataDir = v
	}
	if v := os.Getenv("MAPVIDEO_VIDEO_DIR"); v != "" {
		c.VideoDir = v
	}
}
