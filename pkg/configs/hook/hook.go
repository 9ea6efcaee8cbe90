// Package config reads webhook settings of loops.
package config

import (
	"net/url"
	"os"

	"gopkg.in/yaml.v3"
)

func Load(filename string) (Config, error) {
	content, err := os.ReadFile(filename)
	if err != nil {
		return Config{}, err
	}
	return Unmarshal(content)
}

func Unmarshal(content []byte) (Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(content, &cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

type Config struct {
	// AutoML hooks are called around each AutoML job run.
	AutoML WebHook `yaml:"automl,omitempty"`
}

// WebHook is a set of URLs to be POSTed.
//
// Before hooks are called before a job starts. When any of them fails, the job is not run.
// After hooks are called after the job has been finished; their failures are logged only.
type WebHook struct {
	Before []*url.URL
	After  []*url.URL
}

func parseURLs(raw []string) ([]*url.URL, error) {
	urls := make([]*url.URL, 0, len(raw))
	for _, u := range raw {
		parsed, err := url.Parse(u)
		if err != nil {
			return nil, err
		}
		urls = append(urls, parsed)
	}
	return urls, nil
}

func (wh *WebHook) UnmarshalYAML(node *yaml.Node) error {
	raw := struct {
		Before []string `yaml:"before"`
		After  []string `yaml:"after"`
	}{}
	if err := node.Decode(&raw); err != nil {
		return err
	}

	before, err := parseURLs(raw.Before)
	if err != nil {
		return err
	}
	after, err := parseURLs(raw.After)
	if err != nil {
		return err
	}
	wh.Before, wh.After = before, after
	return nil
}
