package connectors

import (
	"errors"
	"fmt"
	"slices"
	"sort"
	"strings"
)

const (
	CategoryFiles          = "files"
	CategoryDatabases      = "databases"
	CategoryCloudStorage   = "cloud_storage"
	CategoryDataWarehouses = "data_warehouses"
)

var categories = []string{CategoryFiles, CategoryDatabases, CategoryCloudStorage, CategoryDataWarehouses}

// Kind is a kind of data source.
type Kind struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Category    string `json:"-"`

	// Aliases are other tags which resolve to this kind.
	Aliases []string `json:"aliases,omitempty"`

	Required []string       `json:"-"`
	Optional map[string]any `json:"-"`

	// label is used in messages: "Successfully connected to <label>".
	label string

	// limitOnLoad pushes SampleSize into the query on Load.
	limitOnLoad bool

	build func(Config) (source, error)
}

// ParamsSchema describes connection parameters of a kind.
type ParamsSchema struct {
	Required []string       `json:"required"`
	Optional map[string]any `json:"optional"`
}

var ErrUnsupportedSource = errors.New("unsupported data source type")

var (
	kinds   = map[string]*Kind{}
	aliases = map[string]string{}
)

func register(k *Kind) {
	kinds[k.ID] = k
	aliases[k.ID] = k.ID
	for _, a := range k.Aliases {
		aliases[a] = k.ID
	}
}

func init() {
	registerFiles()
	registerDatabases()
	registerCloudStorage()
	registerWarehouses()
}

// Lookup resolves a tag (or an alias) into its kind.
func Lookup(sourceType string) (*Kind, error) {
	tag := strings.ToLower(strings.TrimSpace(sourceType))
	id, ok := aliases[tag]
	if !ok {
		return nil, fmt.Errorf(
			`%w: "%s". Supported types: %s`,
			ErrUnsupportedSource, tag, strings.Join(SupportedTypes(), ", "),
		)
	}
	return kinds[id], nil
}

// New builds a connector for cfg.SourceType.
//
// Building does not touch the source. Errors here are about the Config itself.
func New(cfg Config) (Connector, error) {
	k, err := Lookup(cfg.SourceType)
	if err != nil {
		return nil, err
	}
	if cfg.Params == nil {
		cfg.Params = map[string]any{}
	}
	src, err := k.build(cfg)
	if err != nil {
		return nil, err
	}
	return &connector{kind: k, config: cfg, src: src}, nil
}

// SupportedTypes lists every accepted tag, aliases included, in sorted order.
func SupportedTypes() []string {
	tags := make([]string, 0, len(aliases))
	for a := range aliases {
		tags = append(tags, a)
	}
	sort.Strings(tags)
	return tags
}

// SupportedSources lists kinds grouped by category.
func SupportedSources() map[string][]Kind {
	out := make(map[string][]Kind, len(categories))
	for _, c := range categories {
		out[c] = []Kind{}
	}
	for _, k := range kinds {
		out[k.Category] = append(out[k.Category], *k)
	}
	for _, ks := range out {
		slices.SortFunc(ks, func(a, b Kind) int { return strings.Compare(a.ID, b.ID) })
	}
	return out
}

func (k *Kind) ParamsSchema() ParamsSchema {
	opt := make(map[string]any, len(k.Optional))
	for key, v := range k.Optional {
		opt[key] = v
	}
	return ParamsSchema{Required: slices.Clone(k.Required), Optional: opt}
}

// Validate lists problems of cfg. An empty list means cfg is valid.
func Validate(cfg Config) []string {
	k, err := Lookup(cfg.SourceType)
	if err != nil {
		return []string{"Unsupported source type: " + cfg.SourceType}
	}

	problems := []string{}
	for _, p := range k.Required {
		if v, ok := cfg.Params[p]; !ok || v == nil || v == "" {
			problems = append(problems, "Missing required parameter: "+p)
		}
	}
	if strings.TrimSpace(cfg.QueryOrPath) == "" {
		problems = append(problems, "query_or_path is required")
	}
	return problems
}
