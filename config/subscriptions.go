package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"newsdesk/types"
)

// FeedPresets maps short keys to well-known feeds. A subscription source may
// name a preset instead of spelling out its URL.
var FeedPresets = map[string]types.Source{
	"cna": {Name: "Channel News Asia", URL: "https://www.channelnewsasia.com/api/v1/rss-outbound-feed?_format=xml"},
	"st":  {Name: "Straits Times", URL: "https://www.straitstimes.com/news/singapore/rss.xml"},
	"hn":  {Name: "Hacker News", URL: "https://hnrss.org/newest"},
	"tr":  {Name: "Technology Review", URL: "https://www.technologyreview.com/feed/"},
}

// DefaultGroups is used when no subscriptions file exists.
func DefaultGroups() []types.Group {
	return []types.Group{
		{Name: "news", Sources: []types.Source{FeedPresets["cna"], FeedPresets["st"]}},
		{Name: "tech", Sources: []types.Source{FeedPresets["hn"], FeedPresets["tr"]}},
	}
}

type subscriptionsFile struct {
	Groups []groupEntry `yaml:"groups"`
}

type groupEntry struct {
	Name    string        `yaml:"name"`
	Sources []sourceEntry `yaml:"sources"`
}

type sourceEntry struct {
	Preset string `yaml:"preset"`
	Name   string `yaml:"name"`
	URL    string `yaml:"url"`
}

// LoadSubscriptions reads the subscriptions file at path. A missing file
// yields DefaultGroups.
func LoadSubscriptions(path string) ([]types.Group, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return DefaultGroups(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read subscriptions: %w", err)
	}
	return ParseSubscriptions(data)
}

// ParseSubscriptions decodes and validates a subscriptions document.
func ParseSubscriptions(data []byte) ([]types.Group, error) {
	var file subscriptionsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse subscriptions: %w", err)
	}
	if len(file.Groups) == 0 {
		return nil, fmt.Errorf("subscriptions define no groups")
	}

	seen := make(map[string]struct{}, len(file.Groups))
	groups := make([]types.Group, 0, len(file.Groups))
	for i, g := range file.Groups {
		name := strings.TrimSpace(g.Name)
		if name == "" {
			return nil, fmt.Errorf("group %d has no name", i+1)
		}
		if _, dup := seen[name]; dup {
			return nil, fmt.Errorf("group %q defined twice", name)
		}
		seen[name] = struct{}{}

		group := types.Group{Name: name}
		for j, s := range g.Sources {
			src, err := resolveSource(s)
			if err != nil {
				return nil, fmt.Errorf("group %q source %d: %w", name, j+1, err)
			}
			group.Sources = append(group.Sources, src)
		}
		groups = append(groups, group)
	}
	return groups, nil
}

// resolveSource expands a preset key, or takes the URL as given.
func resolveSource(s sourceEntry) (types.Source, error) {
	if key := strings.ToLower(strings.TrimSpace(s.Preset)); key != "" {
		preset, ok := FeedPresets[key]
		if !ok {
			return types.Source{}, fmt.Errorf("unknown preset %q", s.Preset)
		}
		if s.Name != "" {
			preset.Name = s.Name
		}
		return preset, nil
	}
	url := strings.TrimSpace(s.URL)
	if url == "" {
		return types.Source{}, fmt.Errorf("source needs a url or a preset")
	}
	name := strings.TrimSpace(s.Name)
	if name == "" {
		name = url
	}
	return types.Source{Name: name, URL: url}, nil
}
