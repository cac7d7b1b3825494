package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/JakeFAU/bidwatch/internal/bid"
)

// LoadKeywords reads the JSON keyword file:
//
//	{"keyword": {"main": [...], "others": [...], "not": [...]}}
//
// A missing file, a missing "keyword" object or an empty query list is an error.
func LoadKeywords(path string) (bid.KeywordSet, error) {
	if strings.TrimSpace(path) == "" {
		return bid.KeywordSet{}, errors.New("keyword file path is empty")
	}
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("json")
	if err := v.ReadInConfig(); err != nil {
		return bid.KeywordSet{}, fmt.Errorf("read keyword file: %w", err)
	}
	if !v.IsSet("keyword") {
		return bid.KeywordSet{}, fmt.Errorf("keyword file %s: missing \"keyword\" object", path)
	}

	var raw struct {
		Main   []string `mapstructure:"main"`
		Others []string `mapstructure:"others"`
		Not    []string `mapstructure:"not"`
	}
	if err := v.UnmarshalKey("keyword", &raw); err != nil {
		return bid.KeywordSet{}, fmt.Errorf("keyword file %s: %w", path, err)
	}

	// Exclusion terms are matched verbatim, padding included.
	set := bid.KeywordSet{
		Main:    clean(raw.Main, nil, true),
		Exclude: clean(raw.Not, nil, false),
	}
	// A keyword listed in both main and others is queried once, in main's position.
	set.Others = clean(raw.Others, set.Main, true)
	if len(set.Main)+len(set.Others) == 0 {
		return bid.KeywordSet{}, fmt.Errorf("keyword file %s: no keywords to query", path)
	}
	return set, nil
}

// clean drops blank and repeated entries, trimming each one when trim is set.
func clean(in, skip []string, trim bool) []string {
	seen := make(map[string]struct{}, len(in)+len(skip))
	for _, s := range skip {
		seen[s] = struct{}{}
	}
	out := make([]string, 0, len(in))
	for _, s := range in {
		if strings.TrimSpace(s) == "" {
			continue
		}
		if trim {
			s = strings.TrimSpace(s)
		}
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
