package classify

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// Rule labels any user agent its case-insensitive Pattern matches with Name.
type Rule struct {
	Name    string `json:"name" yaml:"name"`
	Pattern string `json:"pattern" yaml:"pattern"`
}

type compiled struct {
	name string
	re   *regexp.Regexp
}

// RuleSet is an ordered rule table; the first matching rule wins.
type RuleSet struct {
	rules []compiled
}

// Compile builds a RuleSet, preserving order. Rules with an empty pattern are
// skipped; an invalid pattern fails the whole set.
func Compile(rules []Rule) (*RuleSet, error) {
	cs := make([]compiled, 0, len(rules))
	for _, r := range rules {
		rx := r.Pattern
		if rx == "" {
			continue
		}
		if !strings.HasPrefix(rx, "(?i)") {
			rx = "(?i)" + rx
		}
		re, err := regexp.Compile(rx)
		if err != nil {
			return nil, fmt.Errorf("compile %q: %w", r.Name, err)
		}
		cs = append(cs, compiled{name: r.Name, re: re})
	}
	if len(cs) == 0 {
		return nil, errors.New("no valid rules compiled")
	}
	return &RuleSet{rules: cs}, nil
}

func mustCompile(rules []Rule) *RuleSet {
	rs, err := Compile(rules)
	if err != nil {
		panic(err)
	}
	return rs
}

// Match returns (name, true) for the first rule matching s, else ("", false).
func (rs *RuleSet) Match(s string) (string, bool) {
	for _, c := range rs.rules {
		if c.re.MatchString(s) {
			return c.name, true
		}
	}
	return "", false
}

// DefaultBotRules flags HTTP libraries, crawlers and headless browsers.
var DefaultBotRules = []Rule{
	{Name: "bot", Pattern: "bot"},
	{Name: "crawler", Pattern: "crawler"},
	{Name: "spider", Pattern: "spider"},
	{Name: "slurp", Pattern: "slurp"},
	{Name: "lighthouse", Pattern: "lighthouse"},
	{Name: "curl", Pattern: "curl"},
	{Name: "python", Pattern: "python"},
	{Name: "wget", Pattern: "wget"},
	{Name: "go-http-client", Pattern: "go-http-client"},
	{Name: "node-fetch", Pattern: "node-fetch"},
	{Name: "axios", Pattern: "axios"},
	{Name: "headless", Pattern: "headless"},
}

// DefaultBrowserRules is ordered so that browsers whose user agents also
// carry "Chrome" or "Safari" tokens are matched before those tokens are.
var DefaultBrowserRules = []Rule{
	{Name: "Edge", Pattern: `edg(e|a|ios)?/`},
	{Name: "Opera", Pattern: `opr/|opera`},
	{Name: "Samsung Internet", Pattern: `samsungbrowser/`},
	{Name: "Chrome", Pattern: `chrome/|crios/|chromium/`},
	{Name: "Firefox", Pattern: `firefox/|fxios/`},
	{Name: "Safari", Pattern: `safari/`},
	{Name: "IE", Pattern: `msie |trident/`},
}

// DefaultOSRules puts iOS before macOS ("like Mac OS X") and Android and
// Chrome OS before Linux.
var DefaultOSRules = []Rule{
	{Name: "Windows", Pattern: `windows`},
	{Name: "iOS", Pattern: `iphone|ipad|ipod`},
	{Name: "macOS", Pattern: `macintosh|mac os x`},
	{Name: "Android", Pattern: `android`},
	{Name: "Chrome OS", Pattern: `\bcros\b`},
	{Name: "Linux", Pattern: `linux`},
}

// Tables groups the three rule tables the classifier consults.
type Tables struct {
	Bots     *RuleSet
	Browsers *RuleSet
	OS       *RuleSet
}

// DefaultTables compiles the built-in rules.
func DefaultTables() Tables {
	return Tables{
		Bots:     mustCompile(DefaultBotRules),
		Browsers: mustCompile(DefaultBrowserRules),
		OS:       mustCompile(DefaultOSRules),
	}
}

type rulesFile struct {
	Bots     []Rule `json:"bots" yaml:"bots"`
	Browsers []Rule `json:"browsers" yaml:"browsers"`
	OS       []Rule `json:"os" yaml:"os"`
}

// LoadTables reads rule overrides from a .json or .yaml file. Sections the
// file leaves out keep their defaults. If path == "" the defaults are
// returned; on any error the defaults are returned alongside the error.
func LoadTables(path string) (Tables, error) {
	t := DefaultTables()
	if path == "" {
		return t, nil
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return t, fmt.Errorf("classify: %w (fallback to defaults)", err)
	}
	var f rulesFile
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(b, &f)
	case ".json":
		err = json.Unmarshal(b, &f)
	default:
		err = errors.New("unsupported rules file format (use .json or .yaml/.yml)")
	}
	if err != nil {
		return DefaultTables(), fmt.Errorf("classify: %s: %w (fallback to defaults)", path, err)
	}

	sections := []struct {
		name  string
		rules []Rule
		dst   **RuleSet
	}{
		{"bots", f.Bots, &t.Bots},
		{"browsers", f.Browsers, &t.Browsers},
		{"os", f.OS, &t.OS},
	}
	for _, s := range sections {
		if len(s.rules) == 0 {
			continue
		}
		rs, err := Compile(s.rules)
		if err != nil {
			return DefaultTables(), fmt.Errorf("classify: %s section %s: %w (fallback to defaults)", path, s.name, err)
		}
		*s.dst = rs
	}
	return t, nil
}
