// Package classify decides whether a request comes from an automated agent
// and extracts the browser, OS, country and referrer facets counted by the
// analytics. Matching is best-effort string matching against ordered rule
// tables.
package classify

import (
	"net/url"
	"strings"
)

// Sentinel facet values.
const (
	Other   = "Other"
	Unknown = "Unknown"
	Direct  = "Direct"
)

// Result is the classification of one request.
type Result struct {
	IsBot    bool
	BotRule  string // name of the bot rule that matched, "" for humans
	Browser  string
	OS       string
	Country  string
	Referrer string
}

// Classifier applies rule tables and a geo lookup to request attributes.
type Classifier struct {
	tables Tables
	geo    Locator
}

// New returns a classifier. A nil geo means every country is Unknown.
func New(tables Tables, geo Locator) *Classifier {
	if geo == nil {
		geo = NoLocator{}
	}
	return &Classifier{tables: tables, geo: geo}
}

// Classify inspects the User-Agent header, client IP and Referer header.
func (c *Classifier) Classify(userAgent, ip, referer string) Result {
	res := Result{
		Browser:  firstMatch(c.tables.Browsers, userAgent, Other),
		OS:       firstMatch(c.tables.OS, userAgent, Other),
		Country:  c.Country(ip),
		Referrer: Referrer(referer),
	}
	if name, ok := c.tables.Bots.Match(userAgent); ok {
		res.IsBot = true
		res.BotRule = name
	}
	return res
}

// Country resolves ip, short-circuiting private and unparseable addresses.
func (c *Classifier) Country(ip string) string {
	addr, ok := ParseIP(ip)
	if !ok || IsPrivate(addr.String()) {
		return Unknown
	}
	if cc := c.geo.Country(addr.String()); cc != "" {
		return cc
	}
	return Unknown
}

// Referrer reduces a Referer header to its host.
func Referrer(referer string) string {
	referer = strings.TrimSpace(referer)
	if referer == "" {
		return Direct
	}
	u, err := url.Parse(referer)
	if err != nil || !u.IsAbs() || u.Host == "" {
		return Other
	}
	return u.Host
}

func firstMatch(rs *RuleSet, s, fallback string) string {
	if name, ok := rs.Match(s); ok {
		return name
	}
	return fallback
}
