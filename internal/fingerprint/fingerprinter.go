// Package fingerprint guesses the server platform so the delay payloads can be narrowed.
package fingerprint

import (
	"context"
	"net/http"
	"strings"

	"Blindtime/internal/httpclient"
	"Blindtime/internal/logger"
	"Blindtime/internal/timedelay"

	"golang.org/x/net/html"
)

// Fingerprint is a type to store the results of technology identification.
type Fingerprint map[string]string

// platformClues maps a lowercase substring of a clue onto a platform hint, in priority order.
var platformClues = []struct {
	clue     string
	platform string
}{
	{"asp.net", "asp.net"},
	{"aspnet", "asp.net"},
	{"microsoft-iis", "iis"},
	{"laravel", "laravel"},
	{"php", "php"},
	{"express", "express"},
	{"django", "django"},
	{"wsgi", "python"},
	{"python", "python"},
	{"rails", "rails"},
	{"phusion", "ruby"},
	{"jsp", "jsp"},
	{"servlet", "java"},
	{"tomcat", "java"},
	{"jetty", "java"},
	{"wordpress", "php"},
}

// Platform returns the platform hint implied by fp, or "" when nothing is recognised.
func (fp Fingerprint) Platform() string {
	values := make([]string, 0, len(fp))
	for k, v := range fp {
		values = append(values, strings.ToLower(k+" "+v))
	}
	for _, pc := range platformClues {
		for _, v := range values {
			if strings.Contains(v, pc.clue) {
				return pc.platform
			}
		}
	}
	return ""
}

// Fingerprinter is the struct for the technology identification engine.
type Fingerprinter struct {
	sender timedelay.Sender
	log    *logger.Logger
}

// NewFingerprinter creates a new instance of Fingerprinter.
func NewFingerprinter(sender timedelay.Sender, log *logger.Logger) *Fingerprinter {
	return &Fingerprinter{
		sender: sender,
		log:    log,
	}
}

// Analyze fetches targetURL and collects technology clues from its headers and HTML.
func (f *Fingerprinter) Analyze(ctx context.Context, targetURL string) Fingerprint {
	result := make(Fingerprint)

	f.log.Debug("Fingerprinter: Starting analysis on %s", targetURL)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, targetURL, nil)
	if err != nil {
		f.log.Warn("Fingerprinter: Invalid target URL: %v", err)
		return result
	}
	resp, err := f.sender.Send(ctx, req, httpclient.SendOptions{UseCache: true, Retry: true})
	if err != nil {
		f.log.Warn("Fingerprinter: Could not fetch target URL for analysis: %v", err)
		return result
	}

	f.analyzeHeaders(resp.Header, result)
	f.analyzeHTMLContent(resp.BodyString(), result)
	return result
}

// analyzeHeaders examines HTTP headers for technology clues.
func (f *Fingerprinter) analyzeHeaders(header http.Header, result Fingerprint) {
	for _, name := range []string{"Server", "X-Powered-By", "X-AspNet-Version", "X-Generator"} {
		if v := header.Get(name); v != "" {
			result[name] = v
			f.log.Debug("Fingerprint: Found %s header: %s", name, v)
		}
	}

	resp := http.Response{Header: header}
	for _, cookie := range resp.Cookies() {
		name := strings.ToLower(cookie.Name)
		switch {
		case strings.HasPrefix(name, "laravel_session"):
			result["Laravel"] = "Detected from cookie"
		case name == "phpsessid":
			result["PHP"] = "Detected from cookie"
		case name == "jsessionid":
			result["JSP"] = "Detected from cookie"
		case name == "asp.net_sessionid":
			result["ASP.NET"] = "Detected from cookie"
		case name == "csrftoken" || name == "sessionid":
			result["Django"] = "Detected from cookie"
		case strings.HasPrefix(name, "wordpress_"):
			result["WordPress"] = "Detected from cookie"
		default:
			continue
		}
		f.log.Debug("Fingerprint: Detected technology from cookie: %s", cookie.Name)
	}
}

// analyzeHTMLContent looks for a generator meta tag.
func (f *Fingerprinter) analyzeHTMLContent(body string, result Fingerprint) {
	if strings.Contains(body, "/wp-content/") {
		if _, exists := result["WordPress"]; !exists {
			result["WordPress"] = "Detected from HTML content"
		}
	}

	doc, err := html.Parse(strings.NewReader(body))
	if err != nil {
		return
	}
	var findMeta func(*html.Node)
	findMeta = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "meta" {
			var name, content string
			for _, a := range n.Attr {
				switch a.Key {
				case "name":
					name = a.Val
				case "content":
					content = a.Val
				}
			}
			if strings.EqualFold(name, "generator") && content != "" {
				result["Generator"] = content
				f.log.Debug("Fingerprint: Found meta generator tag: %s", content)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			findMeta(c)
		}
	}
	findMeta(doc)
}
