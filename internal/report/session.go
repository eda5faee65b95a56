package report

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spherical/autoslides/internal/domain"
)

// XSRFCookie is the cookie whose value must be echoed in the x-rap-xsrf-token header.
const XSRFCookie = "RAP_XSRF_TOKEN"

// Cookie is one entry of an exported browser cookie file. Only name and value
// are used; the remaining fields of the export are ignored.
type Cookie struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Domain string `json:"domain,omitempty"`
	Path   string `json:"path,omitempty"`
}

// Session is a pre-authenticated dashboard session.
type Session struct {
	Cookies []Cookie
}

// LoadSession reads a JSON cookie list from path.
func LoadSession(path string) (*Session, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, domain.ReportFetchFailure(fmt.Sprintf("read cookies file %s", path), err)
	}
	return ParseSession(data)
}

// ParseSession decodes a JSON cookie list and checks that the XSRF cookie is present.
func ParseSession(data []byte) (*Session, error) {
	var cookies []Cookie
	if err := json.Unmarshal(data, &cookies); err != nil {
		return nil, domain.ReportFetchFailure("parse cookies file", err)
	}
	s := &Session{Cookies: cookies}
	if s.XSRFToken() == "" {
		return nil, domain.ReportFetchFailure(XSRFCookie+" not found in cookies file", nil)
	}
	return s, nil
}

// XSRFToken returns the value of the first XSRF cookie, or "".
func (s *Session) XSRFToken() string {
	for _, c := range s.Cookies {
		if c.Name == XSRFCookie {
			return c.Value
		}
	}
	return ""
}

// CookieHeader joins every cookie as "name=value" pairs separated by "; ".
func (s *Session) CookieHeader() string {
	pairs := make([]string, 0, len(s.Cookies))
	for _, c := range s.Cookies {
		pairs = append(pairs, c.Name+"="+c.Value)
	}
	return strings.Join(pairs, "; ")
}
