package middleware

import (
	"net/http"
	"regexp"
	"sort"
	"time"

	"github.com/labstack/echo/v4"
)

// APIVersion describes one published API version.
type APIVersion struct {
	Version    string     `json:"version"`
	Status     string     `json:"status"` // "active" or "deprecated"
	SunsetDate *time.Time `json:"sunset_date,omitempty"`
	Message    string     `json:"message,omitempty"`
}

// VersionMiddleware resolves the API version of a request and stamps the
// version headers on its response.
type VersionMiddleware struct {
	supportedVersions map[string]APIVersion
	defaultVersion    string
}

var versionPrefix = regexp.MustCompile(`^/(v[1-9][0-9]*)(?:/|$)`)

func NewVersionMiddleware() *VersionMiddleware {
	return &VersionMiddleware{
		supportedVersions: map[string]APIVersion{
			"v1": {Version: "v1", Status: "active", Message: "Current stable API version"},
		},
		defaultVersion: "v1",
	}
}

// AddVersion registers or replaces a version.
func (vm *VersionMiddleware) AddVersion(v APIVersion) {
	vm.supportedVersions[v.Version] = v
}

// VersionHeader adds version information to response headers.
func (vm *VersionMiddleware) VersionHeader(version string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			header := c.Response().Header()
			header.Set("X-API-Version", version)

			if ver, exists := vm.supportedVersions[version]; exists {
				if ver.Status == "deprecated" {
					header.Set("X-API-Deprecated", "true")
					if ver.SunsetDate != nil {
						header.Set("X-API-Sunset", ver.SunsetDate.Format(time.RFC3339))
						header.Set("Warning", `299 catalogfacets "This API version is deprecated and will be removed on `+
							ver.SunsetDate.Format("2006-01-02")+`"`)
					}
				}
				if ver.Message != "" {
					header.Set("X-API-Message", ver.Message)
				}
			}
			return next(c)
		}
	}
}

// APIVersionResolver rejects unknown version prefixes and records the
// resolved version as "api_version" on the context.
func (vm *VersionMiddleware) APIVersionResolver() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			version := vm.defaultVersion
			if m := versionPrefix.FindStringSubmatch(c.Request().URL.Path); m != nil {
				if _, supported := vm.supportedVersions[m[1]]; !supported {
					return c.JSON(http.StatusNotFound, map[string]interface{}{
						"error":              "Unsupported API version",
						"supported_versions": vm.SupportedVersions(),
					})
				}
				version = m[1]
			}
			c.Set("api_version", version)
			return next(c)
		}
	}
}

// SupportedVersions lists the versions that still answer requests.
func (vm *VersionMiddleware) SupportedVersions() []string {
	var versions []string
	for version, info := range vm.supportedVersions {
		if info.Status == "active" || info.Status == "deprecated" {
			versions = append(versions, version)
		}
	}
	sort.Strings(versions)
	return versions
}
