package handlers

import (
	"embed"
	"html/template"
	"net/url"
	"strings"

	"github.com/gofiber/fiber/v2"
)

//go:embed templates/*.html
var templateFS embed.FS

var pages = map[string]*template.Template{
	"login":     parsePage("login.html"),
	"subscribe": parsePage("subscribe.html"),
	"pending":   parsePage("pending.html"),
	"notice":    parsePage("notice.html"),
}

func parsePage(name string) *template.Template {
	return template.Must(template.New(name).ParseFS(templateFS, "templates/layout.html", "templates/"+name))
}

// render writes a full HTML page. Pages carry session data and are never cached.
func render(c *fiber.Ctx, status int, page string, data any) error {
	c.Status(status)
	c.Type("html", "utf-8")
	c.Set(fiber.HeaderCacheControl, "no-store")
	return pages[page].ExecuteTemplate(c, page+".html", data)
}

type noticePage struct {
	Title                string
	Message              string
	IsError              bool
	Location             string
	RedirectAfterSeconds int
}

// safeRedirect accepts only local absolute paths.
func safeRedirect(target, fallback string) string {
	if target == "" || !strings.HasPrefix(target, "/") || strings.HasPrefix(target, "//") || strings.HasPrefix(target, "/\\") {
		return fallback
	}
	u, err := url.Parse(target)
	if err != nil || u.Scheme != "" || u.Host != "" {
		return fallback
	}
	return target
}

// withError appends an error query parameter to a local path.
func withError(path, message string) string {
	return path + "?error=" + url.QueryEscape(message)
}

// wantsJSON reports whether the caller is the SPA rather than a form post.
func wantsJSON(c *fiber.Ctx) bool {
	return strings.HasPrefix(c.Get(fiber.HeaderContentType), fiber.MIMEApplicationJSON) ||
		c.Accepts(fiber.MIMETextHTML, fiber.MIMEApplicationJSON) == fiber.MIMEApplicationJSON
}
