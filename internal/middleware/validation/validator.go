package validation

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

var xssPattern = regexp.MustCompile(`(?i)(<script|<iframe|<object|<embed|javascript:|vbscript:|on(error|load|click|mouseover)\s*=)`)

// Rule screens one text field of POST requests whose path ends with PathSuffix.
type Rule struct {
	PathSuffix string
	Field      string
	MaxLength  int
}

type Config struct {
	Rules               []Rule
	AllowedContentTypes []string
	Logger              *zap.Logger
}

func DefaultRules() []Rule {
	return []Rule{
		{PathSuffix: "/messages", Field: "text", MaxLength: 2000},
		{PathSuffix: "/knowledge/lookup", Field: "question", MaxLength: 2000},
		{PathSuffix: "/reports/query", Field: "query", MaxLength: 5000},
	}
}

func Middleware(cfg Config) fiber.Handler {
	if cfg.Rules == nil {
		cfg.Rules = DefaultRules()
	}
	if len(cfg.AllowedContentTypes) == 0 {
		cfg.AllowedContentTypes = []string{fiber.MIMEApplicationJSON, fiber.MIMEMultipartForm}
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	return func(c *fiber.Ctx) error {
		if c.Method() != fiber.MethodPost && c.Method() != fiber.MethodPut {
			return c.Next()
		}

		contentType := strings.ToLower(c.Get(fiber.HeaderContentType))
		if contentType != "" && !allowed(contentType, cfg.AllowedContentTypes) {
			return c.Status(fiber.StatusUnsupportedMediaType).JSON(fiber.Map{
				"error": "Unsupported content type",
			})
		}

		rule, ok := match(c.Path(), cfg.Rules)
		if !ok {
			return c.Next()
		}

		value, err := fieldValue(c, contentType, rule.Field)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Invalid JSON format",
			})
		}

		if rule.MaxLength > 0 && utf8.RuneCountInString(value) > rule.MaxLength {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": rule.Field + " exceeds maximum length",
			})
		}

		if containsXSS(value) {
			cfg.Logger.Warn("Potential XSS attempt",
				zap.String("ip", c.IP()),
				zap.String("path", c.Path()),
				zap.String("field", rule.Field),
			)
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Invalid " + rule.Field + " content",
			})
		}

		return c.Next()
	}
}

func allowed(contentType string, types []string) bool {
	for _, t := range types {
		if strings.HasPrefix(contentType, t) {
			return true
		}
	}
	return false
}

func match(path string, rules []Rule) (Rule, bool) {
	path = strings.TrimRight(path, "/")
	for _, r := range rules {
		if strings.HasSuffix(path, r.PathSuffix) {
			return r, true
		}
	}
	return Rule{}, false
}

func fieldValue(c *fiber.Ctx, contentType, field string) (string, error) {
	if strings.HasPrefix(contentType, fiber.MIMEMultipartForm) {
		return c.FormValue(field), nil
	}
	if len(c.Body()) == 0 {
		return "", nil
	}

	var body map[string]interface{}
	if err := c.BodyParser(&body); err != nil {
		return "", err
	}
	s, _ := body[field].(string)
	return s, nil
}

func containsXSS(input string) bool {
	return xssPattern.MatchString(input)
}
